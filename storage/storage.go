package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"path"
	"strings"
)

var (
	ErrInvalidPath       = errors.New("invalid storage path")
	ErrInsufficientSpace = errors.New("not enough storage space")
)

// UnlimitedSpace is reported by backends without a known capacity
const UnlimitedSpace uint64 = math.MaxUint64

type StorageAPI interface {
	GetSize(path string) int64
	Save(path string, reader io.Reader) (int64, error)
	Load(path string, writer io.Writer) (int64, error)
	Serve(path string, request *http.Request, writer http.ResponseWriter)
	Delete(path string) error
	GetFreeSpace() uint64
	GetBucket() *Bucket
}

func New(bucket Bucket) (StorageAPI, error) {
	slog.Info("storage bucket", "name", bucket.Name, "type", bucket.StorageType, "path", bucket.Path)
	switch bucket.StorageType {
	case StorageTypeFile:
		return NewDiskStorage(&bucket), nil
	case StorageTypeS3:
		return NewS3Storage(&bucket)
	}
	return nil, fmt.Errorf("storage type unavailable for bucket %s", bucket.Name)
}

// EnsureFreeSpace fails when the storage has less than minFree bytes available
func EnsureFreeSpace(s StorageAPI, minFree uint64) error {
	if minFree == 0 {
		return nil
	}
	if free := s.GetFreeSpace(); free < minFree {
		return fmt.Errorf("%w: %d bytes free in bucket %s", ErrInsufficientSpace, free, s.GetBucket().Name)
	}
	return nil
}

// cleanPath rejects absolute paths and paths escaping the bucket
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

func PhotoPath(personID string) string {
	return StorageLocationPhotos + "/" + personID + ".jpg"
}

func ThumbPath(personID string) string {
	return StorageLocationThumbs + "/" + personID + ".jpg"
}
