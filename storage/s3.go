package storage

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type S3Storage struct {
	Bucket   Bucket
	s3Client *s3.S3
}

func NewS3Storage(bucket *Bucket) (*S3Storage, error) {
	svc, err := bucket.CreateSVC()
	if err != nil {
		return nil, err
	}
	return &S3Storage{
		Bucket:   *bucket,
		s3Client: svc,
	}, nil
}

func (s *S3Storage) key(path string) (*string, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	return aws.String(s.Bucket.GetRemotePath(cleaned)), nil
}

func (s *S3Storage) GetBucket() *Bucket {
	return &s.Bucket
}

func (s *S3Storage) GetSize(path string) int64 {
	key, err := s.key(path)
	if err != nil {
		return -1
	}
	head, err := s.s3Client.HeadObject(&s3.HeadObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    key,
	})
	if err != nil || head.ContentLength == nil {
		return -1
	}
	return *head.ContentLength
}

type countingReader struct {
	io.Reader
	n int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.n += int64(n)
	return n, err
}

func (s *S3Storage) Save(path string, reader io.Reader) (int64, error) {
	key, err := s.key(path)
	if err != nil {
		return 0, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	body := &countingReader{Reader: reader}
	uploader := s3manager.NewUploaderWithClient(s.s3Client)
	_, err = uploader.Upload(&s3manager.UploadInput{
		Bucket:      &s.Bucket.Name,
		Key:         key,
		ContentType: &mimeType,
		Body:        body,
	})
	return body.n, err
}

func (s *S3Storage) Load(path string, writer io.Writer) (int64, error) {
	key, err := s.key(path)
	if err != nil {
		return 0, err
	}
	resp, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    key,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(writer, resp.Body)
}

func (s *S3Storage) Serve(path string, request *http.Request, writer http.ResponseWriter) {
	key, err := s.key(path)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := s.s3Client.GetObjectWithContext(request.Context(), &s3.GetObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    key,
	})
	if err != nil {
		http.Error(writer, "not found", http.StatusNotFound)
		return
	}
	defer resp.Body.Close()
	if resp.ContentType != nil {
		writer.Header().Set("Content-Type", *resp.ContentType)
	}
	if resp.ContentLength != nil {
		writer.Header().Set("Content-Length", strconv.FormatInt(*resp.ContentLength, 10))
	}
	if _, err = io.Copy(writer, resp.Body); err != nil {
		slog.Warn("s3 serve", "key", *key, "error", err)
	}
}

func (s *S3Storage) Delete(path string) error {
	key, err := s.key(path)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    key,
	})
	return err
}

// GetFreeSpace is unknown for S3 buckets
func (s *S3Storage) GetFreeSpace() uint64 {
	return UnlimitedSpace
}
