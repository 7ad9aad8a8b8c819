package storage

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

type DiskStorage struct {
	Bucket Bucket
	// BasePath is a directory (usually mount point of a disk) that is writable by the current process
	BasePath  string
	dirs      map[string]bool
	dirsMutex sync.Mutex
}

func NewDiskStorage(bucket *Bucket) *DiskStorage {
	return &DiskStorage{
		Bucket:   *bucket,
		BasePath: bucket.Path,
		dirs:     make(map[string]bool, 10),
	}
}

func (s *DiskStorage) createDir(dir string) error {
	s.dirsMutex.Lock()
	defer s.dirsMutex.Unlock()

	if ok := s.dirs[dir]; ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	s.dirs[dir] = true
	return nil
}

func (s *DiskStorage) getFullPath(path string) (string, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.BasePath, filepath.FromSlash(cleaned)), nil
}

func (s *DiskStorage) GetBucket() *Bucket {
	return &s.Bucket
}

func (s *DiskStorage) GetSize(path string) int64 {
	fileName, err := s.getFullPath(path)
	if err != nil {
		return -1
	}
	fi, err := os.Stat(fileName)
	if err != nil {
		return -1
	}
	return fi.Size()
}

func (s *DiskStorage) Save(path string, reader io.Reader) (int64, error) {
	fileName, err := s.getFullPath(path)
	if err != nil {
		return 0, err
	}
	if err := s.createDir(filepath.Dir(fileName)); err != nil {
		return 0, err
	}
	file, err := os.Create(fileName)
	if err != nil {
		return 0, err
	}
	result, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	return result, err
}

func (s *DiskStorage) Load(path string, writer io.Writer) (int64, error) {
	fileName, err := s.getFullPath(path)
	if err != nil {
		return 0, err
	}
	file, err := os.Open(fileName)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return io.Copy(writer, file)
}

func (s *DiskStorage) Serve(path string, request *http.Request, writer http.ResponseWriter) {
	fileName, err := s.getFullPath(path)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	http.ServeFile(writer, request, fileName)
}

func (s *DiskStorage) Delete(path string) error {
	fileName, err := s.getFullPath(path)
	if err != nil {
		return err
	}
	return os.Remove(fileName)
}

// GetFreeSpace reports the space available to this process. The base path
// is created on first save, until then its closest existing parent is used.
func (s *DiskStorage) GetFreeSpace() uint64 {
	var stat unix.Statfs_t
	dir := s.BasePath
	for {
		err := unix.Statfs(dir, &stat)
		if err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			slog.Warn("free space", "path", s.BasePath, "error", err)
			return 0
		}
		dir = parent
	}
	return stat.Bavail * uint64(stat.Bsize)
}
