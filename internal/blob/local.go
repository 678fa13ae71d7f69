package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Tyrowin/roomrelay/internal/config"
)

// LocalStore writes uploads into a directory on disk.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(cfg config.LocalConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("create base path: %w", err)
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}

	return &LocalStore{basePath: absPath}, nil
}

// BasePath returns the absolute upload directory.
func (s *LocalStore) BasePath() string {
	return s.basePath
}

// Put writes data to a temp file and renames it into place, so readers
// never see a partial upload. An existing file with the same name is
// replaced.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	tmpFile, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return "", fmt.Errorf("%w: write %s: %v", ErrStorage, name, err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", ErrStorage, name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.basePath, name)); err != nil {
		return "", fmt.Errorf("%w: rename %s: %v", ErrStorage, name, err)
	}

	success = true
	return URLPrefix + name, nil
}

// Open returns the stored file and its sniffed content type.
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, "", err
	}

	file, err := os.Open(filepath.Join(s.basePath, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, "", fmt.Errorf("%w: open %s: %v", ErrStorage, name, err)
	}

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		_ = file.Close()
		return nil, "", fmt.Errorf("%w: sniff %s: %v", ErrStorage, name, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, "", fmt.Errorf("%w: rewind %s: %v", ErrStorage, name, err)
	}

	return file, mt.String(), nil
}
