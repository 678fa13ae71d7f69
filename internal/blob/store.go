// Package blob stores uploaded files and hands back the URL they are served
// from.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Tyrowin/roomrelay/internal/config"
)

// URLPrefix is the path every stored upload is served under.
const URLPrefix = "/uploads/"

var (
	// ErrStorage wraps every failure to write or read a blob.
	ErrStorage = errors.New("storage error")
	// ErrInvalidName is returned for names that do not reduce to a file name.
	ErrInvalidName = errors.New("invalid file name")
	// ErrNotFound is returned by Open for unknown names.
	ErrNotFound = errors.New("file not found")
)

// Store is the upload blob store.
type Store interface {
	// Put stores data under name and returns its public URL.
	Put(ctx context.Context, name string, data []byte) (string, error)

	// Open returns the content stored under name and its content type.
	// The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalStore(cfg.Local)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// CleanName reduces a client supplied name to its last path element so it
// cannot escape the upload directory.
func CleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(path.Clean("/" + name))
	if base == "/" || base == "." || base == ".." || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}
