package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob id does not resolve to a stored file.
var ErrNotFound = errors.New("store: file not found")

// FileMetadata describes one stored file. ID is the store-assigned handle
// used for all subsequent operations.
type FileMetadata struct {
	ID       string
	Name     string
	MimeType string
	Parent   string
}

// ListQuery filters a folder listing. Zero-valued fields are ignored.
type ListQuery struct {
	Parent     string
	Name       string // exact match
	NamePrefix string
	MimeType   string
}

// BlobStore is the cloud file-store boundary. It is passed into the
// collection service explicitly so tests can substitute an in-memory
// implementation.
type BlobStore interface {
	// EnsureFolder looks up a folder by exact name, creating it if absent.
	// Safe to call repeatedly and to race: lookup happens before create.
	EnsureFolder(ctx context.Context, name string) (folderID string, err error)

	List(ctx context.Context, q ListQuery) ([]FileMetadata, error)
	Create(ctx context.Context, meta FileMetadata, content []byte) (id string, err error)
	// UpdateContent overwrites a file's bytes and mime type in place,
	// preserving its id.
	UpdateContent(ctx context.Context, id string, content []byte, mimeType string) error
	Metadata(ctx context.Context, id string) (FileMetadata, error)
	Content(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}
