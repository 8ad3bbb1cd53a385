// Package storage keeps the original statement files an import came from, so
// the treasurer can always pull up the PDF behind a batch of transactions.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// FileInfo contains metadata about a stored statement file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for statement file operations
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, uploadedBy uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// Download retrieves a file by its ID
	Download(ctx context.Context, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, fileID uuid.UUID) error

	// List returns all stored files, newest first
	List(ctx context.Context) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without downloading
	GetInfo(ctx context.Context, fileID uuid.UUID) (*FileInfo, error)

	// GetReader returns a reader for a file (for streaming processing)
	GetReader(ctx context.Context, fileID uuid.UUID) (io.ReadCloser, error)
}

// Config holds storage configuration
type Config struct {
	Dir string
}

// New creates the filesystem-backed Storage implementation.
func New(cfg *Config) (Storage, error) {
	return NewLocalStorage(cfg.Dir)
}
