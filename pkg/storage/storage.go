// Package storage keeps the original statement uploads next to the batches
// created from them.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no upload matches the given ID.
var ErrNotFound = errors.New("stored file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the account directory
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for upload storage operations
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, accountID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a stored file
	Open(ctx context.Context, accountID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// GetInfo returns metadata for a file without opening it
	GetInfo(ctx context.Context, accountID, fileID uuid.UUID) (*FileInfo, error)

	// Delete removes a file and its metadata
	Delete(ctx context.Context, accountID, fileID uuid.UUID) error
}
