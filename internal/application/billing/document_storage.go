package billing

import (
	"context"
	"time"
)

// DocumentStorage defines the interface for invoice document storage.
// This interface is implemented by the infrastructure layer (S3-compatible
// object storage, or an in-memory stub for tests).
type DocumentStorage interface {
	// Upload stores a rendered document under the given storage key
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error

	// GenerateDownloadURL generates a presigned URL for downloading a document
	// Returns the download URL and expiration time
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// DeleteObject deletes a document from storage
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectExists checks if a document exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}
