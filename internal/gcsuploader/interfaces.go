package gcsuploader

import (
	"context"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadBytes writes data to bucketName/objectName.
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) error

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Archiver keeps a copy of each uploaded export and returns its URI.
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
}
