// Package gcsuploader archives uploaded bank exports to Google Cloud Storage
// and reads exports back from gs:// URIs.
package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GCSStorageService is the StorageService backed by a storage client.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage client. An empty credentialsFile uses
// Application Default Credentials (gcloud auth application-default login).
func NewGCSStorageService(ctx context.Context, credentialsFile string) (*GCSStorageService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close releases the storage client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}

// UploadBytes writes data to a GCS object, replacing any existing object.
func (s *GCSStorageService) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = ContentType(objectName, data)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// FetchFromGCS downloads the file bytes from the given GCS URI.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading bytes: %w", err)
	}
	return data, nil
}

// BucketArchiver stores uploads under a dated prefix in one bucket.
type BucketArchiver struct {
	svc    StorageService
	bucket string
	now    func() time.Time
}

// NewBucketArchiver returns an Archiver writing to bucket.
func NewBucketArchiver(svc StorageService, bucket string) *BucketArchiver {
	return &BucketArchiver{svc: svc, bucket: bucket, now: time.Now}
}

// Archive uploads data and returns its gs:// URI.
func (a *BucketArchiver) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	object := ArchiveObjectName(a.now(), uuid.NewString(), filename)
	if err := a.svc.UploadBytes(ctx, a.bucket, object, data); err != nil {
		return "", fmt.Errorf("archive %q: %w", filename, err)
	}
	return "gs://" + a.bucket + "/" + object, nil
}

// ArchiveObjectName builds "uploads/YYYY/MM/DD/<id>-<file>" for an upload.
func ArchiveObjectName(at time.Time, id, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "export.csv"
	}
	return fmt.Sprintf("uploads/%s/%s-%s", at.UTC().Format("2006/01/02"), id, base)
}

// ContentType picks the object content type from the file extension, falling
// back to sniffing data. Workbooks are zip containers, so a zip signature is
// reported as XLSX.
func ContentType(objectName string, data []byte) string {
	switch strings.ToLower(path.Ext(objectName)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return xlsxContentType
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return xlsxContentType
	}
	return http.DetectContentType(data)
}

// ParseGCSURI splits "gs://bucket/path/to/file" into bucket and object path.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// IsGCSURI reports whether s looks like a gs:// URI.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.csv" → "file.csv"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

var _ StorageService = (*GCSStorageService)(nil)
var _ Archiver = (*BucketArchiver)(nil)
