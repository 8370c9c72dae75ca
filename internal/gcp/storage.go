package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// GCSObjects reads and writes objects through a storage client.
type GCSObjects struct {
	client *storage.Client
}

// NewGCSObjects wraps a storage client.
func NewGCSObjects(client *storage.Client) *GCSObjects {
	return &GCSObjects{client: client}
}

// OpenRead opens a reader on gs://bucket/object.
func (s *GCSObjects) OpenRead(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	return r, nil
}

// WriteIfAbsent stores content at gs://bucket/object unless the object already exists.
func (s *GCSObjects) WriteIfAbsent(ctx context.Context, bucket, object, content string) error {
	return SaveToGCSAtomically(ctx, s.client.Bucket(bucket), object, content)
}

// ObjectPath returns the object name that bucketURL references inside bucket.
// The name is whatever follows the last occurrence of the bucket name, so both
// gs://bucket/a/b.pdf and https://storage.googleapis.com/bucket/a/b.pdf resolve to a/b.pdf.
func ObjectPath(bucketURL, bucket string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("bucket name is empty")
	}
	i := strings.LastIndex(bucketURL, bucket)
	if i < 0 {
		return "", fmt.Errorf("bucketUrl %q does not reference bucket %q", bucketURL, bucket)
	}
	object := strings.TrimPrefix(bucketURL[i+len(bucket):], "/")
	if object == "" {
		return "", fmt.Errorf("bucketUrl %q has no object path", bucketURL)
	}
	return object, nil
}

// BucketURLs returns the URL forms under which an object may be recorded in Firestore.
func BucketURLs(bucket, object string) []string {
	return []string{
		fmt.Sprintf("gs://%s/%s", bucket, object),
		fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object),
	}
}
