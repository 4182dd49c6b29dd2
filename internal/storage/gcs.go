package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// GCSSink uploads session WAV recordings to a Google Cloud Storage
// bucket. It is the AudioSink implementation that ships recordings off
// the local disk entirely, for deployments that do not keep session
// audio on the machine running the gateway.
type GCSSink struct {
	client *storage.Client
	bucket string
}

// NewGCSSink dials GCS using the ambient application-default credentials.
func NewGCSSink(ctx context.Context, bucket string) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: new gcs client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket}, nil
}

// Upload implements AudioSink. On failure it returns an error; callers
// are expected to fall back to the local path rather than fail the
// session over an upload error.
func (s *GCSSink) Upload(ctx context.Context, localPath, meetingID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()

	objectName := filepath.Base(localPath)
	if meetingID != "" {
		objectName = meetingID + "/" + objectName
	}

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "audio/wav"
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", fmt.Errorf("storage: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: close object writer: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Close releases the underlying GCS client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}
