package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/KaramelBytes/reservo/internal/utils"
)

// Source fetches the raw dataset into a local file.
type Source interface {
	Fetch(ctx context.Context, dst string) error
	// Describe names the source for logs.
	Describe() string
}

// GCSSource reads one object from a Cloud Storage bucket.
type GCSSource struct {
	client *storage.Client
	Bucket string
	Object string
}

// NewGCSSource creates a storage client. With an empty credentialsFile the
// client falls back to Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS, gcloud, or the metadata server).
func NewGCSSource(ctx context.Context, bucket, object, credentialsFile string) (*GCSSource, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS storage client: %w", err)
	}
	return &GCSSource{client: client, Bucket: bucket, Object: object}, nil
}

func (s *GCSSource) Describe() string { return fmt.Sprintf("gs://%s/%s", s.Bucket, s.Object) }

// Fetch downloads the object to dst atomically.
func (s *GCSSource) Fetch(ctx context.Context, dst string) error {
	rc, err := s.client.Bucket(s.Bucket).Object(s.Object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Describe(), err)
	}
	defer rc.Close()
	return utils.SafeWriteWith(dst, func(w io.Writer) error {
		if _, err := io.Copy(w, rc); err != nil {
			return fmt.Errorf("copy %s: %w", s.Describe(), err)
		}
		return nil
	})
}

// Close releases the storage client.
func (s *GCSSource) Close() error { return s.client.Close() }

// LocalSource copies a CSV already on disk.
type LocalSource struct {
	Path string
}

func (s LocalSource) Describe() string { return s.Path }

func (s LocalSource) Fetch(ctx context.Context, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return utils.CopyFile(s.Path, dst)
}
