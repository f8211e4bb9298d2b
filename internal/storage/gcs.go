package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
)

const gcsUploadTimeout = 180 * time.Second

// GCS uses application default credentials.
type GCS struct {
	client *gcs.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("[gcs.NewGCS] failed to create client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Name() string { return "gcs" }

func (g *GCS) Save(ctx context.Context, name string, r io.Reader, _ int64, contentType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, gcsUploadTimeout)
	defer cancel()

	// a conflicting write fails with 412 instead of replacing the object
	obj := g.client.Bucket(g.bucket).Object(name).If(gcs.Conditions{DoesNotExist: true})
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return fmt.Errorf("[gcs.Save] failed to copy %s to writer: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("[gcs.Save] failed to commit %s: %w", name, err)
	}
	return nil
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	r, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[gcs.Open] failed to download %s: %w", name, err)
	}
	return r, nil
}

func (g *GCS) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	err := g.client.Bucket(g.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("[gcs.Delete] failed to delete %s: %w", name, err)
	}
	return nil
}

func (g *GCS) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}

	_, err := g.client.Bucket(g.bucket).Object(name).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("[gcs.Exists] failed to read attributes of %s: %w", name, err)
}

func (g *GCS) URL(name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, escapePath(name))
}
