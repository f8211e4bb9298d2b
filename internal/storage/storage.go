// Package storage writes media files to the configured backend: the local
// media root, an S3 bucket or a GCS bucket.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/url"
	"path"
	"strings"

	"automax/internal/config"
)

var (
	ErrNotFound        = errors.New("file not found in storage")
	ErrInvalidName     = errors.New("invalid storage name")
	ErrNoAvailableName = errors.New("no available storage name")
	ErrExists          = errors.New("storage name already exists")
)

const (
	maxNameAttempts = 100
	suffixLen       = 7
	suffixAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Storage is implemented by every media backend. Names are slash separated
// and relative to the backend root. Save never replaces an existing object;
// backends report ErrExists where they can tell.
type Storage interface {
	Name() string
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	URL(name string) string
}

// New builds the backend selected by cfg.Storage.Provider.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.Storage.Provider {
	case config.StorageLocal:
		return NewLocal(cfg.Static.MediaRoot, cfg.Static.MediaURL)
	case config.StorageS3:
		return NewS3(cfg.Storage), nil
	case config.StorageGCS:
		return NewGCS(ctx, cfg.Storage.GCSBucketName)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}

// ValidateName rejects names that would escape the backend root.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return ErrInvalidName
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInvalidName
	}
	return nil
}

// AvailableName returns name if it is free, otherwise name with a random
// suffix inserted before the extension.
func AvailableName(ctx context.Context, st Storage, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	dir, file := path.Split(name)
	ext := path.Ext(file)
	root := strings.TrimSuffix(file, ext)

	candidate := name
	for i := 0; i < maxNameAttempts; i++ {
		exists, err := st.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}

		suffix, err := randomSuffix()
		if err != nil {
			return "", err
		}
		candidate = dir + root + "_" + suffix + ext
	}
	return "", fmt.Errorf("%w: %s", ErrNoAvailableName, name)
}

func randomSuffix() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := 0; i < suffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(suffixAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
