package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// Local stores media under a root directory. The filesystem is an afero.Fs
// so tests can run against memory.
type Local struct {
	fs      afero.Fs
	baseURL string
}

func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root %s: %w", root, err)
	}
	return NewLocalFs(afero.NewBasePathFs(afero.NewOsFs(), root), baseURL), nil
}

func NewLocalFs(fs afero.Fs, baseURL string) *Local {
	return &Local{fs: fs, baseURL: baseURL}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	p := filepath.FromSlash(name)

	if err := l.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("[local.Save] failed to create directory for %s: %w", name, err)
	}

	dst, err := l.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("[local.Save] %w: %s", ErrExists, name)
	}
	if err != nil {
		return fmt.Errorf("[local.Save] failed to create %s: %w", name, err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		_ = l.fs.Remove(p)
		return fmt.Errorf("[local.Save] failed to write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		_ = l.fs.Remove(p)
		return fmt.Errorf("[local.Save] failed to close %s: %w", name, err)
	}
	return nil
}

func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := l.fs.Open(filepath.FromSlash(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[local.Open] failed to open %s: %w", name, err)
	}
	return f, nil
}

// Delete ignores files that are already gone.
func (l *Local) Delete(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := l.fs.Remove(filepath.FromSlash(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("[local.Delete] failed to delete %s: %w", name, err)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return afero.Exists(l.fs, filepath.FromSlash(name))
}

func (l *Local) URL(name string) string {
	return path.Join("/", l.baseURL, escapePath(name))
}
