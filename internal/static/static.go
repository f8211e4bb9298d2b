// Package static serves the site's static assets and collects them into
// STATIC_ROOT for deployment.
package static

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"automax/internal/config"
)

const cacheControl = "public, max-age=86400"

// Sources layers dirs so the first directory holding a file wins. Missing
// directories are skipped.
func Sources(fs afero.Fs, dirs []string) afero.Fs {
	existing := dirs[:0:0]
	for _, d := range dirs {
		if ok, _ := afero.DirExists(fs, d); ok {
			existing = append(existing, d)
		}
	}
	dirs = existing
	if len(dirs) == 0 {
		return afero.NewMemMapFs()
	}
	union := afero.NewReadOnlyFs(afero.NewBasePathFs(fs, dirs[len(dirs)-1]))
	for i := len(dirs) - 2; i >= 0; i-- {
		union = afero.NewCopyOnWriteFs(union, afero.NewReadOnlyFs(afero.NewBasePathFs(fs, dirs[i])))
	}
	return afero.NewReadOnlyFs(union)
}

// Register mounts static files under cfg.StaticURL. Debug serves straight
// from the source dirs, otherwise from the collected root with cache headers.
func Register(r gin.IRouter, cfg config.StaticConfig, debug bool) {
	var fs afero.Fs
	if debug {
		fs = Sources(afero.NewOsFs(), cfg.StaticDirs)
	} else {
		fs = afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), cfg.StaticRoot))
	}

	g := r.Group(strings.TrimSuffix(cfg.StaticURL, "/"))
	if !debug {
		g.Use(func(c *gin.Context) {
			c.Header("Cache-Control", cacheControl)
			c.Next()
		})
	}
	g.StaticFS("/", filesOnly{afero.NewHttpFs(fs)})
}

// filesOnly hides directory listings.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// Collect copies every file from the source dirs into dst, overwriting what
// is there, and returns how many files it copied.
func Collect(src afero.Fs, dirs []string, dst afero.Fs) (int, error) {
	union := Sources(src, dirs)
	copied := 0
	err := afero.Walk(union, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if err := copyFile(union, dst, p); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(src, dst afero.Fs, p string) error {
	in, err := src.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := dst.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	out, err := dst.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
