package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/puzpuzpuz/xsync/v4"
)

// SearchPath resolves headers by looking them up in an ordered list of include directories.
type SearchPath struct {
	fsys  fs.FS
	dirs  []string
	cache *xsync.Map[string, bool]
}

// NewSearchPath creates a SearchPath over fsys. Directories are slash-separated
// paths inside fsys, as accepted by fs.Stat.
func NewSearchPath(fsys fs.FS, dirs ...string) *SearchPath {
	return &SearchPath{
		fsys:  fsys,
		dirs:  dirs,
		cache: xsync.NewMap[string, bool](),
	}
}

// NewOSSearchPath creates a SearchPath over the host filesystem.
func NewOSSearchPath(dirs ...string) *SearchPath {
	return NewSearchPath(nil, dirs...)
}

// Dirs returns the include directories in search order.
func (s *SearchPath) Dirs() []string { return s.dirs }

// Supported is always true: a search path can always be tested.
func (s *SearchPath) Supported(context.Context) (bool, error) { return true, nil }

// HasInclude reports whether header exists as a regular file in any include directory.
func (s *SearchPath) HasInclude(ctx context.Context, header string) (bool, error) {
	if err := validateHeader(header); err != nil {
		return false, err
	}
	if found, ok := s.cache.Load(header); ok {
		return found, nil
	}

	for _, dir := range s.dirs {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		found, err := s.stat(dir, header)
		if err != nil {
			return false, fmt.Errorf("probe %s in %s: %w", header, dir, err)
		}
		if found {
			slog.Debug("header resolved", "header", header, "dir", dir)
			s.cache.Store(header, true)
			return true, nil
		}
	}
	s.cache.Store(header, false)
	return false, nil
}

func (s *SearchPath) stat(dir, header string) (bool, error) {
	var (
		info fs.FileInfo
		err  error
	)
	if s.fsys == nil {
		info, err = os.Stat(filepath.Join(dir, filepath.FromSlash(header)))
	} else {
		info, err = fs.Stat(s.fsys, path.Join(strings.TrimPrefix(dir, "/"), header))
	}
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return false, nil
	default:
		return false, err
	}
}
