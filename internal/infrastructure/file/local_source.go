package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

var ErrOutsideBaseDir = errors.New("import path escapes the import directory")

// LocalSource opens server-side import files. Paths are resolved against
// BaseDir and may not leave it.
type LocalSource struct {
	BaseDir string
}

func NewLocalSource(baseDir string) *LocalSource {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalSource{BaseDir: baseDir}
}

func (s *LocalSource) Open(ctx context.Context, sourcePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.resolve(sourcePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat file %s", sourcePath)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open file %s: is a directory", sourcePath)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open file %s", sourcePath)
	}
	return file, nil
}

func (s *LocalSource) resolve(sourcePath string) (string, error) {
	base, err := filepath.Abs(s.BaseDir)
	if err != nil {
		return "", errors.Wrap(err, "resolve import directory")
	}

	path := filepath.Clean(sourcePath)
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}

	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBaseDir, sourcePath)
	}
	return path, nil
}
