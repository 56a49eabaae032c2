package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PublicPrefix is the relative path recorded for locally stored covers
const PublicPrefix = "public/upload"

// Local writes uploads into a directory served under PublicPrefix
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Dir is the directory holding uploaded files
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid upload name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(l.dir, name)
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to sync %s: %w", target, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to close %s: %w", target, err)
	}

	return path.Join(PublicPrefix, name), nil
}

func (l *Local) Owns(ref string) bool {
	return strings.HasPrefix(ref, PublicPrefix+"/") && path.Base(ref) == strings.TrimPrefix(ref, PublicPrefix+"/")
}

func (l *Local) Remove(ctx context.Context, ref string) error {
	if !l.Owns(ref) {
		return fmt.Errorf("%q is not a local upload", ref)
	}
	err := os.Remove(filepath.Join(l.dir, path.Base(ref)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
