// Package storage keeps generated request packages until cleanup removes
// them, either on the local filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"ddrc/pkg/platform/sentinel"
)

// Store is a flat namespace of package files.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes name. A missing object is not an error.
	Delete(ctx context.Context, name string) error
}

// FS stores packages as files under Dir.
type FS struct {
	Dir string
}

func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FS{Dir: dir}, nil
}

func (s *FS) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid package name %q", name)
	}
	return filepath.Join(s.Dir, name), nil
}

// Put writes atomically so a crash never leaves a truncated package.
func (s *FS) Put(_ context.Context, name string, data []byte) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("write package %s: %w", name, err)
	}
	return nil
}

func (s *FS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("package %s: %w", name, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open package %s: %w", name, err)
	}
	return f, nil
}

func (s *FS) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat package %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("package %s is not a regular file", name)
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete package %s: %w", name, err)
	}
	return nil
}
