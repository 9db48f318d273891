// Package local implements the storage contract on a flat directory of
// files, used when cloud mode is off.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixelcrate/pixelcrate/internal/imagename"
	"github.com/pixelcrate/pixelcrate/internal/storage"
)

var _ storage.Storage = (*Store)(nil)

// Store keeps every object as a file directly under dir.
type Store struct {
	dir string
}

// New creates the data directory if needed and returns a Store over it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// path resolves name inside the data directory, rejecting traversal.
func (s *Store) path(name string) (string, error) {
	clean := filepath.Base(filepath.Clean(name))
	if clean == "." || clean == ".." || clean == "" || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return name, nil
}

func (s *Store) Get(ctx context.Context, name string) ([]byte, storage.ObjectInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ObjectInfo{}, storage.ErrNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("read %s: %w", p, err)
	}

	stat, err := os.Stat(p)
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}

	ct, _ := imagename.ContentType(name)
	return data, storage.ObjectInfo{
		Key:          name,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
		ContentType:  ct,
	}, nil
}

func (s *Store) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory %s: %w", s.dir, err)
	}

	var objects []storage.ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		ct, _ := imagename.ContentType(entry.Name())
		objects = append(objects, storage.ObjectInfo{
			Key:          entry.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ct,
		})
	}
	return objects, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}
