package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/liamg/memoryfs"
)

// MemoryStore implements Store using an in-memory filesystem.
// Useful for integration testing without a live bucket.
// Thread-safe for concurrent use.
type MemoryStore struct {
	fs         *memoryfs.FS
	publicBase string
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory blob store whose public URLs
// are rooted at publicBase.
func NewMemoryStore(publicBase string) *MemoryStore {
	return &MemoryStore{
		fs:         memoryfs.New(),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Put writes the object and returns its public URL.
func (m *MemoryStore) Put(ctx context.Context, p string, r io.Reader, opts PutOptions) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !opts.Overwrite {
		if _, err := m.fs.Stat(p); err == nil {
			return "", ErrExists
		}
	}

	if dir := path.Dir(p); dir != "." {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create parent directories: %w", err)
		}
	}
	if err := m.fs.WriteFile(p, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	return m.PublicURL(p), nil
}

// List returns all objects under prefix, names relative to it.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var objects []Object
	err := fs.WalkDir(m.fs, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasPrefix(p, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Name: strings.TrimPrefix(p, prefix),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return objects, nil
}

// Remove deletes an object. Returns nil if it doesn't exist (idempotent).
func (m *MemoryStore) Remove(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fs.Remove(p); err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Move relocates an object, replacing any object at dst.
func (m *MemoryStore) Move(ctx context.Context, src, dst string) error {
	if err := m.Copy(ctx, src, dst); err != nil {
		return err
	}
	return m.Remove(ctx, src)
}

// Copy duplicates an object, replacing any object at dst.
func (m *MemoryStore) Copy(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, err := m.fs.ReadFile(src)
	if err != nil {
		if isNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read source object: %w", err)
	}

	if dir := path.Dir(dst); dir != "." {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create parent directories: %w", err)
		}
	}
	if err := m.fs.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("failed to write destination object: %w", err)
	}
	return nil
}

// PublicURL returns the URL the object at path is served from.
func (m *MemoryStore) PublicURL(p string) string {
	return m.publicBase + "/" + p
}

// HealthCheck always succeeds for the in-memory store.
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Open returns the object content. Test helper, not part of Store.
func (m *MemoryStore) Open(p string) (io.ReadCloser, error) {
	m.mu.RLock()
	content, err := m.fs.ReadFile(p)
	m.mu.RUnlock()
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// Exists reports whether an object is present. Test helper, not part of Store.
func (m *MemoryStore) Exists(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.fs.Stat(p)
	return err == nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
