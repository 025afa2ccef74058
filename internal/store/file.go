package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/0xReLogic/colofail/internal/registry"
)

// File persists the registry as a JSON document on local disk. Writes go
// through a temp file and rename so readers never see a partial document.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(ctx context.Context) (registry.FailingCountries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked()
}

func (f *File) loadLocked() (registry.FailingCountries, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, registry.ErrNotSeeded
	}
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return registry.Decode(string(data))
}

func (f *File) Save(ctx context.Context, fc registry.FailingCountries) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(fc)
}

func (f *File) saveLocked(fc registry.FailingCountries) error {
	raw, err := registry.Encode(fc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	if _, err := tmp.WriteString(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close registry file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}

func (f *File) Update(ctx context.Context, fn func(registry.FailingCountries) (registry.FailingCountries, error)) (registry.FailingCountries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, err := f.loadLocked()
	if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if err := f.saveLocked(next); err != nil {
		return nil, err
	}
	return next, nil
}

func (f *File) Seed(ctx context.Context, fc registry.FailingCountries) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(f.path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat registry file: %w", err)
	}
	if err := f.saveLocked(fc); err != nil {
		return false, err
	}
	return true, nil
}

func (f *File) Close() error { return nil }
