// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/refmatch/storage"
)

// Bucket is a flat, name-addressed object store.
type Bucket interface {
	// Get returns the object's bytes or storage.ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put writes an object atomically, replacing any previous version.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes an object. Missing objects are not an error.
	Delete(ctx context.Context, name string) error
	// List returns object names with the given prefix in sorted order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// LocalBucket stores objects as files in one directory.
type LocalBucket struct {
	root string
}

var _ Bucket = (*LocalBucket)(nil)

// NewLocalBucket creates a LocalBucket rooted at dir, creating it if needed.
func NewLocalBucket(dir string) (*LocalBucket, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &LocalBucket{root: dir}, nil
}

func (b *LocalBucket) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(b.root, name), nil
}

// Get reads the named file.
func (b *LocalBucket) Get(_ context.Context, name string) ([]byte, error) {
	p, err := b.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	return data, err
}

// Put writes to a temporary file in the same directory and renames it
// over the target.
func (b *LocalBucket) Put(_ context.Context, name string, data []byte) error {
	p, err := b.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.root, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Delete removes the named file.
func (b *LocalBucket) Delete(_ context.Context, name string) error {
	p, err := b.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns file names with the given prefix, skipping temporaries.
func (b *LocalBucket) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasPrefix(n, prefix) {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// MemoryBucket is an in-memory Bucket for testing.
// Thread-safe for concurrent reads and writes.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Bucket = (*MemoryBucket)(nil)

// NewMemoryBucket creates an empty MemoryBucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string][]byte)}
}

// Get returns a copy of the object.
func (b *MemoryBucket) Get(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data.
func (b *MemoryBucket) Put(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = append([]byte(nil), data...)
	return nil
}

// Delete removes the object.
func (b *MemoryBucket) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, name)
	return nil
}

// List returns object names with the given prefix.
func (b *MemoryBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var names []string
	for n := range b.objects {
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}
