package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Object is one stored blob
type Object struct {
	Data        []byte
	ContentType string
}

// Backend is an in-memory implementation of the simplemedia.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]Object),
	}
}

var _ simplemedia.BlobStore = (*Backend)(nil)

// Put stores the content of r under key
func (b *Backend) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if key == "" {
		return 0, errors.New("key is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = Object{Data: data, ContentType: contentType}
	return int64(len(data)), nil
}

// Delete removes key
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return fmt.Errorf("%w: %s", simplemedia.ErrObjectNotFound, key)
	}
	delete(b.objects, key)
	return nil
}

// Get returns a copy of the object stored under key
func (b *Backend) Get(key string) (Object, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return Object{}, false
	}
	obj.Data = slices.Clone(obj.Data)
	return obj, true
}

// Keys returns the stored keys in sorted order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
