package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrObjectNotFound is returned by MemoryObjectStore for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// MemoryObjectStore is an in-process ObjectStore used by tests.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	tags    map[string]map[string]string
	deletes []string

	// FailDeletes makes Delete return an error, for exercising
	// log-and-continue paths.
	FailDeletes bool
	// FailTags makes GetTags return an error.
	FailTags bool
}

// NewMemoryObjectStore initializes an empty object store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string][]byte),
		tags:    make(map[string]map[string]string),
	}
}

// Put stores an object with a tag set.
func (m *MemoryObjectStore) Put(key string, data []byte, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.tags[key] = tags
}

// Deleted returns keys removed so far.
func (m *MemoryObjectStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

func (m *MemoryObjectStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?expires=%d", url.PathEscape(key), int(expiry.Seconds())), nil
}

func (m *MemoryObjectStore) PresignPut(_ context.Context, key string, expiry time.Duration, tags map[string]string) (string, http.Header, error) {
	extra := http.Header{}
	if len(tags) > 0 {
		values := url.Values{}
		for k, v := range tags {
			values.Set(k, v)
		}
		extra.Set(TaggingHeader, values.Encode())
	}
	u := fmt.Sprintf("https://objects.test/%s?upload=1&expires=%d", url.PathEscape(key), int(expiry.Seconds()))
	return u, extra, nil
}

func (m *MemoryObjectStore) GetTags(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTags {
		return nil, errors.New("tag read failed")
	}
	t, ok := m.tags[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return t, nil
}

func (m *MemoryObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDeletes {
		return errors.New("delete failed")
	}
	delete(m.objects, key)
	delete(m.tags, key)
	m.deletes = append(m.deletes, key)
	return nil
}
