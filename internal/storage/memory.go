package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bulatminnakhmetov/property-site/internal/media"
)

type memoryObject struct {
	data        []byte
	contentType string
	updated     time.Time
}

// MemoryStore is an in-process object store for local runs and tests.
// The Fail* hooks, when set, can reject individual operations.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time

	FailPut    func(key string) error
	FailDelete func(key string) error
	FailList   func(prefix string) error
	FailSign   func(key string) error

	// Stale keys survive Delete, as with an eventually consistent listing.
	Stale map[string]bool
	// OnPut, when set, is called with the key of every Put before FailPut.
	OnPut func(key string)
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]media.ObjectInfo, error) {
	if s.FailList != nil {
		if err := s.FailList(prefix); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []media.ObjectInfo
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, media.ObjectInfo{
			Key:         key,
			ContentType: obj.contentType,
			Size:        int64(len(obj.data)),
			Updated:     obj.updated,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) SignRead(_ context.Context, key string, ttl time.Duration) (string, error) {
	return s.sign("GET", key, ttl, "")
}

func (s *MemoryStore) SignWrite(_ context.Context, key string, ttl time.Duration, contentType string) (string, error) {
	return s.sign("PUT", key, ttl, contentType)
}

func (s *MemoryStore) sign(method, key string, ttl time.Duration, contentType string) (string, error) {
	if s.FailSign != nil {
		if err := s.FailSign(key); err != nil {
			return "", err
		}
	}
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", fmt.Sprint(s.now().Add(ttl).Unix()))
	if contentType != "" {
		q.Set("contentType", contentType)
	}
	return "memory://objects/" + key + "?" + q.Encode(), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if s.OnPut != nil {
		s.OnPut(key)
	}
	if s.FailPut != nil {
		if err := s.FailPut(key); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType, updated: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if s.FailDelete != nil {
		if err := s.FailDelete(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Stale[key] {
		return nil
	}
	delete(s.objects, key)
	return nil
}

// Keys returns every stored key in byte order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Read returns the content of key.
func (s *MemoryStore) Read(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	return obj.data, ok
}
