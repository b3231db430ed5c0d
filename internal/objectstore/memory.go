package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutErr, when set, fails every Put. Lets tests simulate a store outage.
	PutErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	s.mu.Lock()
	putErr := s.PutErr
	s.mu.Unlock()
	if putErr != nil {
		return "", putErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read object: %w", err)
	}

	ref := uuid.New().String()

	s.mu.Lock()
	s.objects[ref] = data
	s.mu.Unlock()

	return ref, nil
}

func (s *MemoryStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.objects[ref]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Exists(ctx context.Context, ref string) (bool, error) {
	s.mu.Lock()
	_, ok := s.objects[ref]
	s.mu.Unlock()

	return ok, nil
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Seed stores data under a fixed ref, bypassing ref generation.
func (s *MemoryStore) Seed(ref string, data []byte) {
	s.mu.Lock()
	s.objects[ref] = data
	s.mu.Unlock()
}
