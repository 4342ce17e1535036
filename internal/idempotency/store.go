// Package idempotency replays the first response of a request that is
// retried with the same Idempotency-Key.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInFlight means another request with the same key has not finished yet
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

// Response is a captured HTTP response
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store keeps reservations and captured responses by key
type Store interface {
	// Begin reserves key for a new request. It returns the stored response
	// when the key already completed, or ErrInFlight while it is reserved.
	Begin(ctx context.Context, key string, ttl time.Duration) (*Response, error)
	// Complete stores the response for key
	Complete(ctx context.Context, key string, resp Response, ttl time.Duration) error
	// Release drops the reservation so the request can be retried
	Release(ctx context.Context, key string) error
}

type memoryEntry struct {
	resp      *Response
	expiresAt time.Time
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Begin(_ context.Context, key string, ttl time.Duration) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		if e.resp == nil {
			return nil, ErrInFlight
		}
		resp := *e.resp
		return &resp, nil
	}

	s.entries[key] = memoryEntry{expiresAt: now.Add(ttl)}
	s.evictLocked(now)
	return nil, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, resp Response, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{resp: &resp, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) evictLocked(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
