package acpstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/phenrril/printshop/internal/domain"
)

type memEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is the single-instance fallback when Redis is not configured.
// Sessions are stored encoded so callers never share a pointer.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]memEntry
	ttl time.Duration
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]memEntry{}, ttl: DefaultTTL, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.ACPSession, error) {
	s.mu.Lock()
	e, ok := s.m[id]
	if ok && s.now().After(e.expires) {
		delete(s.m, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	var sess domain.ACPSession
	if err := json.Unmarshal(e.data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *MemoryStore) Put(_ context.Context, sess *domain.ACPSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.m {
		if now.After(e.expires) {
			delete(s.m, id)
		}
	}
	s.m[sess.ID] = memEntry{data: b, expires: now.Add(s.ttl)}
	return nil
}
