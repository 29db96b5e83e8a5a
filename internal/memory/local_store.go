package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

type localKey struct {
	sessionID string
	intent    models.Intent
}

// LocalStore keeps pending requests in process memory. Expired entries are
// dropped on read and swept on every write.
type LocalStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[localKey]*Pending
}

func NewLocalStore(ttl time.Duration) *LocalStore {
	return &LocalStore{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[localKey]*Pending),
	}
}

func (s *LocalStore) Load(_ context.Context, sessionID string, intent models.Intent) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := localKey{sessionID, intent}
	p, ok := s.pending[key]
	if !ok {
		return nil, nil
	}
	if s.expired(p) {
		delete(s.pending, key)
		return nil, nil
	}
	cp := *p
	cp.Params = p.Params.Clone()
	return &cp, nil
}

func (s *LocalStore) Save(_ context.Context, pending *Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, p := range s.pending {
		if s.expired(p) {
			delete(s.pending, key)
		}
	}

	cp := *pending
	cp.Params = pending.Params.Clone()
	s.pending[localKey{pending.SessionID, pending.Intent}] = &cp
	return nil
}

func (s *LocalStore) Clear(_ context.Context, sessionID string, intents ...models.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, intent := range intents {
		delete(s.pending, localKey{sessionID, intent})
	}
	return nil
}

// Len reports the number of stored entries, expired or not
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *LocalStore) expired(p *Pending) bool {
	return s.ttl > 0 && s.now().Sub(p.UpdatedAt) > s.ttl
}
