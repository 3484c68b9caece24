package session

import (
	"context"
	"sync"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

// MemoryStore is a process-local Store used in tests and single-node
// development setups where Redis is not running.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	tokens  map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		tokens:  make(map[string]bool),
	}
}

func (s *MemoryStore) Put(ctx context.Context, sessionID string, method models.PaymentMethod, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(sessionID, method)] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string, method models.PaymentMethod) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey(sessionID, method)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string, method models.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey(sessionID, method))
	return nil
}

func (s *MemoryStore) AcquireVerify(ctx context.Context, sessionID string, method models.PaymentMethod, correlationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := verifyKey(sessionID, method, correlationID)
	if s.tokens[key] {
		return false, nil
	}
	s.tokens[key] = true
	return true, nil
}

func (s *MemoryStore) ReleaseVerify(ctx context.Context, sessionID string, method models.PaymentMethod, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, verifyKey(sessionID, method, correlationID))
	return nil
}
