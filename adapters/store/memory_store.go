package store

import (
	"context"
	"sync"

	"github.com/layer-3/presence/core"
)

// MemoryStore is an in-memory ports.Store for tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	enrollments map[string]core.Enrollment
	records     []core.VerificationRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{enrollments: make(map[string]core.Enrollment)}
}

// SaveEnrollment implements ports.Store.
func (s *MemoryStore) SaveEnrollment(_ context.Context, enr core.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[enr.UserID] = enr
	return nil
}

// Enrollment implements ports.Store.
func (s *MemoryStore) Enrollment(_ context.Context, userID string) (core.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enr, ok := s.enrollments[userID]
	if !ok {
		return core.Enrollment{}, core.ErrNotEnrolled
	}
	return enr, nil
}

// LogVerification implements ports.Store.
func (s *MemoryStore) LogVerification(_ context.Context, rec core.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// History implements ports.Store.
func (s *MemoryStore) History(_ context.Context, userID string) ([]core.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.VerificationRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}
