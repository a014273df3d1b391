package store

import (
	"context"
	"sync"

	id "greengate/pkg/domain"
	"greengate/pkg/platform/sentinel"

	"greengate/internal/patient/models"
)

// InMemory is the development and test implementation of the patient record
// store. One record per user, with partner client ID uniqueness enforced the
// same way the Postgres schema does.
type InMemory struct {
	mu        sync.RWMutex
	byUser    map[id.UserID]*models.Record
	byPartner map[string]id.UserID
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		byUser:    make(map[id.UserID]*models.Record),
		byPartner: make(map[string]id.UserID),
	}
}

// Create inserts a new record. Returns sentinel.ErrConflict when the user
// already has a record or the partner client ID is taken.
func (s *InMemory) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[record.UserID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byPartner[record.PartnerClientID]; exists {
		return sentinel.ErrConflict
	}
	s.put(record)
	return nil
}

// Update overwrites an existing record. Last write wins; the sync worker and
// request handlers may race on the same record and that is acceptable.
func (s *InMemory) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.byUser[record.UserID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if owner, taken := s.byPartner[record.PartnerClientID]; taken && owner != record.UserID {
		return sentinel.ErrConflict
	}
	delete(s.byPartner, existing.PartnerClientID)
	s.put(record)
	return nil
}

// Upsert inserts or replaces the record for its user.
func (s *InMemory) Upsert(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, taken := s.byPartner[record.PartnerClientID]; taken && owner != record.UserID {
		return sentinel.ErrConflict
	}
	if existing, exists := s.byUser[record.UserID]; exists {
		delete(s.byPartner, existing.PartnerClientID)
	}
	s.put(record)
	return nil
}

// FindByUserID returns the record owned by userID.
func (s *InMemory) FindByUserID(_ context.Context, userID id.UserID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.byUser[userID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

// FindByPartnerClientID returns the record the partner knows by clientID.
func (s *InMemory) FindByPartnerClientID(_ context.Context, partnerClientID string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, exists := s.byPartner[partnerClientID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byUser[userID]
	return &clone, nil
}

// DeleteByUserID removes a record, used only by the resync flow.
func (s *InMemory) DeleteByUserID(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.byUser[userID]
	if !exists {
		return sentinel.ErrNotFound
	}
	delete(s.byPartner, record.PartnerClientID)
	delete(s.byUser, userID)
	return nil
}

// ListPending returns records that are not yet fully verified and not
// local-fallback, i.e. the set the sync worker refreshes.
func (s *InMemory) ListPending(_ context.Context) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.Record
	for _, record := range s.byUser {
		if record.IsLocalFallback() {
			continue
		}
		if record.IsKYCVerified && record.AdminApproval == models.ApprovalVerified {
			continue
		}
		if record.AdminApproval == models.ApprovalRejected {
			continue
		}
		clone := *record
		pending = append(pending, &clone)
	}
	return pending, nil
}

// put stores a copy under both indexes. Callers hold the write lock.
func (s *InMemory) put(record *models.Record) {
	clone := *record
	s.byUser[clone.UserID] = &clone
	s.byPartner[clone.PartnerClientID] = clone.UserID
}
