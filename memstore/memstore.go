// Package memstore is an in-memory CredentialStore for tests and
// development. Production deployments implement the interface against
// their own account database.
package memstore

import (
	"context"
	"sync"

	"github.com/rescuelink/authcore"
)

// Store holds principals in memory, indexed by identifier and by ID.
// Safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	byIdentifier map[string]*authcore.PrincipalRecord
	byID         map[string]*authcore.PrincipalRecord
}

func New() *Store {
	return &Store{
		byIdentifier: make(map[string]*authcore.PrincipalRecord),
		byID:         make(map[string]*authcore.PrincipalRecord),
	}
}

// Seed inserts or replaces a principal. The record is indexed under
// both its email and, when set, its phone number.
func (s *Store) Seed(rec authcore.PrincipalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := rec
	s.byID[r.ID] = &r
	if r.Email != "" {
		s.byIdentifier[r.Email] = &r
	}
	if r.Phone != "" {
		s.byIdentifier[r.Phone] = &r
	}
}

func (s *Store) FindPrincipal(_ context.Context, identifier string) (authcore.PrincipalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byIdentifier[identifier]
	if !ok {
		return authcore.PrincipalRecord{}, authcore.ErrPrincipalNotFound
	}
	return *r, nil
}

func (s *Store) FindPrincipalByID(_ context.Context, id string) (authcore.PrincipalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return authcore.PrincipalRecord{}, authcore.ErrPrincipalNotFound
	}
	return *r, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}
	r.PasswordHash = hash
	return nil
}

func (s *Store) MarkVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}
	r.Verified = true
	return nil
}
