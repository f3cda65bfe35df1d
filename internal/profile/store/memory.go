// Package store persists sender profiles of registered users.
package store

import (
	"context"
	"sync"

	"boxinator/internal/shipment/models"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]models.Party
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.UserID]models.Party)}
}

// SenderProfile returns a copy of the stored profile.
func (s *InMemoryStore) SenderProfile(_ context.Context, userID id.UserID) (*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// Save inserts or replaces the profile of userID.
func (s *InMemoryStore) Save(_ context.Context, userID id.UserID, p models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = p
	return nil
}
