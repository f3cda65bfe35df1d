package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"boxinator/internal/pricing/models"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/platform/tx"
)

// InMemoryStore is the catalog store used when no database is configured and
// in tests. Writes register undo actions with the enclosing tx.MemoryRunner.
type InMemoryStore struct {
	mu        sync.RWMutex
	boxTypes  map[id.BoxTypeID]models.BoxType
	countries map[id.CountryID]models.Country
	changes   []models.MultiplierChange
	failNext  map[string]error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		boxTypes:  make(map[id.BoxTypeID]models.BoxType),
		countries: make(map[id.CountryID]models.Country),
		failNext:  make(map[string]error),
	}
}

// FailNext makes the next call of op fail with err.
func (s *InMemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

func (s *InMemoryStore) takeFault(op string) error {
	err := s.failNext[op]
	delete(s.failNext, op)
	return err
}

func (s *InMemoryStore) FindBoxType(_ context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boxTypes[boxTypeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &b, nil
}

// FindBoxTypeForUpdate is FindBoxType; the MemoryRunner lock already serializes writers.
func (s *InMemoryStore) FindBoxTypeForUpdate(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error) {
	return s.FindBoxType(ctx, boxTypeID)
}

func (s *InMemoryStore) FindCountry(_ context.Context, countryID id.CountryID) (*models.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.countries[countryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) FindCountryForUpdate(ctx context.Context, countryID id.CountryID) (*models.Country, error) {
	return s.FindCountry(ctx, countryID)
}

func (s *InMemoryStore) ListActiveBoxTypes(_ context.Context) ([]*models.BoxType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.BoxType, 0, len(s.boxTypes))
	for _, b := range s.boxTypes {
		if b.Active {
			out = append(out, &b)
		}
	}
	slices.SortFunc(out, func(a, b *models.BoxType) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *InMemoryStore) ListActiveCountries(_ context.Context) ([]*models.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Country, 0, len(s.countries))
	for _, c := range s.countries {
		if c.Active {
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.Country) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// CreateBoxType inserts b; the name must be unique.
func (s *InMemoryStore) CreateBoxType(ctx context.Context, b *models.BoxType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.boxTypes {
		if strings.EqualFold(existing.Name, b.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.boxTypes[b.ID] = *b
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.boxTypes, b.ID)
	})
	return nil
}

// CreateCountry inserts c; the code must be unique.
func (s *InMemoryStore) CreateCountry(ctx context.Context, c *models.Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.countries {
		if existing.Code == c.Code {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.countries[c.ID] = *c
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.countries, c.ID)
	})
	return nil
}

func (s *InMemoryStore) UpdateCountryMultiplier(ctx context.Context, countryID id.CountryID, multiplier decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("update_multiplier"); err != nil {
		return err
	}
	c, ok := s.countries[countryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := c
	c.Multiplier = multiplier
	c.UpdatedAt = at
	s.countries[countryID] = c
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.countries[countryID] = prev
	})
	return nil
}

func (s *InMemoryStore) UpdateBoxTypeBaseCost(ctx context.Context, boxTypeID id.BoxTypeID, baseCost decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boxTypes[boxTypeID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := b
	b.BaseCost = baseCost
	b.UpdatedAt = at
	s.boxTypes[boxTypeID] = b
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.boxTypes[boxTypeID] = prev
	})
	return nil
}

// UpdateCountryDetails stores c's name, source flag and availability.
func (s *InMemoryStore) UpdateCountryDetails(ctx context.Context, c *models.Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("update_country"); err != nil {
		return err
	}
	stored, ok := s.countries[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := stored
	stored.Name = c.Name
	stored.IsSource = c.IsSource
	stored.Active = c.Active
	stored.UpdatedAt = c.UpdatedAt
	s.countries[c.ID] = stored
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.countries[c.ID] = prev
	})
	return nil
}

func (s *InMemoryStore) UpdateBoxTypeActive(ctx context.Context, boxTypeID id.BoxTypeID, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("update_box_type_active"); err != nil {
		return err
	}
	b, ok := s.boxTypes[boxTypeID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := b
	b.Active = active
	b.UpdatedAt = at
	s.boxTypes[boxTypeID] = b
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.boxTypes[boxTypeID] = prev
	})
	return nil
}

func (s *InMemoryStore) AppendMultiplierChange(ctx context.Context, change models.MultiplierChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("append_multiplier_change"); err != nil {
		return err
	}
	s.changes = append(s.changes, change)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.changes = slices.DeleteFunc(s.changes, func(c models.MultiplierChange) bool { return c.ID == change.ID })
	})
	return nil
}

// ListMultiplierChanges returns a country's changes in insertion order.
func (s *InMemoryStore) ListMultiplierChanges(_ context.Context, countryID id.CountryID) ([]models.MultiplierChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.MultiplierChange
	for _, c := range s.changes {
		if c.CountryID == countryID {
			out = append(out, c)
		}
	}
	return out, nil
}
