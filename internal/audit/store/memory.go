package store

import (
	"context"
	"slices"
	"sync"

	"boxinator/internal/audit"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/tx"
)

// InMemoryStore keeps audit rows in insertion order.
type InMemoryStore struct {
	mu       sync.RWMutex
	history  map[id.ShipmentID][]audit.StatusChange
	actions  []audit.AdminAction
	failNext map[string]error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		history:  make(map[id.ShipmentID][]audit.StatusChange),
		failNext: make(map[string]error),
	}
}

// FailNext makes the next call of op ("status_change" or "admin_action")
// return err. Used to inject faults into the enclosing transaction.
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

func (s *InMemoryStore) AppendStatusChange(ctx context.Context, entry audit.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("status_change"); err != nil {
		return err
	}
	s.history[entry.ShipmentID] = append(s.history[entry.ShipmentID], entry)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows := s.history[entry.ShipmentID]
		s.history[entry.ShipmentID] = slices.DeleteFunc(rows, func(r audit.StatusChange) bool { return r.ID == entry.ID })
		if len(s.history[entry.ShipmentID]) == 0 {
			delete(s.history, entry.ShipmentID)
		}
	})
	return nil
}

func (s *InMemoryStore) AppendAdminAction(ctx context.Context, entry audit.AdminAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("admin_action"); err != nil {
		return err
	}
	s.actions = append(s.actions, entry)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.actions = slices.DeleteFunc(s.actions, func(a audit.AdminAction) bool { return a.ID == entry.ID })
	})
	return nil
}

// ListStatusChanges returns history in insertion order. Rows are appended
// under the shipment's row lock, so insertion order is commit order even when
// the request timestamps are not.
func (s *InMemoryStore) ListStatusChanges(_ context.Context, shipmentID id.ShipmentID) ([]audit.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[shipmentID]), nil
}

// ListAdminActions returns matching actions newest first.
func (s *InMemoryStore) ListAdminActions(_ context.Context, filter audit.AdminLogFilter) (id.Page[audit.AdminAction], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []audit.AdminAction
	for i := len(s.actions) - 1; i >= 0; i-- {
		if filter.Matches(s.actions[i]) {
			matched = append(matched, s.actions[i])
		}
	}
	slices.SortStableFunc(matched, func(a, b audit.AdminAction) int { return b.At.Compare(a.At) })
	return id.Window(matched, filter.Pagination), nil
}
