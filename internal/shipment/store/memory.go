package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"boxinator/internal/shipment/models"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/platform/tx"
)

// InMemoryStore keeps shipments and cost audits in process. Writes register
// undo actions with the enclosing tx.MemoryRunner.
type InMemoryStore struct {
	mu         sync.RWMutex
	shipments  map[id.ShipmentID]models.Shipment
	byTracking map[string]id.ShipmentID
	order      []id.ShipmentID
	costAudits map[id.ShipmentID][]models.CostAudit
	failNext   map[string]error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		shipments:  make(map[id.ShipmentID]models.Shipment),
		byTracking: make(map[string]id.ShipmentID),
		costAudits: make(map[id.ShipmentID][]models.CostAudit),
		failNext:   make(map[string]error),
	}
}

// FailNext makes the next call of op ("create", "update_status", "delete" or
// "cost_audit") return err.
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

// Create inserts sh. A duplicate tracking id is sentinel.ErrAlreadyUsed.
func (s *InMemoryStore) Create(ctx context.Context, sh *models.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("create"); err != nil {
		return err
	}
	if _, taken := s.byTracking[sh.TrackingID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.shipments[sh.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.shipments[sh.ID] = *sh
	s.byTracking[sh.TrackingID] = sh.ID
	s.order = append(s.order, sh.ID)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.remove(sh.ID)
	})
	return nil
}

func (s *InMemoryStore) remove(shipmentID id.ShipmentID) {
	sh, ok := s.shipments[shipmentID]
	if !ok {
		return
	}
	delete(s.shipments, shipmentID)
	delete(s.byTracking, sh.TrackingID)
	delete(s.costAudits, shipmentID)
	s.order = slices.DeleteFunc(s.order, func(x id.ShipmentID) bool { return x == shipmentID })
}

func (s *InMemoryStore) FindByID(_ context.Context, shipmentID id.ShipmentID) (*models.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shipments[shipmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sh, nil
}

// FindByIDForUpdate is FindByID; the MemoryRunner lock already serializes writers.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error) {
	return s.FindByID(ctx, shipmentID)
}

func (s *InMemoryStore) FindByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error) {
	s.mu.RLock()
	shipmentID, ok := s.byTracking[trackingID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, shipmentID)
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, shipmentID id.ShipmentID, status models.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("update_status"); err != nil {
		return err
	}
	sh, ok := s.shipments[shipmentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := sh
	sh.Status = status
	sh.UpdatedAt = at
	s.shipments[shipmentID] = sh

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, still := s.shipments[shipmentID]; still {
			s.shipments[shipmentID] = prev
		}
	})
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, shipmentID id.ShipmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("delete"); err != nil {
		return err
	}
	sh, ok := s.shipments[shipmentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	audits := s.costAudits[shipmentID]
	pos := slices.Index(s.order, shipmentID)
	s.remove(shipmentID)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.shipments[shipmentID] = sh
		s.byTracking[sh.TrackingID] = shipmentID
		if audits != nil {
			s.costAudits[shipmentID] = audits
		}
		s.order = slices.Insert(s.order, min(pos, len(s.order)), shipmentID)
	})
	return nil
}

// List returns matching shipments newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) (id.Page[*models.Shipment], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Shipment
	for i := len(s.order) - 1; i >= 0; i-- {
		sh := s.shipments[s.order[i]]
		if filter.Matches(&sh) {
			out = append(out, &sh)
		}
	}
	slices.SortStableFunc(out, func(a, b *models.Shipment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return id.Window(out, filter.Pagination), nil
}

// Stats groups shipments created within [from, to] by status.
func (s *InMemoryStore) Stats(_ context.Context, from, to *time.Time) ([]models.StatusStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	window := models.Filter{From: from, To: to}
	byStatus := make(map[models.Status]*models.StatusStats)
	for _, sh := range s.shipments {
		if !window.Matches(&sh) {
			continue
		}
		st, ok := byStatus[sh.Status]
		if !ok {
			st = &models.StatusStats{Status: sh.Status, Revenue: decimal.Zero}
			byStatus[sh.Status] = st
		}
		st.Count++
		st.Revenue = st.Revenue.Add(sh.Cost.FinalCost)
	}
	var out []models.StatusStats
	for _, status := range models.AllStatuses {
		if st, ok := byStatus[status]; ok {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *InMemoryStore) AppendCostAudit(ctx context.Context, audit models.CostAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("cost_audit"); err != nil {
		return err
	}
	if _, ok := s.shipments[audit.ShipmentID]; !ok {
		return sentinel.ErrInvalidState
	}
	s.costAudits[audit.ShipmentID] = append(s.costAudits[audit.ShipmentID], audit)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows := slices.DeleteFunc(s.costAudits[audit.ShipmentID], func(a models.CostAudit) bool { return a.ID == audit.ID })
		if len(rows) == 0 {
			delete(s.costAudits, audit.ShipmentID)
			return
		}
		s.costAudits[audit.ShipmentID] = rows
	})
	return nil
}

func (s *InMemoryStore) ListCostAudits(_ context.Context, shipmentID id.ShipmentID) ([]models.CostAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.costAudits[shipmentID]), nil
}
