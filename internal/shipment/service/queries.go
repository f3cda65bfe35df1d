package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"boxinator/internal/shipment/models"
	"boxinator/internal/shipment/tracking"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
)

// GetShipment returns a shipment and its history. Shipments the actor may not
// see are reported as not found.
func (s *Service) GetShipment(ctx context.Context, actor id.Actor, shipmentID id.ShipmentID) (_ *models.ShipmentWithHistory, err error) {
	ctx, span := s.startSpan(ctx, "shipment.get", attribute.String("shipment.id", shipmentID.String()))
	defer func() { endSpan(span, err) }()

	sh, err := s.store.FindByID(ctx, shipmentID)
	if err != nil {
		return nil, shipmentLoadError(err)
	}
	if !actor.IsAdmin() && !sh.IsOwnedBy(actor.ID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
	}
	history, err := s.history.History(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return &models.ShipmentWithHistory{Shipment: sh, History: history}, nil
}

// ListShipments pages through shipments newest first. Non-administrators only
// ever see their own.
func (s *Service) ListShipments(ctx context.Context, actor id.Actor, filter models.Filter) (_ id.Page[*models.Shipment], err error) {
	ctx, span := s.startSpan(ctx, "shipment.list")
	defer func() { endSpan(span, err) }()

	if actor.IsGuest() {
		return id.Page[*models.Shipment]{}, dErrors.New(dErrors.CodeForbidden, "sign in to list shipments")
	}
	if err := validateRange(filter.From, filter.To); err != nil {
		return id.Page[*models.Shipment]{}, err
	}
	if !actor.IsAdmin() {
		uid := actor.ID
		filter.UserID = &uid
	}
	filter.Pagination = filter.Pagination.Normalize()

	page, err := s.store.List(ctx, filter)
	if err != nil {
		return id.Page[*models.Shipment]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list shipments")
	}
	return page, nil
}

// TrackShipment is the anonymous lookup by tracking id. The view leaves out
// parties, actors and notes.
func (s *Service) TrackShipment(ctx context.Context, trackingID string) (_ *models.TrackingView, err error) {
	ctx, span := s.startSpan(ctx, "shipment.track")
	defer func() { endSpan(span, err) }()

	normalized, err := tracking.Validate(trackingID)
	if err != nil {
		return nil, err
	}
	sh, err := s.store.FindByTrackingID(ctx, normalized)
	if err != nil {
		return nil, shipmentLoadError(err)
	}
	history, err := s.history.History(ctx, sh.ID)
	if err != nil {
		return nil, err
	}

	events := make([]models.TrackingEvent, 0, len(history))
	for _, h := range history {
		events = append(events, models.TrackingEvent{Status: models.Status(h.Status), At: h.At})
	}
	return &models.TrackingView{
		TrackingID:  sh.TrackingID,
		Status:      sh.Status,
		Destination: s.destination(ctx, sh),
		CreatedAt:   sh.CreatedAt,
		History:     events,
	}, nil
}

// destination prefers the catalog name and falls back to the receiver's
// country as entered.
func (s *Service) destination(ctx context.Context, sh *models.Shipment) string {
	if s.countries == nil {
		return sh.Receiver.Country
	}
	country, err := s.countries.GetCountry(ctx, sh.CountryID)
	if err != nil {
		s.logger.WarnContext(ctx, "destination lookup failed",
			"country_id", sh.CountryID.String(),
			"error", err,
		)
		return sh.Receiver.Country
	}
	return country.Name
}

// Stats aggregates shipments created in [from, to] by status.
func (s *Service) Stats(ctx context.Context, actor id.Actor, from, to *time.Time) (_ *models.Stats, err error) {
	ctx, span := s.startSpan(ctx, "shipment.stats")
	defer func() { endSpan(span, err) }()

	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "administrator role required")
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	rows, err := s.store.Stats(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute shipment stats")
	}

	stats := &models.Stats{From: from, To: to, ByStatus: rows, Revenue: decimal.Zero}
	for _, r := range rows {
		stats.Total += r.Count
		stats.Revenue = stats.Revenue.Add(r.Revenue)
	}
	return stats, nil
}

func validateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "from", Message: "must not be after to"},
		})
	}
	return nil
}
