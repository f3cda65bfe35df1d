package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"boxinator/internal/audit"
	"boxinator/internal/notification"
	pricingmodels "boxinator/internal/pricing/models"
	"boxinator/internal/shipment/metrics"
	"boxinator/internal/shipment/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/platform/tx"
)

const maxTrackingAttempts = 3

// Store is the shipment persistence port.
type Store interface {
	Create(ctx context.Context, sh *models.Shipment) error
	FindByID(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error)
	FindByIDForUpdate(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error)
	FindByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error)
	UpdateStatus(ctx context.Context, shipmentID id.ShipmentID, status models.Status, at time.Time) error
	Delete(ctx context.Context, shipmentID id.ShipmentID) error
	List(ctx context.Context, filter models.Filter) (id.Page[*models.Shipment], error)
	Stats(ctx context.Context, from, to *time.Time) ([]models.StatusStats, error)
	AppendCostAudit(ctx context.Context, entry models.CostAudit) error
}

// HistoryRecorder writes status history and admin actions inside the
// caller's transaction.
type HistoryRecorder interface {
	AppendStatusChange(ctx context.Context, entry audit.StatusChange) error
	AppendAdminAction(ctx context.Context, entry audit.AdminAction) error
	History(ctx context.Context, shipmentID id.ShipmentID) ([]audit.StatusChange, error)
}

// Calculator prices a (box type, country) pair.
type Calculator interface {
	Calculate(ctx context.Context, boxTypeID id.BoxTypeID, countryID id.CountryID) (*pricingmodels.CostBreakdown, error)
}

// TrackingGenerator mints tracking identifiers.
type TrackingGenerator interface {
	Generate() (string, error)
}

// ProfileProvider returns the stored sender details of a registered user.
type ProfileProvider interface {
	SenderProfile(ctx context.Context, userID id.UserID) (*models.Party, error)
}

// Notifier accepts a notification without blocking on delivery.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message)
}

// CountryLookup resolves destination names for tracking views.
type CountryLookup interface {
	GetCountry(ctx context.Context, countryID id.CountryID) (*pricingmodels.Country, error)
}

// Service runs the shipment lifecycle.
type Service struct {
	store      Store
	history    HistoryRecorder
	calculator Calculator
	tracking   TrackingGenerator
	profiles   ProfileProvider
	tx         tx.Runner
	notifier   Notifier
	countries  CountryLookup
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithCountryLookup(c CountryLookup) Option {
	return func(s *Service) {
		s.countries = c
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notification.Message) {}

func New(store Store, history HistoryRecorder, calculator Calculator, tracking TrackingGenerator, profiles ProfileProvider, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:      store,
		history:    history,
		calculator: calculator,
		tracking:   tracking,
		profiles:   profiles,
		tx:         runner,
		notifier:   nopNotifier{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("boxinator/shipment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// loadForUpdate locks a shipment row for the rest of the transaction.
func (s *Service) loadForUpdate(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error) {
	sh, err := s.store.FindByIDForUpdate(ctx, shipmentID)
	return sh, shipmentLoadError(err)
}

func shipmentLoadError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "shipment not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load shipment")
}

// notify hands msg to the notifier detached from request cancellation.
func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if msg.To == "" {
		s.logger.WarnContext(ctx, "notification skipped, no contact email", "template", msg.Template)
		return
	}
	s.notifier.Notify(context.WithoutCancel(ctx), msg)
}
