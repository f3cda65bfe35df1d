package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"boxinator/internal/audit"
	"boxinator/internal/notification"
	"boxinator/internal/shipment/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/requestcontext"
)

const (
	kindGuest      = "guest"
	kindRegistered = "registered"
)

// CreateShipment validates req against the actor, prices it, and stores the
// shipment together with its first history row and cost audit. A tracking id
// collision retries the whole insert with a fresh id.
func (s *Service) CreateShipment(ctx context.Context, actor id.Actor, req models.CreateRequest) (_ *models.Shipment, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "shipment.create", attribute.String("actor.role", actor.Role.String()))
	defer func() { endSpan(span, err) }()

	sh, kind, err := s.prepare(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		trackingID, err := s.tracking.Generate()
		if err != nil {
			return nil, err
		}
		sh.ID = id.NewShipmentID()
		sh.TrackingID = trackingID

		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return s.insert(ctx, actor, sh)
		})
		if err == nil {
			break
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, err
		}
		s.metrics.IncrementTrackingCollision()
		s.logger.WarnContext(ctx, "tracking id collision",
			"attempt", attempt,
			"request_id", requestcontext.RequestID(ctx),
		)
		if attempt == maxTrackingAttempts {
			return nil, dErrors.New(dErrors.CodeConflict, "could not allocate a unique tracking id")
		}
	}

	span.SetAttributes(attribute.String("shipment.id", sh.ID.String()))
	s.metrics.IncrementCreated(kind)
	s.metrics.ObserveCreate(start)
	s.logger.InfoContext(ctx, "shipment created",
		"shipment_id", sh.ID.String(),
		"tracking_id", sh.TrackingID,
		"kind", kind,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notify(ctx, notification.Message{
		To:       sh.ContactEmail(),
		Template: notification.TemplateShipmentCreated,
		Data: map[string]any{
			"tracking_id": sh.TrackingID,
			"final_cost":  sh.Cost.FinalCost.StringFixed(2),
			"currency":    sh.Cost.Currency,
		},
	})
	return sh, nil
}

// prepare resolves the sender, validates the request and prices it. Party
// problems and reference problems are reported together: with any party
// violation the result is a validation_error listing the references too,
// otherwise bad references alone yield invalid_reference.
func (s *Service) prepare(ctx context.Context, actor id.Actor, req models.CreateRequest) (*models.Shipment, string, error) {
	if req == nil {
		return nil, "", dErrors.New(dErrors.CodeBadRequest, "shipment request is required")
	}
	now := requestcontext.Now(ctx)
	sh := &models.Shipment{Status: models.StatusCreated, CreatedAt: now, UpdatedAt: now}

	var (
		kind       string
		violations []dErrors.FieldViolation
	)
	if actor.IsGuest() {
		guest := models.GuestShipmentRequest{ShipmentDetails: req.Details()}
		if g, ok := req.(models.GuestShipmentRequest); ok {
			guest = g
		}
		guest.Normalize()
		violations = dErrors.ViolationsOf(guest.Validate())
		sh.Sender = guest.Sender
		sh.GuestEmail = guest.Sender.Email
		kind = kindGuest
	} else {
		// A registered sender always comes from the profile.
		authed := models.AuthenticatedShipmentRequest{ShipmentDetails: req.Details()}
		authed.Normalize()
		violations = dErrors.ViolationsOf(authed.Validate())

		sender, err := s.senderProfile(ctx, actor)
		switch {
		case dErrors.HasCode(err, dErrors.CodeValidation):
			violations = append(dErrors.ViolationsOf(err), violations...)
		case err != nil:
			return nil, "", err
		default:
			violations = append(models.PartyViolations("sender", *sender, true), violations...)
			sh.Sender = *sender
		}
		uid := actor.ID
		sh.UserID = &uid
		kind = kindRegistered
	}

	details := req.Details()
	sh.Receiver = details.Receiver
	sh.Receiver.Normalize()
	sh.BoxTypeID = details.BoxTypeID
	sh.CountryID = details.CountryID
	sh.Weight = details.Weight

	cost, err := s.calculator.Calculate(ctx, details.BoxTypeID, details.CountryID)
	switch {
	case dErrors.HasCode(err, dErrors.CodeInvalidReference) && len(violations) > 0:
		violations = append(violations, dErrors.ViolationsOf(err)...)
	case err != nil:
		return nil, "", err
	}
	if len(violations) > 0 {
		return nil, "", dErrors.WithViolations(dErrors.CodeValidation, violations)
	}
	sh.Cost = models.Cost{
		BaseCost:   cost.BaseCost,
		Multiplier: cost.Multiplier,
		FinalCost:  cost.FinalCost,
		Currency:   cost.Currency,
	}
	return sh, kind, nil
}

func (s *Service) senderProfile(ctx context.Context, actor id.Actor) (*models.Party, error) {
	profile, err := s.profiles.SenderProfile(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
				{Field: "sender", Message: "profile is incomplete"},
			})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sender profile")
	}
	sender := *profile
	if sender.Email == "" {
		sender.Email = actor.Email
	}
	sender.Normalize()
	return &sender, nil
}

func (s *Service) insert(ctx context.Context, actor id.Actor, sh *models.Shipment) error {
	if err := s.store.Create(ctx, sh); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create shipment")
	}
	if err := s.history.AppendStatusChange(ctx, audit.StatusChange{
		ShipmentID: sh.ID,
		Status:     string(models.StatusCreated),
		ActorID:    actor.ActorID(),
		Note:       "created",
		At:         sh.CreatedAt,
	}); err != nil {
		return err
	}
	if err := s.store.AppendCostAudit(ctx, models.CostAudit{
		ID:         id.NewEntryID(),
		ShipmentID: sh.ID,
		BoxTypeID:  sh.BoxTypeID,
		CountryID:  sh.CountryID,
		BaseCost:   sh.Cost.BaseCost,
		Multiplier: sh.Cost.Multiplier,
		FinalCost:  sh.Cost.FinalCost,
		Currency:   sh.Cost.Currency,
		ComputedAt: sh.CreatedAt,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record cost audit")
	}
	return nil
}
