package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"boxinator/internal/audit"
	"boxinator/internal/notification"
	"boxinator/internal/shipment/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/requestcontext"
)

const maxNoteLength = 500

type statusState struct {
	Status models.Status `json:"status"`
}

// UpdateStatus moves a shipment along one edge of the lifecycle. The row is
// locked for the read-validate-mutate sequence, so concurrent conflicting
// updates linearize and the loser sees the winner's status.
func (s *Service) UpdateStatus(ctx context.Context, actor id.Actor, shipmentID id.ShipmentID, newStatus models.Status, note string) (_ *models.Shipment, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "shipment.update_status",
		attribute.String("shipment.id", shipmentID.String()),
		attribute.String("shipment.status", newStatus.String()),
	)
	defer func() { endSpan(span, err) }()

	if !newStatus.IsValid() {
		return nil, dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "status", Message: "is not a known status"},
		})
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "note", Message: "must be at most 500 characters"},
		})
	}
	now := requestcontext.Now(ctx)

	var previous models.Status
	var updated *models.Shipment
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		sh, err := s.loadForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(actor, sh, newStatus); err != nil {
			return err
		}

		if err := s.store.UpdateStatus(ctx, shipmentID, newStatus, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update shipment status")
		}
		if err := s.history.AppendStatusChange(ctx, audit.StatusChange{
			ShipmentID: shipmentID,
			Status:     string(newStatus),
			ActorID:    actor.ActorID(),
			Note:       note,
			At:         now,
		}); err != nil {
			return err
		}
		if actor.IsAdmin() {
			if err := s.recordStatusAction(ctx, actor, sh, newStatus, now); err != nil {
				return err
			}
		}

		previous = sh.Status
		next := *sh
		next.Status = newStatus
		next.UpdatedAt = now
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(previous.String(), newStatus.String())
	s.metrics.ObserveUpdate(start)
	s.logger.InfoContext(ctx, "shipment status changed",
		"shipment_id", shipmentID.String(),
		"from", previous.String(),
		"to", newStatus.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notify(ctx, notification.Message{
		To:       updated.ContactEmail(),
		Template: notification.TemplateShipmentStatusChanged,
		Data: map[string]any{
			"tracking_id": updated.TrackingID,
			"status":      newStatus.String(),
		},
	})
	return updated, nil
}

// authorizeTransition applies ownership first, then edge legality, then the
// owner's cancellation-only restriction.
func authorizeTransition(actor id.Actor, sh *models.Shipment, to models.Status) error {
	if !actor.IsAdmin() && !sh.IsOwnedBy(actor.ID) {
		return dErrors.New(dErrors.CodeForbidden, "not allowed to update this shipment")
	}
	if !models.CanTransition(sh.Status, to) {
		return dErrors.New(dErrors.CodeIllegalTransition,
			"cannot move shipment from "+sh.Status.String()+" to "+to.String())
	}
	if !actor.IsAdmin() && !models.IsOwnerCancellation(sh.Status, to) {
		return dErrors.New(dErrors.CodeForbidden, "owners may only cancel shipments")
	}
	return nil
}

func (s *Service) recordStatusAction(ctx context.Context, actor id.Actor, sh *models.Shipment, to models.Status, at time.Time) error {
	before, err := audit.Snapshot(statusState{Status: sh.Status})
	if err != nil {
		return err
	}
	after, err := audit.Snapshot(statusState{Status: to})
	if err != nil {
		return err
	}
	return s.history.AppendAdminAction(ctx, audit.AdminAction{
		ActorID:    actor.ID,
		Action:     audit.ActionUpdateShipmentStatus,
		TargetType: audit.TargetShipment,
		TargetID:   sh.ID.String(),
		Before:     before,
		After:      after,
		At:         at,
	})
}

// DeleteShipment removes a shipment that has not been delivered. The full
// snapshot goes to the admin log in the same transaction as the delete.
func (s *Service) DeleteShipment(ctx context.Context, actor id.Actor, shipmentID id.ShipmentID) (err error) {
	ctx, span := s.startSpan(ctx, "shipment.delete", attribute.String("shipment.id", shipmentID.String()))
	defer func() { endSpan(span, err) }()

	if !actor.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "administrator role required")
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		sh, err := s.loadForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if sh.Status == models.StatusDelivered {
			return dErrors.New(dErrors.CodeConflict, "delivered shipments cannot be deleted")
		}
		snapshot, err := audit.Snapshot(sh)
		if err != nil {
			return err
		}
		if err := s.history.AppendAdminAction(ctx, audit.AdminAction{
			ActorID:    actor.ID,
			Action:     audit.ActionDeleteShipment,
			TargetType: audit.TargetShipment,
			TargetID:   sh.ID.String(),
			Before:     snapshot,
		}); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, shipmentID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete shipment")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementDeleted()
	s.logger.InfoContext(ctx, "shipment deleted",
		"shipment_id", shipmentID.String(),
		"actor_id", actor.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
