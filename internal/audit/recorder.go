package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mssola/useragent"

	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/requestcontext"
)

// Store persists audit rows. Implementations join the caller's transaction
// through ctx and expose no update or delete.
type Store interface {
	AppendStatusChange(ctx context.Context, entry StatusChange) error
	AppendAdminAction(ctx context.Context, entry AdminAction) error
	ListStatusChanges(ctx context.Context, shipmentID id.ShipmentID) ([]StatusChange, error)
	ListAdminActions(ctx context.Context, filter AdminLogFilter) (id.Page[AdminAction], error)
}

// Recorder appends immutable history and admin-action rows. Appends are
// fail-closed: an error is returned to the caller so the enclosing
// transaction rolls back.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) AppendStatusChange(ctx context.Context, entry StatusChange) error {
	if entry.ShipmentID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "status change requires a shipment id")
	}
	if entry.Status == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "status change requires a status")
	}
	if entry.ID.IsNil() {
		entry.ID = id.NewEntryID()
	}
	if entry.At.IsZero() {
		entry.At = requestcontext.Now(ctx)
	}

	if err := r.store.AppendStatusChange(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to append status history",
			"shipment_id", entry.ShipmentID.String(),
			"status", entry.Status,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record status history")
	}
	return nil
}

// AppendAdminAction records an administrator mutation. Client IP and user
// agent default to the request metadata when not set.
func (r *Recorder) AppendAdminAction(ctx context.Context, entry AdminAction) error {
	if entry.ActorID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "admin action requires an actor")
	}
	if entry.Action == "" || entry.TargetType == "" || entry.TargetID == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "admin action requires action and target")
	}
	if entry.ID.IsNil() {
		entry.ID = id.NewEntryID()
	}
	if entry.At.IsZero() {
		entry.At = requestcontext.Now(ctx)
	}
	if entry.ClientIP == "" {
		entry.ClientIP = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = SummarizeUserAgent(requestcontext.UserAgent(ctx))
	}

	if err := r.store.AppendAdminAction(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to append admin action",
			"action", string(entry.Action),
			"target_id", entry.TargetID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record admin action")
	}
	return nil
}

// History returns a shipment's status changes in the order they committed.
func (r *Recorder) History(ctx context.Context, shipmentID id.ShipmentID) ([]StatusChange, error) {
	entries, err := r.store.ListStatusChanges(ctx, shipmentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load status history")
	}
	return entries, nil
}

// AdminLog returns admin actions newest first.
func (r *Recorder) AdminLog(ctx context.Context, filter AdminLogFilter) (id.Page[AdminAction], error) {
	filter.Pagination = filter.Pagination.Normalize()
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return id.Page[AdminAction]{}, dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "from", Message: "must not be after to"},
		})
	}
	page, err := r.store.ListAdminActions(ctx, filter)
	if err != nil {
		return id.Page[AdminAction]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin log")
	}
	return page, nil
}

// Snapshot marshals v for AdminAction.Before/After.
func Snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to snapshot admin action state")
	}
	return b, nil
}

// SummarizeUserAgent reduces a raw User-Agent header to "Browser/Version (OS)".
func SummarizeUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return truncate(raw, 120)
	}
	summary := name
	if version != "" {
		summary = fmt.Sprintf("%s/%s", name, version)
	}
	if ua.Bot() {
		summary += " [bot]"
	}
	if osName := ua.OS(); osName != "" {
		summary = fmt.Sprintf("%s (%s)", summary, osName)
	}
	return summary
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
