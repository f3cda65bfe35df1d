package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"boxinator/internal/audit"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/httputil"
	"boxinator/pkg/requestcontext"
)

// Reader serves the admin action log.
type Reader interface {
	AdminLog(ctx context.Context, filter audit.AdminLogFilter) (id.Page[audit.AdminAction], error)
}

type Handler struct {
	reader Reader
	logger *slog.Logger
}

func New(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, logger: logger}
}

// RegisterAdmin mounts GET /admin/audit-log. r must already be restricted to
// administrators.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/audit-log", h.HandleAdminLog)
}

type AdminLogResponse struct {
	Items  []audit.AdminAction `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func (h *Handler) HandleAdminLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.logger.WarnContext(ctx, "invalid audit log filter",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	page, err := h.reader.AdminLog(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load audit log",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	items := page.Items
	if items == nil {
		items = []audit.AdminAction{}
	}
	httputil.WriteJSON(w, http.StatusOK, AdminLogResponse{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func parseFilter(q url.Values) (audit.AdminLogFilter, error) {
	var f audit.AdminLogFilter
	var v []dErrors.FieldViolation

	if raw := q.Get("actor_id"); raw != "" {
		actorID, err := id.ParseUserID(raw)
		if err != nil {
			v = append(v, dErrors.FieldViolation{Field: "actor_id", Message: "is not a valid identifier"})
		} else {
			f.ActorID = &actorID
		}
	}
	f.Action = audit.Action(strings.ToUpper(strings.TrimSpace(q.Get("action"))))
	f.TargetType = strings.TrimSpace(q.Get("target_type"))

	for _, key := range []string{"from", "to"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			v = append(v, dErrors.FieldViolation{Field: key, Message: "must be an RFC 3339 timestamp"})
			continue
		}
		if key == "from" {
			f.From = &t
		} else {
			f.To = &t
		}
	}
	for _, key := range []string{"limit", "offset"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v = append(v, dErrors.FieldViolation{Field: key, Message: "must be a non-negative integer"})
			continue
		}
		if key == "limit" {
			f.Limit = n
		} else {
			f.Offset = n
		}
	}

	if len(v) > 0 {
		return audit.AdminLogFilter{}, dErrors.WithViolations(dErrors.CodeValidation, v)
	}
	return f, nil
}
