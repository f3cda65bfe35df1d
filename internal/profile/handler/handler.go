// Package handler lets registered users keep the sender details used for
// their shipments.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"boxinator/internal/shipment/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/httputil"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/requestcontext"
)

type Store interface {
	SenderProfile(ctx context.Context, userID id.UserID) (*models.Party, error)
	Save(ctx context.Context, userID id.UserID, p models.Party) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/profile", h.HandleGet)
	r.Put("/profile", h.HandlePut)
}

// ProfileRequest is the body of PUT /profile.
type ProfileRequest struct {
	Sender models.Party `json:"sender"`
}

func (r *ProfileRequest) Normalize() {
	r.Sender.Normalize()
}

func (r *ProfileRequest) Validate() error {
	if v := models.PartyViolations("sender", r.Sender, true); len(v) > 0 {
		return dErrors.WithViolations(dErrors.CodeValidation, v)
	}
	return nil
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := registered(w, ctx)
	if !ok {
		return
	}
	p, err := h.store.SenderProfile(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "profile not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to load profile",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ProfileRequest{Sender: *p})
}

func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, ok := registered(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.store.Save(ctx, actor.ID, req.Sender); err != nil {
		h.logger.ErrorContext(ctx, "failed to save profile",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func registered(w http.ResponseWriter, ctx context.Context) (id.Actor, bool) {
	actor := requestcontext.Actor(ctx)
	if actor.IsGuest() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign in to manage your profile"))
		return id.Actor{}, false
	}
	return actor, true
}
