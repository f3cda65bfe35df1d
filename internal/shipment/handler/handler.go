package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"boxinator/internal/shipment/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/httputil"
	"boxinator/pkg/requestcontext"
)

// Service is the lifecycle the handler exposes.
type Service interface {
	CreateShipment(ctx context.Context, actor id.Actor, req models.CreateRequest) (*models.Shipment, error)
	UpdateStatus(ctx context.Context, actor id.Actor, shipmentID id.ShipmentID, status models.Status, note string) (*models.Shipment, error)
	DeleteShipment(ctx context.Context, actor id.Actor, shipmentID id.ShipmentID) error
	GetShipment(ctx context.Context, actor id.Actor, shipmentID id.ShipmentID) (*models.ShipmentWithHistory, error)
	ListShipments(ctx context.Context, actor id.Actor, filter models.Filter) (id.Page[*models.Shipment], error)
	TrackShipment(ctx context.Context, trackingID string) (*models.TrackingView, error)
	Stats(ctx context.Context, actor id.Actor, from, to *time.Time) (*models.Stats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the shipment endpoints. Guests reach them too; the service
// decides what each actor may do.
func (h *Handler) Register(r chi.Router) {
	r.Post("/shipments", h.HandleCreate)
	r.Get("/shipments", h.HandleList)
	r.Get("/shipments/{id}", h.HandleGet)
	r.Patch("/shipments/{id}/status", h.HandleUpdateStatus)
	r.Delete("/shipments/{id}", h.HandleDelete)
	r.Get("/track/{trackingID}", h.HandleTrack)
}

// RegisterAdmin mounts administrator reporting.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/stats", h.HandleStats)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateShipmentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sh, err := h.service.CreateShipment(ctx, requestcontext.Actor(ctx), req.toDomain())
	if err != nil {
		h.logWarnOrError(ctx, "create shipment failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toShipmentResponse(sh))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.logWarnOrError(ctx, "invalid shipment filter", err)
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.ListShipments(ctx, requestcontext.Actor(ctx), filter)
	if err != nil {
		h.logWarnOrError(ctx, "list shipments failed", err)
		httputil.WriteError(w, err)
		return
	}
	resp := ShipmentPageResponse{
		Items:  make([]ShipmentResponse, 0, len(page.Items)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for _, sh := range page.Items {
		resp.Items = append(resp.Items, toShipmentResponse(sh))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shipmentID, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	sh, err := h.service.GetShipment(ctx, requestcontext.Actor(ctx), shipmentID)
	if err != nil {
		h.logWarnOrError(ctx, "get shipment failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(sh))
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	shipmentID, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sh, err := h.service.UpdateStatus(ctx, requestcontext.Actor(ctx), shipmentID, req.status, req.Note)
	if err != nil {
		h.logWarnOrError(ctx, "update shipment status failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toShipmentResponse(sh))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shipmentID, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteShipment(ctx, requestcontext.Actor(ctx), shipmentID); err != nil {
		h.logWarnOrError(ctx, "delete shipment failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTrack handles GET /track/{trackingID}. No authentication is needed.
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.service.TrackShipment(ctx, chi.URLParam(r, "trackingID"))
	if err != nil {
		h.logWarnOrError(ctx, "track shipment failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, to, err := parseRange(r.URL.Query())
	if err != nil {
		h.logWarnOrError(ctx, "invalid stats range", err)
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.service.Stats(ctx, requestcontext.Actor(ctx), from, to)
	if err != nil {
		h.logWarnOrError(ctx, "shipment stats failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatsResponse(stats))
}

// shipmentID parses the {id} path parameter. A malformed id cannot name a
// shipment, so it is reported as not found.
func (h *Handler) shipmentID(w http.ResponseWriter, r *http.Request) (id.ShipmentID, bool) {
	shipmentID, err := id.ParseShipmentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "shipment not found"))
		return id.ShipmentID{}, false
	}
	return shipmentID, true
}

func (h *Handler) logWarnOrError(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
