package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"boxinator/internal/pricing/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/httputil"
	"boxinator/pkg/requestcontext"
)

// Catalog is the pricing catalog the handler serves.
type Catalog interface {
	ListActiveCountries(ctx context.Context) ([]*models.Country, error)
	ListActiveBoxTypes(ctx context.Context) ([]*models.BoxType, error)
	CreateCountry(ctx context.Context, actor id.Actor, req models.CreateCountryRequest) (*models.Country, error)
	CreateBoxType(ctx context.Context, actor id.Actor, req models.CreateBoxTypeRequest) (*models.BoxType, error)
	UpdateCountryMultiplier(ctx context.Context, actor id.Actor, countryID id.CountryID, multiplier decimal.Decimal, reason string) (*models.Country, error)
	CorrectBoxTypePrice(ctx context.Context, actor id.Actor, boxTypeID id.BoxTypeID, baseCost decimal.Decimal) (*models.BoxType, error)
	MultiplierHistory(ctx context.Context, actor id.Actor, countryID id.CountryID) ([]models.MultiplierChange, error)
	UpdateCountry(ctx context.Context, actor id.Actor, countryID id.CountryID, req models.UpdateCountryRequest) (*models.Country, error)
	SetBoxTypeActive(ctx context.Context, actor id.Actor, boxTypeID id.BoxTypeID, active bool) (*models.BoxType, error)
}

// Calculator prices previews.
type Calculator interface {
	Calculate(ctx context.Context, boxTypeID id.BoxTypeID, countryID id.CountryID) (*models.CostBreakdown, error)
}

// Handler serves catalog reads, cost previews and admin pricing changes.
type Handler struct {
	catalog    Catalog
	calculator Calculator
	logger     *slog.Logger
}

func New(catalog Catalog, calculator Calculator, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalog, calculator: calculator, logger: logger}
}

// Register mounts the public catalog endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/countries", h.HandleListCountries)
	r.Get("/box-types", h.HandleListBoxTypes)
	r.Post("/cost/preview", h.HandleCostPreview)
}

// RegisterAdmin mounts the administrator pricing endpoints. The caller is
// expected to guard r with the administrator middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/countries", h.HandleCreateCountry)
	r.Patch("/admin/countries/{id}", h.HandleUpdateCountry)
	r.Patch("/admin/countries/{id}/multiplier", h.HandleUpdateMultiplier)
	r.Get("/admin/countries/{id}/multiplier-log", h.HandleMultiplierLog)
	r.Post("/admin/box-types", h.HandleCreateBoxType)
	r.Patch("/admin/box-types/{id}/price", h.HandleCorrectPrice)
	r.Patch("/admin/box-types/{id}/active", h.HandleSetBoxTypeActive)
}

func (h *Handler) HandleListCountries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countries, err := h.catalog.ListActiveCountries(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list countries",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := listResponse[CountryResponse]{Items: make([]CountryResponse, 0, len(countries))}
	for _, c := range countries {
		resp.Items = append(resp.Items, toCountryResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleListBoxTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	boxTypes, err := h.catalog.ListActiveBoxTypes(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list box types",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := listResponse[BoxTypeResponse]{Items: make([]BoxTypeResponse, 0, len(boxTypes))}
	for _, b := range boxTypes {
		resp.Items = append(resp.Items, toBoxTypeResponse(b))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleCostPreview handles POST /cost/preview. It never writes.
func (h *Handler) HandleCostPreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CostPreviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	breakdown, err := h.calculator.Calculate(ctx, req.boxTypeID, req.countryID)
	if err != nil {
		h.logWarnOrError(ctx, "cost preview failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCostBreakdownResponse(breakdown))
}

func (h *Handler) HandleCreateCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateCountryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	country, err := h.catalog.CreateCountry(ctx, requestcontext.Actor(ctx), *req)
	if err != nil {
		h.logWarnOrError(ctx, "create country failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCountryResponse(country))
}

func (h *Handler) HandleCreateBoxType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateBoxTypeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	boxType, err := h.catalog.CreateBoxType(ctx, requestcontext.Actor(ctx), *req)
	if err != nil {
		h.logWarnOrError(ctx, "create box type failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toBoxTypeResponse(boxType))
}

func (h *Handler) HandleUpdateMultiplier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	countryID, err := id.ParseCountryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "country not found"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateMultiplierRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	country, err := h.catalog.UpdateCountryMultiplier(ctx, requestcontext.Actor(ctx), countryID, req.Multiplier, req.Reason)
	if err != nil {
		h.logWarnOrError(ctx, "update multiplier failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCountryResponse(country))
}

func (h *Handler) HandleMultiplierLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	countryID, err := id.ParseCountryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "country not found"))
		return
	}
	changes, err := h.catalog.MultiplierHistory(ctx, requestcontext.Actor(ctx), countryID)
	if err != nil {
		h.logWarnOrError(ctx, "multiplier log failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse[MultiplierChangeResponse]{Items: toMultiplierChangeResponses(changes)})
}

func (h *Handler) HandleCorrectPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	boxTypeID, err := id.ParseBoxTypeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "box type not found"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[CorrectPriceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	boxType, err := h.catalog.CorrectBoxTypePrice(ctx, requestcontext.Actor(ctx), boxTypeID, req.BaseCost)
	if err != nil {
		h.logWarnOrError(ctx, "correct box type price failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBoxTypeResponse(boxType))
}

func (h *Handler) HandleUpdateCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	countryID, err := id.ParseCountryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "country not found"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateCountryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	country, err := h.catalog.UpdateCountry(ctx, requestcontext.Actor(ctx), countryID, *req)
	if err != nil {
		h.logWarnOrError(ctx, "update country failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCountryResponse(country))
}

func (h *Handler) HandleSetBoxTypeActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	boxTypeID, err := id.ParseBoxTypeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "box type not found"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetActiveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	boxType, err := h.catalog.SetBoxTypeActive(ctx, requestcontext.Actor(ctx), boxTypeID, *req.Active)
	if err != nil {
		h.logWarnOrError(ctx, "set box type status failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBoxTypeResponse(boxType))
}

// logWarnOrError logs client errors at WARN and everything else at ERROR.
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
