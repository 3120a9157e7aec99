package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vialtrack/vialtrack/internal/platform/httpx"
)

// maxUploadBytes bounds JSON dataset uploads.
const maxUploadBytes = 32 << 20

// QueryService is the part of Service used by the HTTP handler.
type QueryService interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Refresh(ctx context.Context) (Snapshot, error)
	Ingest(ctx context.Context, in Input) (Snapshot, error)
	Preview(in Input) Snapshot
	UnitJourney(ctx context.Context, unitID string) (UnitJourney, error)
	InventoryForProduct(ctx context.Context, product string) ([]LocationView, error)
	DiscrepancyForProduct(ctx context.Context, product string) ([]DiscrepancyRecord, error)
	LocationDetail(ctx context.Context, location string) (LocationDetail, error)
}

// Handler wires HTTP endpoints for inventory queries.
type Handler struct {
	logger    *slog.Logger
	service   QueryService
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service QueryService) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.handleSummary)
	r.Get("/journeys/{unitID}", h.handleJourney)
	r.Get("/products/{product}/locations", h.handleProductInventory)
	r.Get("/products/{product}/discrepancies", h.handleProductDiscrepancies)
	r.Get("/locations/{location}", h.handleLocation)
	r.Get("/treatments/unresolved", h.handleUnresolved)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/datasets", h.handleIngest)
	r.Post("/preview", h.handlePreview)
}

type summaryResponse struct {
	SnapshotID     string         `json:"snapshot_id"`
	Summary        Summary        `json:"summary"`
	Reconciliation Reconciliation `json:"reconciliation"`
	Dropped        droppedRows    `json:"dropped"`
}

type droppedRows struct {
	Shipments  int `json:"shipments"`
	Treatments int `json:"treatments"`
}

func newSummaryResponse(snap Snapshot) summaryResponse {
	return summaryResponse{
		SnapshotID:     snap.ID,
		Summary:        snap.Summary,
		Reconciliation: snap.Reconciliation,
		Dropped:        droppedRows{Shipments: snap.DroppedShipments, Treatments: snap.DroppedTreatments},
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newSummaryResponse(snap))
}

func (h *Handler) handleJourney(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.pathParam(w, r, "unitID", "required,max=64")
	if !ok {
		return
	}
	journey, err := h.service.UnitJourney(r.Context(), unitID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, journey)
}

func (h *Handler) handleProductInventory(w http.ResponseWriter, r *http.Request) {
	product, ok := h.pathParam(w, r, "product", "required,alphanum,max=32")
	if !ok {
		return
	}
	views, err := h.service.InventoryForProduct(r.Context(), product)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) handleProductDiscrepancies(w http.ResponseWriter, r *http.Request) {
	product, ok := h.pathParam(w, r, "product", "required,alphanum,max=32")
	if !ok {
		return
	}
	records, err := h.service.DiscrepancyForProduct(r.Context(), product)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleLocation(w http.ResponseWriter, r *http.Request) {
	location, ok := h.pathParam(w, r, "location", "required,max=128")
	if !ok {
		return
	}
	detail, err := h.service.LocationDetail(r.Context(), location)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) handleUnresolved(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	treatments := snap.UnresolvedTreatments()
	if treatments == nil {
		treatments = []TreatmentEvent{}
	}
	httpx.JSON(w, http.StatusOK, treatments)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Refresh(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("X-Snapshot-ID", snap.ID)
	httpx.JSON(w, http.StatusOK, newSummaryResponse(snap))
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Ingest(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("X-Snapshot-ID", snap.ID)
	httpx.JSON(w, http.StatusCreated, newSummaryResponse(snap))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	snap := h.service.Preview(in)
	w.Header().Set("X-Snapshot-ID", snap.ID)
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Dataset", err.Error())
		return Input{}, false
	}
	return in, true
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (Snapshot, bool) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, err)
		return Snapshot{}, false
	}
	w.Header().Set("X-Snapshot-ID", snap.ID)
	return snap, true
}

func (h *Handler) pathParam(w http.ResponseWriter, r *http.Request, name, rules string) (string, bool) {
	raw := chi.URLParam(r, name)
	value, err := url.PathUnescape(raw)
	if err != nil {
		value = raw
	}
	if err := h.validator.Var(value, rules); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" is invalid")
		return "", false
	}
	return value, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnitNotFound), errors.Is(err, ErrUnknownProduct), errors.Is(err, ErrUnknownLocation):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrSourceUnavailable):
		h.logger.Error("inventory source", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Source Unavailable", "inventory data source unavailable")
	default:
		h.logger.Error("inventory request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
