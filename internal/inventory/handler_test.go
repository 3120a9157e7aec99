package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	_ "github.com/vialtrack/vialtrack/testing"
)

type stubQueryService struct {
	snap     Snapshot
	err      error
	ingested *Input
}

func (s *stubQueryService) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.snap, s.err
}

func (s *stubQueryService) Refresh(ctx context.Context) (Snapshot, error) {
	return s.snap, s.err
}

func (s *stubQueryService) Ingest(ctx context.Context, in Input) (Snapshot, error) {
	s.ingested = &in
	return s.snap, s.err
}

func (s *stubQueryService) UnitJourney(ctx context.Context, unitID string) (UnitJourney, error) {
	if s.err != nil {
		return UnitJourney{}, s.err
	}
	return s.snap.UnitJourney(unitID)
}

func (s *stubQueryService) InventoryForProduct(ctx context.Context, product string) ([]LocationView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap.InventoryForProduct(product)
}

func (s *stubQueryService) DiscrepancyForProduct(ctx context.Context, product string) ([]DiscrepancyRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap.DiscrepancyForProduct(product)
}

func (s *stubQueryService) LocationDetail(ctx context.Context, location string) (LocationDetail, error) {
	if s.err != nil {
		return LocationDetail{}, s.err
	}
	return s.snap.LocationDetail(location)
}

func (s *stubQueryService) Preview(in Input) Snapshot {
	return NewEngine(EngineOptions{Catalog: DefaultCatalog()}).Compute(in)
}

func newTestRouter(svc QueryService) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/inventory", h.MountRoutes)
	return r
}

func serve(t *testing.T, router http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, body))
	return rr
}

func TestHandlerQueries(t *testing.T) {
	snap := viewSnapshot()
	snap.ID = "snap-1"
	router := newTestRouter(&stubQueryService{snap: snap})

	rr := serve(t, router, http.MethodGet, "/inventory/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "snap-1", rr.Header().Get("X-Snapshot-ID"))
	var summary summaryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	require.Equal(t, 5, summary.Summary.TotalVials)

	rr = serve(t, router, http.MethodGet, "/inventory/journeys/24004-003", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var journey UnitJourney
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &journey))
	require.Equal(t, JourneyAdministered, journey.Status)

	rr = serve(t, router, http.MethodGet, "/inventory/products/ACE2016/locations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var views []LocationView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 4)

	rr = serve(t, router, http.MethodGet, "/inventory/products/ACE2016/discrepancies", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, router, http.MethodGet, "/inventory/locations/CryoGene%20Lab", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var detail LocationDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	require.Equal(t, "CryoGene Lab", detail.Entry.Location)

	rr = serve(t, router, http.MethodGet, "/inventory/treatments/unresolved", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
}

func TestHandlerErrors(t *testing.T) {
	router := newTestRouter(&stubQueryService{snap: viewSnapshot()})

	rr := serve(t, router, http.MethodGet, "/inventory/journeys/missing", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = serve(t, router, http.MethodGet, "/inventory/products/ACE-2016/locations", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, router, http.MethodGet, "/inventory/products/NOPE/discrepancies", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, router, http.MethodGet, "/inventory/locations/Mars", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	failing := newTestRouter(&stubQueryService{err: fmt.Errorf("%w: down", ErrSourceUnavailable)})
	rr = serve(t, failing, http.MethodGet, "/inventory/summary", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	rr = serve(t, failing, http.MethodGet, "/inventory/journeys/24004-003", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	broken := newTestRouter(&stubQueryService{err: fmt.Errorf("boom")})
	rr = serve(t, broken, http.MethodPost, "/inventory/refresh", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandlerIngestAndPreview(t *testing.T) {
	svc := &stubQueryService{snap: Snapshot{ID: "after-ingest"}}
	router := newTestRouter(svc)

	payload := `{
		"shipment_rows": [{"Vial ID": "22011-001", "Product#": "ACE2016", "From_Location": "Acepodia TW", "To_Location": "CryoGene Lab"}],
		"treatment_rows": [],
		"reported": {"ACE2016": {"CryoGene Lab": {"Lot #22011": 3}}}
	}`

	rr := serve(t, router, http.MethodPost, "/inventory/datasets", bytes.NewBufferString(payload))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "after-ingest", rr.Header().Get("X-Snapshot-ID"))
	require.NotNil(t, svc.ingested)
	require.Len(t, svc.ingested.ShipmentRows, 1)
	require.Equal(t, 3, svc.ingested.Reported.Total("ACE2016", "CryoGene Lab"))

	rr = serve(t, router, http.MethodPost, "/inventory/preview", bytes.NewBufferString(payload))
	require.Equal(t, http.StatusOK, rr.Code)
	var preview Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &preview))
	rec, ok := preview.Reconciliation.Record("ACE2016", "CryoGene Lab")
	require.True(t, ok)
	require.Equal(t, -2, rec.Difference)

	rr = serve(t, router, http.MethodPost, "/inventory/datasets", bytes.NewBufferString(`{"unknown": true}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
