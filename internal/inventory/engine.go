package inventory

import (
	"sort"
	"time"
)

// Input is one complete dataset as handed over by an ingestion source.
type Input struct {
	ShipmentRows  []Row             `json:"shipment_rows"`
	TreatmentRows []Row             `json:"treatment_rows"`
	Reported      ReportedInventory `json:"reported"`
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Catalog Catalog
	// SortByDate stably orders events by date before replay. When false the
	// slice order of the input is the effective order.
	SortByDate bool
}

// Engine derives inventory state from a full event log. It keeps no state
// between calls; every Compute replays the whole input.
type Engine struct {
	catalog    Catalog
	normalizer *Normalizer
	sortByDate bool
}

// NewEngine constructs an Engine.
func NewEngine(opts EngineOptions) *Engine {
	return &Engine{
		catalog:    opts.Catalog,
		normalizer: NewNormalizer(opts.Catalog),
		sortByDate: opts.SortByDate,
	}
}

// Catalog returns the lookup tables the engine classifies with.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// Compute normalises the raw rows and derives a snapshot.
func (e *Engine) Compute(in Input) Snapshot {
	batch := e.normalizer.Normalize(in.ShipmentRows, in.TreatmentRows)
	snap := e.ComputeEvents(batch.Shipments, batch.Treatments, in.Reported)
	snap.RawShipmentRows = batch.RawShipmentRows
	snap.RawTreatmentRows = batch.RawTreatmentRows
	snap.DroppedShipments = batch.DroppedShipments
	snap.DroppedTreatments = batch.DroppedTreatments
	return snap
}

// ComputeEvents derives a snapshot from already typed events.
func (e *Engine) ComputeEvents(shipments []ShipmentEvent, treatments []TreatmentEvent, reported ReportedInventory) Snapshot {
	if e.sortByDate {
		shipments = sortedShipments(shipments)
		treatments = sortedTreatments(treatments)
	}
	journeys := BuildJourneys(shipments, treatments)
	rec := Reconcile(shipments, reported, e.catalog)
	return Snapshot{
		Catalog:          e.catalog,
		Journeys:         journeys.Journeys,
		Unresolved:       journeys.Unresolved,
		Inventory:        Aggregate(shipments, treatments, e.catalog),
		Reconciliation:   rec,
		Summary:          Summarize(shipments, treatments, journeys, rec),
		RawShipmentRows:  len(shipments),
		RawTreatmentRows: len(treatments),
	}
}

func sortedShipments(in []ShipmentEvent) []ShipmentEvent {
	out := append([]ShipmentEvent(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return dateBefore(out[i].DeliveryDate, out[j].DeliveryDate)
	})
	return out
}

func sortedTreatments(in []TreatmentEvent) []TreatmentEvent {
	out := append([]TreatmentEvent(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return dateBefore(out[i].TreatmentDate, out[j].TreatmentDate)
	})
	return out
}

// dateBefore orders parsed dates chronologically and unparsed ones last.
func dateBefore(a, b EventDate) bool {
	switch {
	case a.Valid && b.Valid:
		return a.Time.Before(b.Time)
	case a.Valid:
		return true
	default:
		return false
	}
}

// Snapshot is the full derived state for one dataset. ID and GeneratedAt are
// stamped by the service that requested the computation.
type Snapshot struct {
	ID                string                  `json:"id,omitempty"`
	GeneratedAt       time.Time               `json:"generated_at,omitempty"`
	Catalog           Catalog                 `json:"catalog"`
	Journeys          map[string]*UnitJourney `json:"journeys"`
	Unresolved        []TreatmentEvent        `json:"unresolved"`
	Inventory         Inventory               `json:"inventory"`
	Reconciliation    Reconciliation          `json:"reconciliation"`
	Summary           Summary                 `json:"summary"`
	RawShipmentRows   int                     `json:"raw_shipment_rows"`
	RawTreatmentRows  int                     `json:"raw_treatment_rows"`
	DroppedShipments  int                     `json:"dropped_shipments"`
	DroppedTreatments int                     `json:"dropped_treatments"`
}
