package inventory

import (
	"errors"
	"time"
)

// TransferType classifies a shipment by its endpoints.
type TransferType string

const (
	// TransferDepotToDepot moves vials between two storage depots.
	TransferDepotToDepot TransferType = "Depot to Depot"
	// TransferDepotToSite ships vials to or from a clinical site.
	TransferDepotToSite TransferType = "Depot to Site"
	// TransferOther covers endpoints the catalog cannot classify.
	TransferOther TransferType = "Other"
)

// JourneyStatus is the terminal state of a vial journey.
type JourneyStatus string

const (
	// JourneyInTransit marks a vial that has shipments but no administration.
	JourneyInTransit JourneyStatus = "In Transit"
	// JourneyAdministered marks a vial given to a patient. It is terminal.
	JourneyAdministered JourneyStatus = "Administered"
)

// StockStatus flags the stock level of a location.
type StockStatus string

const (
	// StockCritical means no vials remain at the location.
	StockCritical StockStatus = "Critical"
	// StockLow means the location is at or under the low stock threshold.
	StockLow StockStatus = "Low"
	// StockOK means the location is above the threshold.
	StockOK StockStatus = "OK"
)

// LocationType tells depots and sites apart in query results.
type LocationType string

const (
	LocationDepot LocationType = "depot"
	LocationSite  LocationType = "site"
)

// Row is one raw record from a shipment or treatment sheet keyed by column header.
type Row map[string]any

// Shipment sheet columns.
const (
	ColDeliveryDate   = "Delivery Date"
	ColProductNo      = "Product#"
	ColVialID         = "Vial ID"
	ColBoxID          = "Box ID"
	ColFromLocation   = "From_Location"
	ColAction         = "Action"
	ColToLocation     = "To_Location"
	ColTransferType   = "Transfer Type"
	ColMTFNo          = "MTF No."
	ColTrackingNo     = "Shipment Tracking No."
	ColRemark         = "Remark"
	ColRecordedBy     = "Recorded by"
	ColProduct        = "Product"
	ColTreatmentDate  = "Treatment Date"
	ColTreatmentCycle = "Treatment Cycle"
	ColSiteNo         = "Site No"
	ColSiteName       = "Site Name"
	ColPatientID      = "Patient ID"
)

// ShipmentColumns lists the shipment sheet headers in sheet order.
var ShipmentColumns = []string{
	ColDeliveryDate, ColProductNo, ColVialID, ColBoxID, ColFromLocation, ColAction,
	ColToLocation, ColTransferType, ColMTFNo, ColTrackingNo, ColRemark, ColRecordedBy,
}

// TreatmentColumns lists the treatment sheet headers in sheet order.
var TreatmentColumns = []string{
	ColProduct, ColVialID, ColTreatmentDate, ColTreatmentCycle,
	ColSiteNo, ColSiteName, ColPatientID, ColRemark,
}

// EventDate keeps the raw cell next to its parsed time. Valid is false when
// the raw value could not be parsed; Raw is then the only usable form.
type EventDate struct {
	Raw   string    `json:"raw"`
	Time  time.Time `json:"time"`
	Valid bool      `json:"valid"`
}

// String renders the date as YYYY-MM-DD when parsed, otherwise the raw value.
func (d EventDate) String() string {
	if d.Valid {
		return d.Time.Format("2006-01-02")
	}
	return d.Raw
}

// ShipmentEvent is one physical movement of one vial.
type ShipmentEvent struct {
	DeliveryDate         EventDate    `json:"delivery_date"`
	Product              string       `json:"product"`
	UnitID               string       `json:"unit_id"`
	ContainerID          string       `json:"container_id,omitempty"`
	FromLocation         string       `json:"from_location"`
	Action               string       `json:"action,omitempty"`
	ToLocation           string       `json:"to_location"`
	TransferType         TransferType `json:"transfer_type"`
	RecordedTransferType string       `json:"recorded_transfer_type,omitempty"`
	ReferenceNo          string       `json:"reference_no,omitempty"`
	TrackingNo           string       `json:"tracking_no,omitempty"`
	Remark               string       `json:"remark,omitempty"`
	RecordedBy           string       `json:"recorded_by,omitempty"`
}

// TreatmentEvent records the administration of one vial to a patient.
type TreatmentEvent struct {
	Product       string    `json:"product"`
	UnitID        string    `json:"unit_id"`
	TreatmentDate EventDate `json:"treatment_date"`
	CycleLabel    string    `json:"cycle_label,omitempty"`
	SiteID        string    `json:"site_id,omitempty"`
	SiteName      string    `json:"site_name,omitempty"`
	PatientID     string    `json:"patient_id"`
	Remark        string    `json:"remark,omitempty"`
}

// Movement is one leg of a vial journey.
type Movement struct {
	Date         EventDate    `json:"date"`
	From         string       `json:"from"`
	To           string       `json:"to"`
	TransferType TransferType `json:"transfer_type"`
	TrackingNo   string       `json:"tracking_no,omitempty"`
	ReferenceNo  string       `json:"reference_no,omitempty"`
}

// UnitJourney is the ordered movement history of one vial plus its administration.
type UnitJourney struct {
	UnitID        string        `json:"unit_id"`
	Product       string        `json:"product"`
	Movements     []Movement    `json:"movements"`
	PatientID     *string       `json:"patient_id,omitempty"`
	TreatmentDate *EventDate    `json:"treatment_date,omitempty"`
	TreatmentSite *string       `json:"treatment_site,omitempty"`
	Status        JourneyStatus `json:"status"`
}

// LastLocation returns the destination of the last recorded movement.
func (j UnitJourney) LastLocation() string {
	if len(j.Movements) == 0 {
		return ""
	}
	return j.Movements[len(j.Movements)-1].To
}

// VialDetail describes an available vial held at a location.
type VialDetail struct {
	UnitID       string    `json:"unit_id"`
	ContainerID  string    `json:"container_id,omitempty"`
	LastMovement EventDate `json:"last_movement"`
	From         string    `json:"from"`
	TrackingNo   string    `json:"tracking_no,omitempty"`
}

// ProductStock is the per-product slice of a location entry.
type ProductStock struct {
	Count     int            `json:"count"`
	Units     []VialDetail   `json:"units"`
	LotCounts map[string]int `json:"lot_counts"`
}

// LocationInventoryEntry aggregates the available vials held at one location.
type LocationInventoryEntry struct {
	Location   string                  `json:"location"`
	IsDepot    bool                    `json:"is_depot"`
	SiteID     int                     `json:"site_id,omitempty"`
	PerProduct map[string]ProductStock `json:"per_product"`
	TotalCount int                     `json:"total_count"`
	Status     StockStatus             `json:"status"`
}

// Count returns the available vial count for product at the location.
func (e LocationInventoryEntry) Count(product string) int {
	return e.PerProduct[product].Count
}

// Lots merges lot counts across all products held at the location.
func (e LocationInventoryEntry) Lots() map[string]int {
	lots := make(map[string]int)
	for _, stock := range e.PerProduct {
		for lot, n := range stock.LotCounts {
			lots[lot] += n
		}
	}
	return lots
}

// Inventory is the aggregator output split by location class.
type Inventory struct {
	Depots []LocationInventoryEntry `json:"depots"`
	Sites  []LocationInventoryEntry `json:"sites"`
}

// ReportedInventory is the independently maintained count table:
// product -> depot -> lot label -> count.
type ReportedInventory map[string]map[string]map[string]int

// DiscrepancyRecord compares inferred and reported counts for one product at one depot.
type DiscrepancyRecord struct {
	Product       string `json:"product"`
	Location      string `json:"location"`
	InferredCount int    `json:"inferred_count"`
	ReportedCount int    `json:"reported_count"`
	Difference    int    `json:"difference"`
}

// ErrUnitNotFound indicates that no journey exists for the requested vial.
var ErrUnitNotFound = errors.New("inventory: unit not found")

// ErrUnknownProduct indicates a product outside the tracked set.
var ErrUnknownProduct = errors.New("inventory: product not tracked")

// ErrUnknownLocation indicates a location without available stock or depot entry.
var ErrUnknownLocation = errors.New("inventory: location not found")

// ErrInvalidCatalog wraps catalog validation failures.
var ErrInvalidCatalog = errors.New("inventory: invalid catalog")

// ErrSourceUnavailable indicates the raw log source could not be read.
var ErrSourceUnavailable = errors.New("inventory: source unavailable")
