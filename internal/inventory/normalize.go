package inventory

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"1/2/2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// NormalizedBatch is the typed form of one upload.
type NormalizedBatch struct {
	Shipments         []ShipmentEvent
	Treatments        []TreatmentEvent
	RawShipmentRows   int
	RawTreatmentRows  int
	DroppedShipments  int
	DroppedTreatments int
}

// Normalizer turns raw sheet rows into typed events.
type Normalizer struct {
	catalog Catalog
}

// NewNormalizer constructs a Normalizer classifying transfers with catalog.
func NewNormalizer(catalog Catalog) *Normalizer {
	return &Normalizer{catalog: catalog}
}

// Normalize converts both row sets. Rows without a vial id are counted and skipped.
func (n *Normalizer) Normalize(shipmentRows, treatmentRows []Row) NormalizedBatch {
	batch := NormalizedBatch{
		RawShipmentRows:  len(shipmentRows),
		RawTreatmentRows: len(treatmentRows),
	}
	batch.Shipments = make([]ShipmentEvent, 0, len(shipmentRows))
	for _, row := range shipmentRows {
		evt, ok := n.Shipment(row)
		if !ok {
			batch.DroppedShipments++
			continue
		}
		batch.Shipments = append(batch.Shipments, evt)
	}
	batch.Treatments = make([]TreatmentEvent, 0, len(treatmentRows))
	for _, row := range treatmentRows {
		evt, ok := n.Treatment(row)
		if !ok {
			batch.DroppedTreatments++
			continue
		}
		batch.Treatments = append(batch.Treatments, evt)
	}
	return batch
}

// Shipment converts a single shipment row. ok is false when the vial id is missing.
func (n *Normalizer) Shipment(row Row) (ShipmentEvent, bool) {
	unitID := cellString(row[ColVialID])
	if unitID == "" {
		return ShipmentEvent{}, false
	}
	from := cellString(row[ColFromLocation])
	to := cellString(row[ColToLocation])
	return ShipmentEvent{
		DeliveryDate:         parseDate(row[ColDeliveryDate]),
		Product:              cellString(row[ColProductNo]),
		UnitID:               unitID,
		ContainerID:          cellString(row[ColBoxID]),
		FromLocation:         from,
		Action:               cellString(row[ColAction]),
		ToLocation:           to,
		TransferType:         n.catalog.ClassifyTransfer(from, to),
		RecordedTransferType: cellString(row[ColTransferType]),
		ReferenceNo:          cellString(row[ColMTFNo]),
		TrackingNo:           cellString(row[ColTrackingNo]),
		Remark:               cellString(row[ColRemark]),
		RecordedBy:           cellString(row[ColRecordedBy]),
	}, true
}

// Treatment converts a single treatment row. ok is false when the vial id is missing.
func (n *Normalizer) Treatment(row Row) (TreatmentEvent, bool) {
	unitID := cellString(row[ColVialID])
	if unitID == "" {
		return TreatmentEvent{}, false
	}
	return TreatmentEvent{
		Product:       cellString(row[ColProduct]),
		UnitID:        unitID,
		TreatmentDate: parseDate(row[ColTreatmentDate]),
		CycleLabel:    cellString(row[ColTreatmentCycle]),
		SiteID:        cellString(row[ColSiteNo]),
		SiteName:      cellString(row[ColSiteName]),
		PatientID:     cellString(row[ColPatientID]),
		Remark:        cellString(row[ColRemark]),
	}, true
}

// cellString coerces a cell to text. Whole floats lose their fraction so that
// numeric ids read back as typed.
func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return cellString(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format("2006-01-02")
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// parseDate accepts time values, spreadsheet serials and common text layouts.
// Anything else is kept raw with Valid=false.
func parseDate(v any) EventDate {
	switch val := v.(type) {
	case nil:
		return EventDate{}
	case time.Time:
		return EventDate{Raw: val.Format(time.RFC3339), Time: val, Valid: !val.IsZero()}
	case float64:
		return serialDate(val, cellString(val))
	case int:
		return serialDate(float64(val), strconv.Itoa(val))
	case int64:
		return serialDate(float64(val), strconv.FormatInt(val, 10))
	}
	raw := cellString(v)
	if raw == "" {
		return EventDate{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return EventDate{Raw: raw, Time: t, Valid: true}
		}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return serialDate(f, raw)
	}
	return EventDate{Raw: raw}
}

func serialDate(serial float64, raw string) EventDate {
	if serial <= 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return EventDate{Raw: raw}
	}
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	t := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
	return EventDate{Raw: raw, Time: t, Valid: true}
}
