package inventory

import (
	"fmt"
	"strings"
)

const maxSiteLabel = 15

// LocationView is one bar of the per-product inventory chart.
type LocationView struct {
	Location string       `json:"location"`
	Label    string       `json:"label"`
	Count    int          `json:"count"`
	Total    int          `json:"total"`
	Type     LocationType `json:"type"`
	SiteID   int          `json:"site_id,omitempty"`
	Status   StockStatus  `json:"status"`
}

// LocationDetail is the drill-down view of one location.
type LocationDetail struct {
	Entry         LocationInventoryEntry `json:"entry"`
	Type          LocationType           `json:"type"`
	Lots          map[string]int         `json:"lots"`
	Discrepancies []DiscrepancyRecord    `json:"discrepancies,omitempty"`
}

// UnitJourney looks up the journey of a single vial.
func (s Snapshot) UnitJourney(unitID string) (UnitJourney, error) {
	j, ok := s.Journeys[strings.TrimSpace(unitID)]
	if !ok || j == nil {
		return UnitJourney{}, fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
	}
	out := *j
	out.Movements = append([]Movement(nil), j.Movements...)
	return out, nil
}

// InventoryForProduct lists depots first, then sites that hold product.
// Depots are listed even when empty.
func (s Snapshot) InventoryForProduct(product string) ([]LocationView, error) {
	if !s.Catalog.Tracks(product) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, product)
	}
	views := make([]LocationView, 0, len(s.Inventory.Depots)+len(s.Inventory.Sites))
	for _, d := range s.Inventory.Depots {
		views = append(views, LocationView{
			Location: d.Location,
			Label:    strings.TrimSuffix(d.Location, " Lab"),
			Count:    d.Count(product),
			Total:    d.TotalCount,
			Type:     LocationDepot,
			Status:   d.Status,
		})
	}
	for _, site := range s.Inventory.Sites {
		count := site.Count(product)
		if count == 0 {
			continue
		}
		label := site.Location
		if len([]rune(label)) > maxSiteLabel {
			label = fmt.Sprintf("Site %d", site.SiteID)
		}
		views = append(views, LocationView{
			Location: site.Location,
			Label:    label,
			Count:    count,
			Total:    site.TotalCount,
			Type:     LocationSite,
			SiteID:   site.SiteID,
			Status:   site.Status,
		})
	}
	return views, nil
}

// DiscrepancyForProduct returns the depot records of product.
func (s Snapshot) DiscrepancyForProduct(product string) ([]DiscrepancyRecord, error) {
	pr, ok := s.Reconciliation.ForProduct(product)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, product)
	}
	return append([]DiscrepancyRecord(nil), pr.Records...), nil
}

// LocationDetail returns the entry held at location. Depot details carry the
// depot's discrepancy records.
func (s Snapshot) LocationDetail(location string) (LocationDetail, error) {
	location = strings.TrimSpace(location)
	for _, d := range s.Inventory.Depots {
		if d.Location == location {
			return LocationDetail{Entry: d, Type: LocationDepot, Lots: d.Lots(), Discrepancies: s.depotRecords(location)}, nil
		}
	}
	for _, site := range s.Inventory.Sites {
		if site.Location == location {
			return LocationDetail{Entry: site, Type: LocationSite, Lots: site.Lots()}, nil
		}
	}
	return LocationDetail{}, fmt.Errorf("%w: %s", ErrUnknownLocation, location)
}

// UnresolvedTreatments lists treatments whose vial never appeared in a shipment.
func (s Snapshot) UnresolvedTreatments() []TreatmentEvent {
	return append([]TreatmentEvent(nil), s.Unresolved...)
}

func (s Snapshot) depotRecords(depot string) []DiscrepancyRecord {
	var out []DiscrepancyRecord
	for _, p := range s.Reconciliation.Products {
		if rec, ok := s.Reconciliation.Record(p.Product, depot); ok {
			out = append(out, rec)
		}
	}
	return out
}
