package inventory

import (
	"regexp"
	"sort"
)

var lotPrefix = regexp.MustCompile(`^(\d+)`)

// LotLabel derives the lot label from the leading digits of a vial id.
// ok is false when the id has no numeric prefix.
func LotLabel(unitID string) (string, bool) {
	m := lotPrefix.FindStringSubmatch(unitID)
	if m == nil {
		return "", false
	}
	return "Lot #" + m[1], true
}

// Aggregate derives the available stock per location from the full event log.
// Administered vials are excluded and products outside the catalog are ignored.
// Vials with a blank product are attributed to the first tracked product.
// Every catalog depot gets an entry so an emptied depot reports critical stock.
func Aggregate(shipments []ShipmentEvent, treatments []TreatmentEvent, catalog Catalog) Inventory {
	positions := resolveAvailableLocation(shipments, administeredSet(treatments))

	entries := make(map[string]*LocationInventoryEntry)
	for _, depot := range catalog.DepotNames() {
		entries[depot] = newLocationEntry(depot, catalog)
	}
	for _, pos := range positions {
		product := pos.Product
		if product == "" && len(catalog.Products) > 0 {
			product = catalog.Products[0]
		}
		if !catalog.Tracks(product) {
			continue
		}
		entry, ok := entries[pos.Location]
		if !ok {
			entry = newLocationEntry(pos.Location, catalog)
			entries[pos.Location] = entry
		}
		stock := entry.PerProduct[product]
		stock.Count++
		stock.Units = append(stock.Units, VialDetail{
			UnitID:       pos.UnitID,
			ContainerID:  pos.ContainerID,
			LastMovement: pos.LastMovement,
			From:         pos.From,
			TrackingNo:   pos.TrackingNo,
		})
		if lot, ok := LotLabel(pos.UnitID); ok {
			stock.LotCounts[lot]++
		}
		entry.PerProduct[product] = stock
		entry.TotalCount++
	}

	inv := Inventory{
		Depots: []LocationInventoryEntry{},
		Sites:  []LocationInventoryEntry{},
	}
	for _, entry := range entries {
		entry.Status = stockStatus(entry.TotalCount, catalog.LowStockThreshold)
		if entry.IsDepot {
			inv.Depots = append(inv.Depots, *entry)
		} else {
			inv.Sites = append(inv.Sites, *entry)
		}
	}
	sortEntries(inv.Depots)
	sortEntries(inv.Sites)
	return inv
}

func newLocationEntry(location string, catalog Catalog) *LocationInventoryEntry {
	entry := &LocationInventoryEntry{
		Location:   location,
		IsDepot:    catalog.IsDepot(location),
		PerProduct: make(map[string]ProductStock, len(catalog.Products)),
	}
	if !entry.IsDepot {
		entry.SiteID = catalog.SiteID(location)
	}
	for _, p := range catalog.Products {
		entry.PerProduct[p] = ProductStock{Units: []VialDetail{}, LotCounts: map[string]int{}}
	}
	return entry
}

func stockStatus(total, lowThreshold int) StockStatus {
	switch {
	case total == 0:
		return StockCritical
	case total <= lowThreshold:
		return StockLow
	default:
		return StockOK
	}
}

func sortEntries(entries []LocationInventoryEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Location < entries[j].Location })
}
