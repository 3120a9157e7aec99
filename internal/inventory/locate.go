package inventory

// unitPosition is the last known state of a vial taken from its latest shipment row.
type unitPosition struct {
	UnitID       string
	Location     string
	Product      string
	ContainerID  string
	LastMovement EventDate
	From         string
	TrackingNo   string
}

// resolveAvailableLocation returns the position of every non-administered vial
// in first-seen order. The last shipment row for a vial wins.
func resolveAvailableLocation(shipments []ShipmentEvent, administered map[string]struct{}) []unitPosition {
	order := make([]string, 0)
	latest := make(map[string]unitPosition)
	for _, s := range shipments {
		if s.UnitID == "" {
			continue
		}
		if _, seen := latest[s.UnitID]; !seen {
			order = append(order, s.UnitID)
		}
		latest[s.UnitID] = unitPosition{
			UnitID:       s.UnitID,
			Location:     s.ToLocation,
			Product:      s.Product,
			ContainerID:  s.ContainerID,
			LastMovement: s.DeliveryDate,
			From:         s.FromLocation,
			TrackingNo:   s.TrackingNo,
		}
	}
	out := make([]unitPosition, 0, len(order))
	for _, id := range order {
		if _, done := administered[id]; done {
			continue
		}
		out = append(out, latest[id])
	}
	return out
}

// resolveAllTimeLocation maps every vial of product to the destination of its
// last shipment row, administered or not.
func resolveAllTimeLocation(shipments []ShipmentEvent, product string) map[string]string {
	locations := make(map[string]string)
	for _, s := range shipments {
		if s.UnitID == "" || s.Product != product {
			continue
		}
		locations[s.UnitID] = s.ToLocation
	}
	return locations
}
