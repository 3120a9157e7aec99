package inventory

// JourneyIndex holds every tracked vial journey plus treatments that could
// not be matched to a shipped vial.
type JourneyIndex struct {
	Journeys   map[string]*UnitJourney
	Unresolved []TreatmentEvent
}

// BuildJourneys replays shipments in slice order, then applies treatments in
// slice order. Timestamps are never consulted, so callers must pass events in
// effective order (or enable SortByDate on the Engine).
func BuildJourneys(shipments []ShipmentEvent, treatments []TreatmentEvent) JourneyIndex {
	idx := JourneyIndex{Journeys: make(map[string]*UnitJourney)}
	for _, s := range shipments {
		if s.UnitID == "" {
			continue
		}
		j, ok := idx.Journeys[s.UnitID]
		if !ok {
			j = &UnitJourney{
				UnitID:    s.UnitID,
				Product:   s.Product,
				Movements: []Movement{},
				Status:    JourneyInTransit,
			}
			idx.Journeys[s.UnitID] = j
		}
		j.Movements = append(j.Movements, Movement{
			Date:         s.DeliveryDate,
			From:         s.FromLocation,
			To:           s.ToLocation,
			TransferType: s.TransferType,
			TrackingNo:   s.TrackingNo,
			ReferenceNo:  s.ReferenceNo,
		})
	}
	for _, t := range treatments {
		j, ok := idx.Journeys[t.UnitID]
		if !ok {
			idx.Unresolved = append(idx.Unresolved, t)
			continue
		}
		patient := t.PatientID
		site := t.SiteName
		date := t.TreatmentDate
		j.PatientID = &patient
		j.TreatmentSite = &site
		j.TreatmentDate = &date
		j.Status = JourneyAdministered
	}
	return idx
}

// Get returns a copy of the journey for unitID.
func (idx JourneyIndex) Get(unitID string) (UnitJourney, bool) {
	j, ok := idx.Journeys[unitID]
	if !ok {
		return UnitJourney{}, false
	}
	out := *j
	out.Movements = append([]Movement(nil), j.Movements...)
	return out, true
}

// Administered counts journeys in the administered state.
func (idx JourneyIndex) Administered() int {
	n := 0
	for _, j := range idx.Journeys {
		if j.Status == JourneyAdministered {
			n++
		}
	}
	return n
}

// administeredSet collects vial ids that appear in any treatment.
func administeredSet(treatments []TreatmentEvent) map[string]struct{} {
	set := make(map[string]struct{}, len(treatments))
	for _, t := range treatments {
		if t.UnitID != "" {
			set[t.UnitID] = struct{}{}
		}
	}
	return set
}
