package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func viewSnapshot() Snapshot {
	engine := NewEngine(EngineOptions{Catalog: DefaultCatalog()})
	c := DefaultCatalog()
	mk := func(unit, from, to string) ShipmentEvent {
		return ShipmentEvent{UnitID: unit, Product: "ACE2016", FromLocation: from, ToLocation: to, TransferType: c.ClassifyTransfer(from, to)}
	}
	shipments := []ShipmentEvent{
		mk("22011-001", "Acepodia TW", "CryoGene Lab"),
		mk("22011-002", "Acepodia TW", "CryoGene Lab"),
		mk("24004-001", "CryoGene Lab", "Presbyterian Hospital Dallas"),
		mk("24004-002", "CryoGene Lab", "SCRI"),
		mk("24004-003", "CryoGene Lab", "SCRI"),
	}
	treatments := []TreatmentEvent{{UnitID: "24004-003", PatientID: "P-3"}}
	reported := ReportedFromRows([]ReportedRow{{Product: "ACE2016", Depot: "CryoGene Lab", Lot: "Lot #22011", Count: 2}})
	return engine.ComputeEvents(shipments, treatments, reported)
}

func TestInventoryForProduct(t *testing.T) {
	snap := viewSnapshot()

	views, err := snap.InventoryForProduct("ACE2016")
	require.NoError(t, err)
	require.Len(t, views, 4)

	require.Equal(t, "Acepodia TW", views[0].Label)
	require.Equal(t, 0, views[0].Count)
	require.Equal(t, StockCritical, views[0].Status)

	require.Equal(t, "CryoGene", views[1].Label)
	require.Equal(t, LocationDepot, views[1].Type)
	require.Equal(t, 2, views[1].Count)

	require.Equal(t, "Presbyterian Hospital Dallas", views[2].Location)
	require.Equal(t, "Site 102", views[2].Label)
	require.Equal(t, 102, views[2].SiteID)
	require.Equal(t, StockLow, views[2].Status)

	require.Equal(t, "SCRI", views[3].Label)
	require.Equal(t, 1, views[3].Count, "administered vial excluded")

	views, err = snap.InventoryForProduct("ACE1831")
	require.NoError(t, err)
	require.Len(t, views, 2, "empty depots listed, empty sites hidden")
	require.Equal(t, 0, views[0].Count)
	require.Equal(t, 0, views[1].Count)

	_, err = snap.InventoryForProduct("NOPE")
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestDiscrepancyForProduct(t *testing.T) {
	snap := viewSnapshot()

	records, err := snap.DiscrepancyForProduct("ACE2016")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Acepodia TW", records[0].Location)
	require.Equal(t, "CryoGene Lab", records[1].Location)
	require.Equal(t, 0, records[1].Difference)

	_, err = snap.DiscrepancyForProduct("NOPE")
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestLocationDetail(t *testing.T) {
	snap := viewSnapshot()

	detail, err := snap.LocationDetail("CryoGene Lab")
	require.NoError(t, err)
	require.Equal(t, LocationDepot, detail.Type)
	require.Equal(t, map[string]int{"Lot #22011": 2}, detail.Lots)
	require.Len(t, detail.Discrepancies, 2)

	detail, err = snap.LocationDetail("Acepodia TW")
	require.NoError(t, err, "emptied depots still resolve")
	require.Equal(t, StockCritical, detail.Entry.Status)
	require.Len(t, detail.Discrepancies, 2)

	detail, err = snap.LocationDetail(" SCRI ")
	require.NoError(t, err)
	require.Equal(t, LocationSite, detail.Type)
	require.Empty(t, detail.Discrepancies)

	_, err = snap.LocationDetail("Mars")
	require.ErrorIs(t, err, ErrUnknownLocation)
}

func TestUnitJourneyReturnsCopy(t *testing.T) {
	snap := viewSnapshot()

	journey, err := snap.UnitJourney("22011-001")
	require.NoError(t, err)
	journey.Movements[0].To = "changed"

	again, err := snap.UnitJourney("22011-001")
	require.NoError(t, err)
	require.Equal(t, "CryoGene Lab", again.Movements[0].To)
}
