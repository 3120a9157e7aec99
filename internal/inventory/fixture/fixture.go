// Package fixture generates synthetic vial datasets for seeding and benchmarks.
package fixture

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vialtrack/vialtrack/internal/inventory"
)

// Options shapes a generated dataset.
type Options struct {
	Vials int
	Seed  int64
	// TreatedShare is the fraction of site deliveries that get administered.
	TreatedShare float64
}

var (
	lots  = map[string][]string{"ACE2016": {"22011", "24004", "24011", "25004"}, "ACE1831": {"21032", "22007", "24014"}}
	sites = []string{"SCRI Nashville", "Presbyterian Dallas", "US Oncology", "Norton Cancer Institute", "Queen Mary Hospital"}
	start = time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)
)

// Generate builds a dataset in the sheet row format. Every vial leaves the
// manufacturing depot for the storage depot; most continue to a site. Reported
// counts mirror the shipment trail so a fresh dataset reconciles to zero.
func Generate(opts Options) inventory.Input {
	if opts.Vials <= 0 {
		opts.Vials = 100
	}
	rnd := rand.New(rand.NewSource(opts.Seed))
	products := []string{"ACE2016", "ACE1831"}

	var shipments, treatments []inventory.Row
	reported := make([]inventory.ReportedRow, 0)
	for i := 0; i < opts.Vials; i++ {
		product := products[i%len(products)]
		lot := lots[product][rnd.Intn(len(lots[product]))]
		unit := fmt.Sprintf("%s-%04d", lot, i)
		day := start.AddDate(0, 0, i/4)
		shipments = append(shipments, shipmentRow(day, product, unit, "Acepodia TW", "CryoGene Lab"))

		last := "CryoGene Lab"
		if rnd.Float64() < 0.7 {
			site := sites[rnd.Intn(len(sites))]
			shipments = append(shipments, shipmentRow(day.AddDate(0, 0, 14), product, unit, "CryoGene Lab", site))
			last = site
			if rnd.Float64() < opts.TreatedShare {
				treatments = append(treatments, inventory.Row{
					inventory.ColProduct:        product,
					inventory.ColVialID:         unit,
					inventory.ColTreatmentDate:  day.AddDate(0, 0, 20).Format("2006-01-02"),
					inventory.ColTreatmentCycle: "C1D1",
					inventory.ColSiteName:       site,
					inventory.ColPatientID:      fmt.Sprintf("PT-%04d", i),
				})
			}
		}
		if last == "CryoGene Lab" {
			reported = append(reported, inventory.ReportedRow{Product: product, Depot: last, Lot: "Lot #" + lot, Count: 1})
		}
	}
	return inventory.Input{
		ShipmentRows:  shipments,
		TreatmentRows: treatments,
		Reported:      inventory.ReportedFromRows(reported),
	}
}

func shipmentRow(day time.Time, product, unit, from, to string) inventory.Row {
	return inventory.Row{
		inventory.ColDeliveryDate: day.Format("2006-01-02"),
		inventory.ColProductNo:    product,
		inventory.ColVialID:       unit,
		inventory.ColFromLocation: from,
		inventory.ColAction:       "Ship",
		inventory.ColToLocation:   to,
		inventory.ColRecordedBy:   "seed",
	}
}
