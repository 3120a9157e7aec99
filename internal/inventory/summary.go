package inventory

import (
	"math"
	"sort"
	"strings"
)

const (
	trendWindow         = 12
	transferSampleLimit = 20
	unknownMonth        = "unknown"
)

// MonthlyTrend counts shipments delivered in one calendar month.
type MonthlyTrend struct {
	MonthKey   string         `json:"month_key"`
	Label      string         `json:"label"`
	Shipments  int            `json:"shipments"`
	Returns    int            `json:"returns"`
	PerProduct map[string]int `json:"per_product"`
}

// TransferSample is a shipment listed under a transfer type breakdown.
type TransferSample struct {
	UnitID  string        `json:"unit_id"`
	Product string        `json:"product"`
	From    string        `json:"from"`
	To      string        `json:"to"`
	Date    EventDate     `json:"date"`
	Status  JourneyStatus `json:"status"`
}

// TransferBreakdown summarises shipments of one transfer type.
type TransferBreakdown struct {
	Type       TransferType     `json:"type"`
	Count      int              `json:"count"`
	Percentage int              `json:"percentage"`
	PerProduct map[string]int   `json:"per_product"`
	Samples    []TransferSample `json:"samples"`
}

// Summary carries the headline figures of a dataset.
type Summary struct {
	TotalShipments     int                 `json:"total_shipments"`
	TotalTreatments    int                 `json:"total_treatments"`
	TotalVials         int                 `json:"total_vials"`
	ActiveVials        int                 `json:"active_vials"`
	AdministeredVials  int                 `json:"administered_vials"`
	UnresolvedTreats   int                 `json:"unresolved_treatments"`
	DiscrepancyTotal   int                 `json:"discrepancy_total"`
	MonthlyTrends      []MonthlyTrend      `json:"monthly_trends"`
	TransferBreakdowns []TransferBreakdown `json:"transfer_breakdowns"`
}

// Summarize computes dashboard totals, monthly trends and the transfer type mix.
func Summarize(shipments []ShipmentEvent, treatments []TreatmentEvent, journeys JourneyIndex, rec Reconciliation) Summary {
	administered := journeys.Administered()
	return Summary{
		TotalShipments:     len(shipments),
		TotalTreatments:    len(treatments),
		TotalVials:         len(journeys.Journeys),
		ActiveVials:        len(journeys.Journeys) - administered,
		AdministeredVials:  administered,
		UnresolvedTreats:   len(journeys.Unresolved),
		DiscrepancyTotal:   rec.AbsoluteTotal(),
		MonthlyTrends:      monthlyTrends(shipments),
		TransferBreakdowns: transferBreakdowns(shipments, journeys),
	}
}

func monthlyTrends(shipments []ShipmentEvent) []MonthlyTrend {
	buckets := make(map[string]*MonthlyTrend)
	for _, s := range shipments {
		key, label := unknownMonth, unknownMonth
		if s.DeliveryDate.Valid {
			key = s.DeliveryDate.Time.Format("2006-01")
			label = s.DeliveryDate.Time.Format("Jan 2006")
		}
		b, ok := buckets[key]
		if !ok {
			b = &MonthlyTrend{MonthKey: key, Label: label, PerProduct: map[string]int{}}
			buckets[key] = b
		}
		if strings.Contains(strings.ToLower(s.Remark), "return") {
			b.Returns++
		} else {
			b.Shipments++
		}
		b.PerProduct[s.Product]++
	}
	trends := make([]MonthlyTrend, 0, len(buckets))
	for _, b := range buckets {
		trends = append(trends, *b)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].MonthKey < trends[j].MonthKey })
	if len(trends) > trendWindow {
		trends = trends[len(trends)-trendWindow:]
	}
	return trends
}

func transferBreakdowns(shipments []ShipmentEvent, journeys JourneyIndex) []TransferBreakdown {
	byType := make(map[TransferType]*TransferBreakdown)
	for _, s := range shipments {
		b, ok := byType[s.TransferType]
		if !ok {
			b = &TransferBreakdown{Type: s.TransferType, PerProduct: map[string]int{}, Samples: []TransferSample{}}
			byType[s.TransferType] = b
		}
		b.Count++
		b.PerProduct[s.Product]++
		if len(b.Samples) < transferSampleLimit {
			status := JourneyInTransit
			if j, ok := journeys.Journeys[s.UnitID]; ok {
				status = j.Status
			}
			b.Samples = append(b.Samples, TransferSample{
				UnitID:  s.UnitID,
				Product: s.Product,
				From:    s.FromLocation,
				To:      s.ToLocation,
				Date:    s.DeliveryDate,
				Status:  status,
			})
		}
	}
	out := make([]TransferBreakdown, 0, len(byType))
	for _, b := range byType {
		if len(shipments) > 0 {
			b.Percentage = int(math.Round(float64(b.Count) / float64(len(shipments)) * 100))
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
