package inventory

// Severity grades the size of a product discrepancy.
type Severity string

const (
	SeverityNone Severity = "none"
	SeverityLow  Severity = "low"
	SeverityHigh Severity = "high"
)

// highDiscrepancy is the number of mismatched vials at which a product is flagged high.
const highDiscrepancy = 5

// ProductReconciliation groups the depot records of one product.
type ProductReconciliation struct {
	Product          string              `json:"product"`
	Records          []DiscrepancyRecord `json:"records"`
	TotalDiscrepancy int                 `json:"total_discrepancy"`
	// MismatchedVials sums |Difference| over the depot records, so depots
	// that cancel each other out in TotalDiscrepancy still count.
	MismatchedVials  int                 `json:"mismatched_vials"`
	Severity         Severity            `json:"severity"`
}

// Reconciliation is the reconciler output in catalog product order.
type Reconciliation struct {
	Products []ProductReconciliation `json:"products"`
}

// ForProduct returns the reconciliation of product.
func (r Reconciliation) ForProduct(product string) (ProductReconciliation, bool) {
	for _, p := range r.Products {
		if p.Product == product {
			return p, true
		}
	}
	return ProductReconciliation{}, false
}

// AbsoluteTotal sums the absolute per-product totals.
func (r Reconciliation) AbsoluteTotal() int {
	total := 0
	for _, p := range r.Products {
		total += abs(p.TotalDiscrepancy)
	}
	return total
}

// Record returns the record for product at depot.
func (r Reconciliation) Record(product, depot string) (DiscrepancyRecord, bool) {
	p, ok := r.ForProduct(product)
	if !ok {
		return DiscrepancyRecord{}, false
	}
	for _, rec := range p.Records {
		if rec.Location == depot {
			return rec, true
		}
	}
	return DiscrepancyRecord{}, false
}

// Reconcile compares shipment-derived depot counts with the reported table.
// Unlike Aggregate it counts administered vials too: a vial given to a patient
// must still be traceable to the depot its shipment trail ends at.
func Reconcile(shipments []ShipmentEvent, reported ReportedInventory, catalog Catalog) Reconciliation {
	out := Reconciliation{Products: make([]ProductReconciliation, 0, len(catalog.Products))}
	for _, product := range catalog.Products {
		counts := make(map[string]int)
		for _, loc := range resolveAllTimeLocation(shipments, product) {
			counts[loc]++
		}
		pr := ProductReconciliation{Product: product, Records: make([]DiscrepancyRecord, 0, len(catalog.Depots))}
		for _, depot := range catalog.DepotNames() {
			inferred := counts[depot]
			rep := reported.Total(product, depot)
			rec := DiscrepancyRecord{
				Product:       product,
				Location:      depot,
				InferredCount: inferred,
				ReportedCount: rep,
				Difference:    inferred - rep,
			}
			pr.Records = append(pr.Records, rec)
			pr.TotalDiscrepancy += rec.Difference
			pr.MismatchedVials += abs(rec.Difference)
		}
		pr.Severity = severityFor(pr.MismatchedVials)
		out.Products = append(out.Products, pr)
	}
	return out
}

// Total sums the lot counts reported for product at depot.
func (r ReportedInventory) Total(product, depot string) int {
	total := 0
	for _, n := range r[product][depot] {
		total += n
	}
	return total
}

func severityFor(mismatched int) Severity {
	switch d := mismatched; {
	case d == 0:
		return SeverityNone
	case d < highDiscrepancy:
		return SeverityLow
	default:
		return SeverityHigh
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
