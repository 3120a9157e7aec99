package inventory

import (
	"math"
	"strconv"
	"strings"
)

// SheetLayout locates reported counts inside a product inventory sheet:
// one row per depot and one column per lot.
type SheetLayout struct {
	DepotRows  map[string]int
	LotColumns map[string]int
}

// ReportedRow is one flat reported count, as stored in the reported_inventory table.
type ReportedRow struct {
	Product string `json:"product"`
	Depot   string `json:"depot"`
	Lot     string `json:"lot"`
	Count   int    `json:"count"`
}

// DefaultSheetLayouts returns the layout of the ACE2016 and ACE1831 tabs.
func DefaultSheetLayouts() map[string]SheetLayout {
	depots := map[string]int{"Acepodia TW": 3, "CryoGene Lab": 4}
	return map[string]SheetLayout{
		"ACE2016": {
			DepotRows:  depots,
			LotColumns: map[string]int{"Lot #22011": 1, "Lot #24004": 2, "Lot #24011": 3, "Lot #25004": 4},
		},
		"ACE1831": {
			DepotRows:  depots,
			LotColumns: map[string]int{"Lot #21032": 1, "Lot #22007": 2, "Lot #24014": 3},
		},
	}
}

// ParseReportedSheet reads the depot × lot grid of one product tab. Cells that
// are missing or not numeric count as zero.
func ParseReportedSheet(grid [][]any, layout SheetLayout) map[string]map[string]int {
	out := make(map[string]map[string]int, len(layout.DepotRows))
	for depot, row := range layout.DepotRows {
		lots := make(map[string]int, len(layout.LotColumns))
		for lot, col := range layout.LotColumns {
			lots[lot] = numericCell(grid, row, col)
		}
		out[depot] = lots
	}
	return out
}

// ReportedFromRows folds flat rows into the nested reported table. Counts for
// the same product, depot and lot are summed.
func ReportedFromRows(rows []ReportedRow) ReportedInventory {
	rep := make(ReportedInventory)
	for _, r := range rows {
		if rep[r.Product] == nil {
			rep[r.Product] = make(map[string]map[string]int)
		}
		if rep[r.Product][r.Depot] == nil {
			rep[r.Product][r.Depot] = make(map[string]int)
		}
		rep[r.Product][r.Depot][r.Lot] += r.Count
	}
	return rep
}

func numericCell(grid [][]any, row, col int) int {
	if row < 0 || row >= len(grid) || col < 0 || col >= len(grid[row]) {
		return 0
	}
	return countValue(grid[row][col])
}

// countValue reads a count cell. Spreadsheet exports write whole numbers as
// "3" or "3.0"; anything that is not a finite number counts as zero.
func countValue(v any) int {
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return countValue(f)
	default:
		return 0
	}
}
