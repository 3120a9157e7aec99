package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CSV file names read by CSVSource.
const (
	ShipmentsFile  = "shipments.csv"
	TreatmentsFile = "treatments.csv"
	ReportedFile   = "reported.csv"
)

// CSVSource reads a dataset exported as three CSV files from a directory.
// The first line of each file is the header row.
type CSVSource struct {
	dir     string
	layouts map[string]SheetLayout
}

// NewCSVSource constructs a CSVSource rooted at dir using the default sheet layouts.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir, layouts: DefaultSheetLayouts()}
}

// WithSheetLayouts replaces the layouts used for per-product sheet exports.
func (s *CSVSource) WithSheetLayouts(layouts map[string]SheetLayout) *CSVSource {
	s.layouts = layouts
	return s
}

// ShipmentRows reads shipments.csv.
func (s *CSVSource) ShipmentRows(ctx context.Context) ([]Row, error) {
	return s.readRows(ShipmentsFile)
}

// TreatmentRows reads treatments.csv.
func (s *CSVSource) TreatmentRows(ctx context.Context) ([]Row, error) {
	return s.readRows(TreatmentsFile)
}

// ReportedInventory reads reported.csv with columns product, depot, lot, count.
// Without it, per-product sheet exports named <product>.csv are parsed with
// the sheet layouts. With neither the table is empty.
func (s *CSVSource) ReportedInventory(ctx context.Context) (ReportedInventory, error) {
	rows, err := s.readRows(ReportedFile)
	if errors.Is(err, os.ErrNotExist) {
		return s.reportedFromSheets()
	}
	if err != nil {
		return nil, err
	}
	flat := make([]ReportedRow, 0, len(rows))
	for _, row := range rows {
		flat = append(flat, ReportedRow{
			Product: cellString(row["product"]),
			Depot:   cellString(row["depot"]),
			Lot:     cellString(row["lot"]),
			Count:   countValue(row["count"]),
		})
	}
	return ReportedFromRows(flat), nil
}

func (s *CSVSource) reportedFromSheets() (ReportedInventory, error) {
	rep := ReportedInventory{}
	for product, layout := range s.layouts {
		grid, err := s.readGrid(product + ".csv")
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rep[product] = ParseReportedSheet(grid, layout)
	}
	return rep, nil
}

// readGrid reads a sheet export as raw cells without a header row. Blank
// lines are skipped by encoding/csv, so spacer rows must be exported as
// empty fields to keep the layout row indexes.
func (s *CSVSource) readGrid(name string) ([][]any, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("inventory: read sheet %s: %w", name, err)
	}
	grid := make([][]any, len(records))
	for i, record := range records {
		grid[i] = make([]any, len(record))
		for j, cell := range record {
			grid[i][j] = cell
		}
	}
	return grid, nil
}

func (s *CSVSource) readRows(name string) ([]Row, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses CSV content into rows keyed by the header line. Short lines
// leave the trailing columns unset.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("inventory: read csv: %w", err)
		}
		row := make(Row, len(header))
		for i, value := range record {
			if i < len(header) && value != "" {
				row[header[i]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
