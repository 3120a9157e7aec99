package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vialtrack/vialtrack/internal/platform/db"
)

// pgUndefinedTable is the SQLSTATE raised when a log table has not been created.
const pgUndefinedTable = "42P01"

var shipmentLogColumns = []string{
	"delivery_date", "product", "vial_id", "box_id", "from_location", "action",
	"to_location", "transfer_type", "mtf_no", "tracking_no", "remark", "recorded_by",
}

var treatmentLogColumns = []string{
	"product", "vial_id", "treatment_date", "treatment_cycle",
	"site_no", "site_name", "patient_id", "remark",
}

// Repository reads and replaces the raw logs stored in PostgreSQL. Rows keep
// their insertion order through the serial id column.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const (
	shipmentQuery = `SELECT delivery_date, product, vial_id, box_id, from_location, action,
		to_location, transfer_type, mtf_no, tracking_no, remark, recorded_by
		FROM shipment_log ORDER BY id`
	treatmentQuery = `SELECT product, vial_id, treatment_date, treatment_cycle,
		site_no, site_name, patient_id, remark
		FROM treatment_log ORDER BY id`
	reportedQuery = `SELECT product, depot, lot, count FROM reported_inventory`
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ShipmentRows returns the shipment log in recorded order.
func (r *Repository) ShipmentRows(ctx context.Context) ([]Row, error) {
	return queryRows(ctx, r.pool, shipmentQuery, ShipmentColumns)
}

// TreatmentRows returns the treatment log in recorded order.
func (r *Repository) TreatmentRows(ctx context.Context) ([]Row, error) {
	return queryRows(ctx, r.pool, treatmentQuery, TreatmentColumns)
}

// ReportedInventory returns the reported depot counts.
func (r *Repository) ReportedInventory(ctx context.Context) (ReportedInventory, error) {
	return queryReported(ctx, r.pool)
}

// Dataset reads all three tables inside one read-only transaction so that an
// upload running concurrently is seen either entirely or not at all.
func (r *Repository) Dataset(ctx context.Context) (Input, error) {
	var in Input
	err := db.WithTx(ctx, r.pool, db.Snapshot, func(tx pgx.Tx) error {
		var err error
		if in.ShipmentRows, err = queryRows(ctx, tx, shipmentQuery, ShipmentColumns); err != nil {
			return err
		}
		if in.TreatmentRows, err = queryRows(ctx, tx, treatmentQuery, TreatmentColumns); err != nil {
			return err
		}
		in.Reported, err = queryReported(ctx, tx)
		return err
	})
	if err != nil {
		return Input{}, mapSourceError(err)
	}
	return in, nil
}

// ReplaceDataset swaps all three tables for the uploaded dataset in one transaction.
func (r *Repository) ReplaceDataset(ctx context.Context, in Input) error {
	reported := reportedRows(in.Reported)
	return db.WithTx(ctx, r.pool, db.Replace, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE shipment_log, treatment_log, reported_inventory RESTART IDENTITY`); err != nil {
			return mapSourceError(err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"shipment_log"}, shipmentLogColumns, rowSource(in.ShipmentRows, ShipmentColumns)); err != nil {
			return fmt.Errorf("copy shipments: %w", err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"treatment_log"}, treatmentLogColumns, rowSource(in.TreatmentRows, TreatmentColumns)); err != nil {
			return fmt.Errorf("copy treatments: %w", err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"reported_inventory"}, []string{"product", "depot", "lot", "count"},
			pgx.CopyFromSlice(len(reported), func(i int) ([]any, error) {
				rr := reported[i]
				return []any{rr.Product, rr.Depot, rr.Lot, rr.Count}, nil
			})); err != nil {
			return fmt.Errorf("copy reported inventory: %w", err)
		}
		return nil
	})
}

func queryReported(ctx context.Context, q querier) (ReportedInventory, error) {
	rows, err := q.Query(ctx, reportedQuery)
	if err != nil {
		return nil, mapSourceError(err)
	}
	flat, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ReportedRow, error) {
		var rr ReportedRow
		err := row.Scan(&rr.Product, &rr.Depot, &rr.Lot, &rr.Count)
		return rr, err
	})
	if err != nil {
		return nil, mapSourceError(err)
	}
	return ReportedFromRows(flat), nil
}

func queryRows(ctx context.Context, q querier, query string, columns []string) ([]Row, error) {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, mapSourceError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Row, error) {
		values := make([]*string, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := row.Scan(dest...); err != nil {
			return nil, err
		}
		rec := make(Row, len(columns))
		for i, col := range columns {
			if values[i] != nil {
				rec[col] = *values[i]
			}
		}
		return rec, nil
	})
	if err != nil {
		return nil, mapSourceError(err)
	}
	return out, nil
}

// rowSource feeds raw rows to COPY as nullable text, keeping dates in raw form.
func rowSource(rows []Row, columns []string) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		values := make([]any, len(columns))
		for j, col := range columns {
			values[j] = storedCell(rows[i][col])
		}
		return values, nil
	})
}

func storedCell(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	s := cellString(v)
	if s == "" {
		return nil
	}
	return s
}

func reportedRows(rep ReportedInventory) []ReportedRow {
	var out []ReportedRow
	for product, depots := range rep {
		for depot, lots := range depots {
			for lot, n := range lots {
				out = append(out, ReportedRow{Product: product, Depot: depot, Lot: lot, Count: n})
			}
		}
	}
	return out
}

func mapSourceError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s", ErrSourceUnavailable, pgErr.Message)
	}
	return err
}
