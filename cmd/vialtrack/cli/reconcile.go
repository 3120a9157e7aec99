package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vialtrack/vialtrack/internal/inventory"
)

// ReconcileOptions defines available flags for the reconcile command.
type ReconcileOptions struct {
	Product    string
	JSONOutput bool
	// FailOnDiscrepancy turns any non-zero discrepancy into exit code 10.
	FailOnDiscrepancy bool
	Stdout            io.Writer
	Stderr            io.Writer
}

// ReconcileSummary describes the JSON response for reconcile.
type ReconcileSummary struct {
	OK             bool                              `json:"ok"`
	Summary        inventory.Summary                 `json:"summary"`
	Products       []inventory.ProductReconciliation `json:"products"`
	Unresolved     []inventory.TreatmentEvent        `json:"unresolved_treatments"`
	DroppedRecords int                               `json:"dropped_records"`
}

// ReconcileCLI computes inventory and discrepancies from a configured source.
type ReconcileCLI struct {
	engine *inventory.Engine
	source inventory.Source
}

// NewReconcileCLI constructs the helper.
func NewReconcileCLI(engine *inventory.Engine, source inventory.Source) (*ReconcileCLI, error) {
	if engine == nil || source == nil {
		return nil, fmt.Errorf("reconcile cli: engine and source required")
	}
	return &ReconcileCLI{engine: engine, source: source}, nil
}

// ReconcileCommand executes the reconcile workflow and prints the outcome.
func (c *ReconcileCLI) ReconcileCommand(ctx context.Context, opts ReconcileOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	service := inventory.NewService(c.engine, c.source, inventory.ServiceConfig{})
	snap, err := service.Snapshot(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "reconcile: %v\n", err)
		return 1
	}

	products := snap.Reconciliation.Products
	if opts.Product != "" {
		p, ok := snap.Reconciliation.ForProduct(opts.Product)
		if !ok {
			_, _ = fmt.Fprintf(opts.Stderr, "reconcile: product %q is not tracked\n", opts.Product)
			return 1
		}
		products = []inventory.ProductReconciliation{p}
	}
	clean := true
	for _, p := range products {
		if p.MismatchedVials != 0 {
			clean = false
		}
	}

	if opts.JSONOutput {
		unresolved := snap.UnresolvedTreatments()
		if unresolved == nil {
			unresolved = []inventory.TreatmentEvent{}
		}
		summary := ReconcileSummary{
			OK:             clean,
			Summary:        snap.Summary,
			Products:       products,
			Unresolved:     unresolved,
			DroppedRecords: snap.DroppedShipments + snap.DroppedTreatments,
		}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "reconcile: encode json: %v\n", err)
			return 1
		}
	} else {
		renderReconcileHuman(opts.Stdout, snap, products)
	}
	if opts.FailOnDiscrepancy && !clean {
		return 10
	}
	return 0
}

func renderReconcileHuman(out io.Writer, snap inventory.Snapshot, products []inventory.ProductReconciliation) {
	s := snap.Summary
	_, _ = fmt.Fprintf(out, "Vials tracked: %d (available %d, administered %d)\n", s.TotalVials, s.ActiveVials, s.AdministeredVials)
	_, _ = fmt.Fprintf(out, "Shipments: %d, treatments: %d\n", s.TotalShipments, s.TotalTreatments)
	for _, p := range products {
		_, _ = fmt.Fprintf(out, "%s: total discrepancy %d (%s, %d mismatched)\n", p.Product, p.TotalDiscrepancy, p.Severity, p.MismatchedVials)
		for _, rec := range p.Records {
			marker := " "
			if rec.Difference != 0 {
				marker = "!"
			}
			_, _ = fmt.Fprintf(out, " %s %-20s inferred %3d reported %3d diff %+d\n",
				marker, rec.Location, rec.InferredCount, rec.ReportedCount, rec.Difference)
		}
	}
	if unresolved := snap.UnresolvedTreatments(); len(unresolved) > 0 {
		ids := make([]string, len(unresolved))
		for i, t := range unresolved {
			ids[i] = t.UnitID
		}
		_, _ = fmt.Fprintf(out, "Treatments without shipment history: %s\n", strings.Join(ids, ", "))
	}
}
