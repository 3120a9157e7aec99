package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vialtrack/vialtrack/internal/app"
	"github.com/vialtrack/vialtrack/internal/inventory"
	"github.com/vialtrack/vialtrack/internal/inventory/fixture"
	"github.com/vialtrack/vialtrack/internal/platform/db"
)

func main() {
	var (
		dataDir string
		vials   int
		seed    int64
		treated float64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the stored inventory logs with a CSV export or a generated dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			in, err := loadDataset(ctx, dataDir, fixture.Options{Vials: vials, Seed: seed, TreatedShare: treated})
			if err != nil {
				return err
			}

			pool, err := db.New(ctx, cfg.PostgresOptions("vialtrack-seed"))
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			fmt.Printf("→ Seeding %d shipment rows, %d treatment rows...\n", len(in.ShipmentRows), len(in.TreatmentRows))
			if err := inventory.NewRepository(pool).ReplaceDataset(ctx, in); err != nil {
				return fmt.Errorf("replace dataset: %w", err)
			}
			fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", "", "directory with shipments.csv, treatments.csv and reported.csv")
	cmd.Flags().IntVar(&vials, "vials", 500, "number of generated vials when --data is empty")
	cmd.Flags().Int64Var(&seed, "seed", 1, "generator seed")
	cmd.Flags().Float64Var(&treated, "treated", 0.6, "share of site deliveries that get administered")

	if err := cmd.Execute(); err != nil {
		log.Printf("seed: %v", err)
		os.Exit(1)
	}
}

func loadDataset(ctx context.Context, dir string, opts fixture.Options) (inventory.Input, error) {
	if dir == "" {
		return fixture.Generate(opts), nil
	}
	src := inventory.NewCSVSource(dir)
	shipments, err := src.ShipmentRows(ctx)
	if err != nil {
		return inventory.Input{}, fmt.Errorf("read shipments: %w", err)
	}
	treatments, err := src.TreatmentRows(ctx)
	if err != nil {
		return inventory.Input{}, fmt.Errorf("read treatments: %w", err)
	}
	reported, err := src.ReportedInventory(ctx)
	if err != nil {
		return inventory.Input{}, fmt.Errorf("read reported inventory: %w", err)
	}
	return inventory.Input{ShipmentRows: shipments, TreatmentRows: treatments, Reported: reported}, nil
}
