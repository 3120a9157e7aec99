package fixture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vialtrack/vialtrack/internal/inventory"
)

func TestGeneratedDatasetReconcilesToZero(t *testing.T) {
	in := Generate(Options{Vials: 200, Seed: 42, TreatedShare: 0.5})
	require.GreaterOrEqual(t, len(in.ShipmentRows), 200)

	snap := inventory.NewEngine(inventory.EngineOptions{Catalog: inventory.DefaultCatalog()}).Compute(in)
	require.Equal(t, 200, snap.Summary.TotalVials)
	require.Zero(t, snap.Reconciliation.AbsoluteTotal())
	require.Zero(t, snap.DroppedShipments)
	require.Empty(t, snap.Unresolved)
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(Options{Vials: 20, Seed: 7, TreatedShare: 0.3})
	b := Generate(Options{Vials: 20, Seed: 7, TreatedShare: 0.3})
	require.Equal(t, a, b)
}
