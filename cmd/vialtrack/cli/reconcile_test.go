package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vialtrack/vialtrack/internal/inventory"
)

const (
	testShipments = "Delivery Date,Product#,Vial ID,Box ID,From_Location,Action,To_Location,Transfer Type,MTF No.,Shipment Tracking No.,Remark,Recorded by\n" +
		"2024-01-05,ACE2016,22011-001,B1,Acepodia TW,Ship,CryoGene Lab,,,,,ops\n" +
		"2024-01-05,ACE2016,22011-002,B1,Acepodia TW,Ship,CryoGene Lab,,,,,ops\n" +
		"2024-02-01,ACE2016,22011-002,B1,CryoGene Lab,Ship,SCRI 101,,,,,ops\n"
	testTreatments = "Product,Vial ID,Treatment Date,Treatment Cycle,Site No,Site Name,Patient ID,Remark\n" +
		"ACE2016,22011-002,2024-02-10,C1D1,101,SCRI 101,P-01,\n"
	testReported = "product,depot,lot,count\n" +
		"ACE2016,CryoGene Lab,22011,2\n"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, inventory.ShipmentsFile), []byte(testShipments), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, inventory.TreatmentsFile), []byte(testTreatments), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, inventory.ReportedFile), []byte(testReported), 0o600))
	return dir
}

func newTestCLI(t *testing.T, dir string) *ReconcileCLI {
	t.Helper()
	engine := inventory.NewEngine(inventory.EngineOptions{Catalog: inventory.DefaultCatalog()})
	cli, err := NewReconcileCLI(engine, inventory.NewCSVSource(dir))
	require.NoError(t, err)
	return cli
}

func TestReconcileCommandJSON(t *testing.T) {
	cli := newTestCLI(t, writeDataset(t))

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := cli.ReconcileCommand(context.Background(), ReconcileOptions{
		Product:           "ACE2016",
		JSONOutput:        true,
		FailOnDiscrepancy: true,
		Stdout:            stdout,
		Stderr:            stderr,
	})
	require.Equal(t, 10, code, stderr.String())

	var summary ReconcileSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Products, 1)
	rec := summary.Products[0]
	require.Equal(t, -1, rec.TotalDiscrepancy)
	require.Equal(t, 1, summary.Summary.AdministeredVials)
	require.Empty(t, summary.Unresolved)
}

func TestReconcileCommandHumanOutput(t *testing.T) {
	cli := newTestCLI(t, writeDataset(t))

	stdout := new(bytes.Buffer)
	code := cli.ReconcileCommand(context.Background(), ReconcileOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "ACE2016: total discrepancy -1 (low, 1 mismatched)")
	require.Contains(t, stdout.String(), "CryoGene Lab")
}

func TestReconcileCommandFailsOnCancellingDepots(t *testing.T) {
	dir := t.TempDir()
	shipments := "Delivery Date,Product#,Vial ID,From_Location,To_Location\n" +
		"2024-01-05,ACE2016,22011-001,Factory,Acepodia TW\n"
	reported := "product,depot,lot,count\n" +
		"ACE2016,CryoGene Lab,Lot #22011,1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, inventory.ShipmentsFile), []byte(shipments), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, inventory.TreatmentsFile), []byte("Product,Vial ID,Patient ID\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, inventory.ReportedFile), []byte(reported), 0o600))
	cli := newTestCLI(t, dir)

	stdout := new(bytes.Buffer)
	code := cli.ReconcileCommand(context.Background(), ReconcileOptions{
		Product:           "ACE2016",
		FailOnDiscrepancy: true,
		Stdout:            stdout,
		Stderr:            new(bytes.Buffer),
	})
	require.Equal(t, 10, code)
	require.Contains(t, stdout.String(), "ACE2016: total discrepancy 0 (low, 2 mismatched)")
}

func TestReconcileCommandUnknownProduct(t *testing.T) {
	cli := newTestCLI(t, writeDataset(t))

	stderr := new(bytes.Buffer)
	code := cli.ReconcileCommand(context.Background(), ReconcileOptions{Product: "ACE9999", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "not tracked")
}

func TestReconcileCommandMissingSource(t *testing.T) {
	cli := newTestCLI(t, t.TempDir())

	stderr := new(bytes.Buffer)
	code := cli.ReconcileCommand(context.Background(), ReconcileOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "reconcile:")
}
