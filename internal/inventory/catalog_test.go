package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogClassification(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())

	require.True(t, c.Tracks("ACE2016"))
	require.False(t, c.Tracks("ace2016"))
	require.True(t, c.IsDepot("CRYOGENE lab"))
	require.True(t, c.IsDepot("Acepodia TW"))
	require.False(t, c.IsDepot("Queen Mary Hospital"))
	require.True(t, c.IsSite("Queen Mary Hospital"))
	require.False(t, c.IsSite("CryoGene Site"), "depot rules win over site rules")

	require.Equal(t, 101, c.SiteID("SCRI Nashville"))
	require.Equal(t, 207, c.SiteID("China Medical University Taichung"))
	require.Equal(t, 100, c.SiteID("Clinical Site 9"))
	require.Equal(t, 100, c.SiteID("Somewhere"))

	require.Equal(t, []string{"Acepodia TW", "CryoGene Lab"}, c.DepotNames())
}

func TestClassifyTransfer(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, TransferDepotToDepot, c.ClassifyTransfer("Acepodia TW", "CryoGene Lab"))
	require.Equal(t, TransferDepotToSite, c.ClassifyTransfer("CryoGene Lab", "Advent Health"))
	require.Equal(t, TransferDepotToSite, c.ClassifyTransfer("Advent Health", "CryoGene Lab"))
	require.Equal(t, TransferOther, c.ClassifyTransfer("Courier", "CryoGene Lab"))
	require.Equal(t, TransferOther, c.ClassifyTransfer("", ""))
}

func TestCatalogValidate(t *testing.T) {
	c := DefaultCatalog()
	c.Products = nil
	require.ErrorIs(t, c.Validate(), ErrInvalidCatalog)

	c = DefaultCatalog()
	c.Depots = append(c.Depots, DepotRule{Name: "cryogene lab", Match: "Cryo"})
	require.ErrorIs(t, c.Validate(), ErrInvalidCatalog)

	c = DefaultCatalog()
	c.Sites = append(c.Sites, SiteRule{Match: "Bad", ID: 0})
	require.ErrorIs(t, c.Validate(), ErrInvalidCatalog)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"products": ["NEW1"],
		"depots": [{"name": "North Depot", "match": "North"}],
		"sites": [{"match": "General", "id": 9}],
		"default_site_id": 1,
		"low_stock_threshold": 4
	}`), 0o600))

	c, err := LoadCatalog(good)
	require.NoError(t, err)
	require.Equal(t, []string{"NEW1"}, c.Products)
	require.True(t, c.IsDepot("north depot"))
	require.Equal(t, 9, c.SiteID("General Hospital"))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"products": []`), 0o600))
	_, err = LoadCatalog(bad)
	require.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = LoadCatalog(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
