package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCellString(t *testing.T) {
	require.Equal(t, "", cellString(nil))
	require.Equal(t, "abc", cellString("  abc "))
	require.Equal(t, "22011", cellString(22011.0))
	require.Equal(t, "1.5", cellString(1.5))
	require.Equal(t, "7", cellString(7))
	require.Equal(t, "2024-03-04", cellString(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		name  string
		in    any
		want  time.Time
		valid bool
		raw   string
	}{
		{name: "iso", in: "2024-02-29", want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), valid: true, raw: "2024-02-29"},
		{name: "slashes", in: "2024/3/5", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), valid: true, raw: "2024/3/5"},
		{name: "serial", in: 45292.0, want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), valid: true, raw: "45292"},
		{name: "serial text", in: "45293", want: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), valid: true, raw: "45293"},
		{name: "garbage", in: "soon", valid: false, raw: "soon"},
		{name: "empty", in: nil, valid: false, raw: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseDate(tc.in)
			require.Equal(t, tc.valid, got.Valid)
			require.Equal(t, tc.raw, got.Raw)
			if tc.valid {
				require.True(t, tc.want.Equal(got.Time), "got %s", got.Time)
			}
		})
	}
	require.Equal(t, "soon", parseDate("soon").String())
	require.Equal(t, "2024-01-01", parseDate(45292.0).String())
}

func TestNormalizeClassifiesAndDropsRows(t *testing.T) {
	n := NewNormalizer(DefaultCatalog())
	batch := n.Normalize(
		[]Row{
			{ColVialID: "22011-001", ColProductNo: "ACE2016", ColFromLocation: "Acepodia TW", ColToLocation: "CryoGene Lab", ColTransferType: "Depot to Site", ColMTFNo: "MTF-1"},
			{ColVialID: "22011-002", ColProductNo: "ACE2016", ColFromLocation: "CryoGene Lab", ColToLocation: "Norton Cancer Institute"},
			{ColVialID: "22011-003", ColProductNo: "ACE2016", ColFromLocation: "Courier", ColToLocation: "Warehouse"},
			{ColProductNo: "ACE2016", ColFromLocation: "Acepodia TW", ColToLocation: "CryoGene Lab"},
			{ColVialID: "   "},
		},
		[]Row{
			{ColVialID: "22011-002", ColProduct: "ACE2016", ColPatientID: "P-001", ColSiteNo: 104.0, ColTreatmentCycle: "C1D1"},
		},
	)

	require.Equal(t, 5, batch.RawShipmentRows)
	require.Equal(t, 2, batch.DroppedShipments)
	require.Len(t, batch.Shipments, 3)
	require.Equal(t, TransferDepotToDepot, batch.Shipments[0].TransferType)
	require.Equal(t, "Depot to Site", batch.Shipments[0].RecordedTransferType)
	require.Equal(t, "MTF-1", batch.Shipments[0].ReferenceNo)
	require.Equal(t, TransferDepotToSite, batch.Shipments[1].TransferType)
	require.Equal(t, TransferOther, batch.Shipments[2].TransferType)

	require.Len(t, batch.Treatments, 1)
	require.Equal(t, "104", batch.Treatments[0].SiteID)
	require.Equal(t, "C1D1", batch.Treatments[0].CycleLabel)
	require.Zero(t, batch.DroppedTreatments)
}
