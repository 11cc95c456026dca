package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/wsd/internal/woo"
)

func TestWriteCSV(t *testing.T) {
	zones := []woo.Zone{
		{
			ID: 3, Name: "West, Coast", Order: 1,
			Locations: []woo.Location{{Code: "US:CA", Type: "state"}, {Code: "US:WA", Type: "state"}},
			Methods: []woo.Method{
				{InstanceID: 7, ID: "flat_rate", Title: "Ground", Enabled: true, Order: 1,
					Settings: map[string]string{"title": "Ground", "cost": "12", "tax_status": "taxable"}},
				{InstanceID: 8, ID: "free_shipping", MethodTitle: "Free shipping", Order: 2},
			},
		},
		{ID: 0, Name: woo.RestOfWorldZoneName},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, zones, "$"))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{
		"3", "West, Coast", "1", "US:CA, US:WA",
		"7", "flat_rate", "Ground", "yes", "1",
		"Ground — cost $12",
		"cost=12; tax_status=taxable; title=Ground",
	}, records[1])
	assert.Equal(t, "Free shipping", records[2][6])
	assert.Equal(t, "no", records[2][7])
	assert.Equal(t, "Free shipping — no requirement", records[2][9])
	assert.Equal(t, "", records[2][10])

	assert.Equal(t, []string{"0", woo.RestOfWorldZoneName, "0", "", "", "", "", "", "", "", ""}, records[3])
}

func TestFilename(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		home string
		want string
	}{
		{"https://shop.example.com", "shop.example.com-shipping-2024-03-09-140507.csv"},
		{"https://shop.example.com:8443/store/", "shop.example.com-shipping-2024-03-09-140507.csv"},
		{"localhost", "localhost-shipping-2024-03-09-140507.csv"},
		{"", "shipping-2024-03-09-140507.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.home, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.home, at))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my-shop-shipping.csv", SanitizeFilename("my shop?-shipping.csv"))
	assert.Equal(t, "a-b.csv", SanitizeFilename("a  -- b.csv"))
	assert.Equal(t, "name.csv", SanitizeFilename("../name.csv"))
}
