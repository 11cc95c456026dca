package preview

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/wsd/internal/woo"
)

func method(id string, instance int, enabled bool, settings map[string]string) woo.Method {
	return woo.Method{InstanceID: instance, ID: id, Title: settings["title"], Enabled: enabled, Settings: settings}
}

func TestSummarizeMethod(t *testing.T) {
	tests := []struct {
		name   string
		method woo.Method
		want   string
	}{
		{
			name:   "flat rate numeric cost",
			method: woo.Method{ID: "flat_rate", Title: "Ground", Settings: map[string]string{"cost": "1250.5"}},
			want:   `Ground — <span style="opacity:.85;">cost $1,250.50</span>`,
		},
		{
			name:   "flat rate expression",
			method: woo.Method{ID: "flat_rate", Title: "Per item", Settings: map[string]string{"cost": "10 * [qty]"}},
			want:   `Per item — <span style="opacity:.85;">cost expression: 10 * [qty]</span>`,
		},
		{
			name:   "flat rate without cost",
			method: woo.Method{ID: "flat_rate", MethodTitle: "Flat rate"},
			want:   `Flat rate`,
		},
		{
			name:   "free shipping minimum",
			method: woo.Method{ID: "free_shipping", Title: "Free", Settings: map[string]string{"requires": "min_amount", "min_amount": "50"}},
			want:   `Free — <span style="opacity:.85;">minimum order amount: $50</span>`,
		},
		{
			name:   "free shipping minimum not numeric",
			method: woo.Method{ID: "free_shipping", Title: "Free", Settings: map[string]string{"requires": "min_amount"}},
			want:   `Free — <span style="opacity:.85;">minimum order amount</span>`,
		},
		{
			name:   "free shipping coupon",
			method: woo.Method{ID: "free_shipping", Title: "Free", Settings: map[string]string{"requires": "coupon"}},
			want:   `Free — <span style="opacity:.85;">requires a valid free-shipping coupon</span>`,
		},
		{
			name:   "free shipping either",
			method: woo.Method{ID: "free_shipping", Title: "Free", Settings: map[string]string{"requires": "either", "min_amount": "75"}},
			want:   `Free — <span style="opacity:.85;">coupon or minimum: $75</span>`,
		},
		{
			name:   "free shipping either without amount",
			method: woo.Method{ID: "free_shipping", Title: "Free", Settings: map[string]string{"requires": "either"}},
			want:   `Free — <span style="opacity:.85;">coupon or minimum amount</span>`,
		},
		{
			name:   "free shipping no requirement",
			method: woo.Method{ID: "free_shipping", Title: "Free"},
			want:   `Free — <span style="opacity:.85;">no requirement</span>`,
		},
		{
			name:   "local pickup falls back to id",
			method: woo.Method{ID: "local_pickup"},
			want:   `local_pickup — <span style="opacity:.85;">local pickup</span>`,
		},
		{
			name:   "title is escaped",
			method: woo.Method{ID: "table_rate", Title: "Fast & <Cheap>"},
			want:   `Fast &amp; &lt;Cheap&gt;`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeMethod(tt.method, "$"))
		})
	}
}

func TestFormatLocations(t *testing.T) {
	assert.Equal(t, "<em>Rest of the world</em>", FormatLocations(woo.Zone{}, 6))

	few := woo.Zone{Locations: []woo.Location{{Code: "US:CA", Type: "state"}, {Code: "US:OR", Type: "state"}}}
	assert.Equal(t, "US:CA, US:OR", FormatLocations(few, 6))

	var many woo.Zone
	for i := 0; i < 9; i++ {
		many.Locations = append(many.Locations, woo.Location{Code: fmt.Sprintf("P%d", i), Type: "postcode"})
	}
	assert.Equal(t, `P0, P1, P2, P3, P4, P5 <span style="opacity:.75;">+3 more</span>`, FormatLocations(many, 6))
}

func TestEditLinks(t *testing.T) {
	assert.Equal(t,
		"https://shop.test/wp-admin/admin.php?page=wc-settings&tab=shipping&section=shipping_zones&zone_id=3",
		ZoneEditLink("https://shop.test/wp-admin", 3))
	assert.Equal(t,
		"/wp-admin/admin.php?page=wc-settings&tab=shipping&section=shipping_zones&zone_id=0&instance_id=12",
		MethodEditLink("", 0, 12))
}

func sampleZones() []woo.Zone {
	return []woo.Zone{
		{
			ID: 1, Name: "Domestic",
			Locations: []woo.Location{{Code: "US", Type: "country"}},
			Methods: []woo.Method{
				method("flat_rate", 1, true, map[string]string{"title": "Ground", "cost": "8"}),
				method("free_shipping", 2, true, map[string]string{"requires": "min_amount", "min_amount": "99"}),
				method("local_pickup", 3, false, nil),
			},
		},
		{
			ID: 2, Name: "Canada",
			Locations: []woo.Location{{Code: "CA", Type: "country"}},
			Methods: []woo.Method{
				method("flat_rate", 4, false, nil),
			},
		},
		{
			ID: 0, Name: woo.RestOfWorldZoneName,
			Methods: []woo.Method{
				method("free_shipping", 5, true, map[string]string{"requires": "no"}),
			},
		},
	}
}

func TestCollectZoneRows(t *testing.T) {
	res := CollectZoneRows(sampleZones(), Options{})

	require.Len(t, res.Rows, 3)
	assert.Equal(t, 3, res.Total)
	assert.Zero(t, res.Remaining())

	domestic := res.Rows[0]
	assert.Equal(t, 2, domestic.Enabled)
	assert.Equal(t, 1, domestic.Disabled)
	assert.Len(t, domestic.Methods, 3)
	assert.Empty(t, domestic.Issues)
	assert.Equal(t, `<strong>Domestic</strong><br><span style="opacity:.75;">2 enabled / 1 disabled</span>`, domestic.ZoneCell())

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "Canada", res.Warnings[0].Zone)
	assert.Equal(t, []string{IssueNoEnabledMethods}, res.Warnings[0].Issues)
	assert.Equal(t, []string{IssueFreeNoRequirement}, res.Warnings[1].Issues)

	warnings := res.WarningsHTML()
	assert.True(t, strings.HasPrefix(warnings, "⚠️ <strong>Canada</strong>: Zone has no enabled"))
	assert.Contains(t, warnings, "<br>⚠️ <strong>Locations not covered by your other zones</strong>: Free Shipping has no requirement")
}

func TestCollectZoneRows_Filters(t *testing.T) {
	t.Run("issues only", func(t *testing.T) {
		res := CollectZoneRows(sampleZones(), Options{IssuesOnly: true})
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "Canada", res.Rows[0].ZoneName)
		assert.Equal(t, 0, res.Rows[1].ZoneID)
	})

	t.Run("enabled only keeps counts", func(t *testing.T) {
		res := CollectZoneRows(sampleZones(), Options{EnabledOnly: true})
		domestic := res.Rows[0]
		assert.Len(t, domestic.Methods, 2)
		assert.Equal(t, 1, domestic.Disabled)

		canada := res.Rows[1]
		assert.Empty(t, canada.Methods)
		assert.Equal(t, "<em>—</em>", canada.MethodsCell())
		assert.Equal(t, 1, canada.Disabled)
	})

	t.Run("cap", func(t *testing.T) {
		res := CollectZoneRows(sampleZones(), Options{Cap: 1})
		assert.Len(t, res.Rows, 1)
		assert.Equal(t, 3, res.Total)
		assert.Equal(t, "And 2 more rows...", res.OverflowText())
		assert.Len(t, res.Warnings, 2)
	})
}

func TestRowCells(t *testing.T) {
	res := CollectZoneRows(sampleZones(), Options{AdminURL: "/wp-admin/"})
	row := res.Rows[0]

	methods := row.MethodsCell()
	lines := strings.Split(methods, "<br>")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "#e7f7ed")
	assert.Contains(t, lines[0], `Ground — <span style="opacity:.85;">cost $8</span>`)
	assert.Contains(t, lines[2], "#f7e7e7")

	links := row.LinksCell()
	assert.True(t, strings.HasPrefix(links, `<a href="/wp-admin/admin.php?page=wc-settings&amp;tab=shipping&amp;section=shipping_zones&amp;zone_id=1">Edit zone</a><br>`))
	assert.Equal(t, 2, strings.Count(links, " | "))

	assert.Len(t, row.Cells(), len(Headers))
}

func TestResultText(t *testing.T) {
	res := CollectZoneRows(sampleZones(), Options{Cap: 2})
	out := res.Text(false)

	assert.Contains(t, out, "⚠️ Canada: "+IssueNoEnabledMethods)
	assert.Contains(t, out, "Domestic (2 enabled / 1 disabled)")
	assert.Contains(t, out, "  Locations: US\n")
	assert.Contains(t, out, "  [Enabled] Ground — cost $8\n")
	assert.Contains(t, out, "  [Disabled] local_pickup — local pickup\n")
	assert.Contains(t, out, "  [Disabled] flat_rate\n")
	assert.Contains(t, out, "And 1 more rows...")
}
