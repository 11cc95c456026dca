// Package preview builds the shipping zones table shown next to the CSV export:
// one row per zone with its locations, method summaries, edit links and
// configuration warnings.
package preview

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/standardbeagle/wsd/internal/config"
	"github.com/standardbeagle/wsd/internal/display"
	"github.com/standardbeagle/wsd/internal/woo"
)

// Zone issues reported in the warnings block
const (
	IssueNoEnabledMethods  = "Zone has no enabled shipping methods. You might want to add or enable at least one shipping method for this zone in WooCommerce settings."
	IssueFreeNoRequirement = "Free Shipping has no requirement (no minimum and no coupon)."
)

const (
	enabledBadge  = `<span style="display:inline-block;padding:2px 6px;border-radius:12px;background:#e7f7ed;color:#0a732e;font-size:11px;margin-right:6px;">Enabled</span>`
	disabledBadge = `<span style="display:inline-block;padding:2px 6px;border-radius:12px;background:#f7e7e7;color:#8a0b0b;font-size:11px;margin-right:6px;">Disabled</span>`
)

// Options filters and caps the preview
type Options struct {
	IssuesOnly     bool
	EnabledOnly    bool
	Cap            int
	MaxLocations   int
	AdminURL       string
	CurrencySymbol string
}

// OptionsFromConfig reads preview defaults from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IssuesOnly:     cfg.Preview.IssuesOnly,
		EnabledOnly:    cfg.Preview.EnabledOnly,
		Cap:            cfg.Preview.MaxRows,
		MaxLocations:   cfg.Preview.MaxLocations,
		AdminURL:       cfg.Site.AdminURL,
		CurrencySymbol: cfg.Preview.CurrencySymbol,
	}
}

func (o Options) withDefaults() Options {
	if o.Cap <= 0 {
		o.Cap = config.DefaultMaxPreviewRows
	}
	if o.MaxLocations <= 0 {
		o.MaxLocations = config.DefaultMaxLocations
	}
	if o.AdminURL == "" {
		o.AdminURL = config.DefaultAdminPath
	}
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = config.DefaultCurrencySymbol
	}
	return o
}

// MethodLine is one method shown in a zone row
type MethodLine struct {
	InstanceID int    `json:"instance_id"`
	ID         string `json:"id"`
	Enabled    bool   `json:"enabled"`
	Summary    string `json:"summary"` // HTML
	EditURL    string `json:"edit_url"`
}

// Row is a zone in the preview table
type Row struct {
	ZoneID    int          `json:"zone_id"`
	ZoneName  string       `json:"zone_name"`
	Enabled   int          `json:"enabled"`
	Disabled  int          `json:"disabled"`
	Locations string       `json:"locations"` // HTML
	Methods   []MethodLine `json:"methods"`
	EditURL   string       `json:"edit_url"`
	Issues    []string     `json:"issues,omitempty"`
}

// Warning lists the issues found in one zone
type Warning struct {
	Zone   string   `json:"zone"`
	Issues []string `json:"issues"`
}

// Result is the assembled preview
type Result struct {
	Rows     []Row     `json:"rows"`
	Total    int       `json:"total"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Remaining is the number of matching zones left out by the row cap
func (r *Result) Remaining() int {
	return r.Total - len(r.Rows)
}

// CollectZoneRows assembles preview rows in zone order. Zones past the cap
// are counted and still contribute warnings.
func CollectZoneRows(zones []woo.Zone, opts Options) *Result {
	opts = opts.withDefaults()
	res := &Result{}

	for _, z := range zones {
		row := Row{
			ZoneID:    z.ID,
			ZoneName:  z.Name,
			Locations: FormatLocations(z, opts.MaxLocations),
			EditURL:   ZoneEditLink(opts.AdminURL, z.ID),
		}

		for _, m := range z.Methods {
			if m.Enabled {
				row.Enabled++
			} else {
				row.Disabled++
			}
			if opts.EnabledOnly && !m.Enabled {
				continue
			}
			row.Methods = append(row.Methods, MethodLine{
				InstanceID: m.InstanceID,
				ID:         m.ID,
				Enabled:    m.Enabled,
				Summary:    SummarizeMethod(m, opts.CurrencySymbol),
				EditURL:    MethodEditLink(opts.AdminURL, z.ID, m.InstanceID),
			})
		}

		row.Issues = zoneIssues(z, row.Enabled)
		if opts.IssuesOnly && len(row.Issues) == 0 {
			continue
		}
		if len(row.Issues) > 0 {
			res.Warnings = append(res.Warnings, Warning{Zone: z.Name, Issues: row.Issues})
		}

		res.Total++
		if len(res.Rows) < opts.Cap {
			res.Rows = append(res.Rows, row)
		}
	}
	return res
}

func zoneIssues(z woo.Zone, enabled int) []string {
	var issues []string
	if enabled == 0 {
		issues = append(issues, IssueNoEnabledMethods)
	}
	for _, m := range z.Methods {
		if m.ID != "free_shipping" || !m.Enabled {
			continue
		}
		if requires := m.Option("requires", ""); requires == "" || requires == "no" {
			issues = append(issues, IssueFreeNoRequirement)
			break
		}
	}
	return issues
}

// SummarizeMethod renders the method title and its detail as an HTML fragment
func SummarizeMethod(m woo.Method, currency string) string {
	title := MethodTitle(m)
	detail := methodDetail(m, currency)

	line := html.EscapeString(title)
	if detail != "" {
		line += ` — <span style="opacity:.85;">` + html.EscapeString(detail) + `</span>`
	}
	return line
}

// MethodTitle prefers the instance title, then the method class title, then the id
func MethodTitle(m woo.Method) string {
	switch {
	case m.Title != "":
		return m.Title
	case m.MethodTitle != "":
		return m.MethodTitle
	default:
		return m.ID
	}
}

func methodDetail(m woo.Method, currency string) string {
	switch m.ID {
	case "flat_rate":
		cost := m.Option("cost", "")
		if cost == "" {
			return ""
		}
		if amount, ok := numeric(cost); ok {
			return "cost " + display.Price(amount, currency)
		}
		return "cost expression: " + cost
	case "free_shipping":
		switch m.Option("requires", "") {
		case "min_amount":
			if amount, ok := numeric(m.Option("min_amount", "")); ok {
				return "minimum order amount: " + display.Price(amount, currency)
			}
			return "minimum order amount"
		case "coupon":
			return "requires a valid free-shipping coupon"
		case "either":
			if amount, ok := numeric(m.Option("min_amount", "")); ok {
				return "coupon or minimum: " + display.Price(amount, currency)
			}
			return "coupon or minimum amount"
		default:
			return "no requirement"
		}
	case "local_pickup":
		return "local pickup"
	}
	return ""
}

func numeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// FormatLocations lists zone location codes, showing at most limit of them
func FormatLocations(z woo.Zone, limit int) string {
	if len(z.Locations) == 0 {
		return "<em>Rest of the world</em>"
	}
	if limit <= 0 {
		limit = config.DefaultMaxLocations
	}

	parts := make([]string, 0, limit)
	for _, loc := range z.Locations {
		if len(parts) >= limit {
			break
		}
		parts = append(parts, html.EscapeString(loc.Code))
	}

	label := strings.Join(parts, ", ")
	if more := len(z.Locations) - limit; more > 0 {
		label += fmt.Sprintf(` <span style="opacity:.75;">+%d more</span>`, more)
	}
	return label
}

// ZoneEditLink points at the zone's WooCommerce settings screen
func ZoneEditLink(adminURL string, zoneID int) string {
	return adminBase(adminURL) + "admin.php?page=wc-settings&tab=shipping&section=shipping_zones&zone_id=" + strconv.Itoa(zoneID)
}

// MethodEditLink points at a method instance inside a zone
func MethodEditLink(adminURL string, zoneID, instanceID int) string {
	return ZoneEditLink(adminURL, zoneID) + "&instance_id=" + strconv.Itoa(instanceID)
}

func adminBase(adminURL string) string {
	if adminURL == "" {
		adminURL = config.DefaultAdminPath
	}
	if !strings.HasSuffix(adminURL, "/") {
		adminURL += "/"
	}
	return adminURL
}
