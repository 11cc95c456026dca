// Package woo reads WooCommerce shipping zones, methods and their settings
// from a WordPress database or an offline snapshot.
package woo

import (
	"context"
	"sort"
)

// RestOfWorldZoneName is WooCommerce's name for zone 0
const RestOfWorldZoneName = "Locations not covered by your other zones"

// Location types stored in the zone locations table
const (
	LocationCountry   = "country"
	LocationState     = "state"
	LocationContinent = "continent"
	LocationPostcode  = "postcode"
)

// Location is one zone destination, e.g. {US:CA state}
type Location struct {
	Code string `yaml:"code" json:"code"`
	Type string `yaml:"type" json:"type"`
}

// Method is a shipping method instance inside a zone
type Method struct {
	InstanceID  int               `yaml:"instance_id" json:"instance_id"`
	ID          string            `yaml:"id" json:"id"`
	Title       string            `yaml:"title,omitempty" json:"title,omitempty"`
	MethodTitle string            `yaml:"method_title,omitempty" json:"method_title,omitempty"`
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Order       int               `yaml:"order" json:"order"`
	Settings    map[string]string `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Option returns a method setting or def when unset
func (m Method) Option(key, def string) string {
	if v, ok := m.Settings[key]; ok {
		return v
	}
	return def
}

// SettingKeys returns the method's setting names sorted
func (m Method) SettingKeys() []string {
	keys := make([]string, 0, len(m.Settings))
	for k := range m.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Zone is a shipping zone with its locations and methods in display order
type Zone struct {
	ID        int        `yaml:"id" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Order     int        `yaml:"order" json:"order"`
	Locations []Location `yaml:"locations,omitempty" json:"locations,omitempty"`
	Methods   []Method   `yaml:"methods,omitempty" json:"methods,omitempty"`
}

// Environment identifies the software a site runs
type Environment struct {
	WooCommerceVersion string `yaml:"woocommerce_version,omitempty" json:"woocommerce_version,omitempty"`
	WordPressVersion   string `yaml:"wordpress_version,omitempty" json:"wordpress_version,omitempty"`
	DatabaseVersion    string `yaml:"database_version,omitempty" json:"database_version,omitempty"`
	ThemeName          string `yaml:"theme_name,omitempty" json:"theme_name,omitempty"`
	ThemeVersion       string `yaml:"theme_version,omitempty" json:"theme_version,omitempty"`
}

// Source provides shipping settings
type Source interface {
	// Zones returns configured zones ordered as in the WooCommerce admin, followed by zone 0
	Zones(ctx context.Context) ([]Zone, error)
	Environment(ctx context.Context) (Environment, error)
	Close() error
}

// defaultMethodTitles are the built-in method class titles used when a method has no custom title
var defaultMethodTitles = map[string]string{
	"flat_rate":     "Flat rate",
	"free_shipping": "Free shipping",
	"local_pickup":  "Local pickup",
}

// withRestOfWorld appends an empty zone 0 when the list lacks one
func withRestOfWorld(zones []Zone) []Zone {
	for _, z := range zones {
		if z.ID == 0 {
			return zones
		}
	}
	return append(zones, Zone{ID: 0, Name: RestOfWorldZoneName})
}
