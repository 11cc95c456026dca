package woo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/elliotchance/phpserialize"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/standardbeagle/wsd/internal/debug"
	wsderrors "github.com/standardbeagle/wsd/internal/errors"
)

// SQLSource reads the WooCommerce shipping tables of a WordPress database
type SQLSource struct {
	db       *sql.DB
	driver   string
	prefix   string
	wpRoot   string
	themeDir string
}

// SQLOptions configures a SQLSource
type SQLOptions struct {
	Driver        string // "mysql" or "sqlite"
	TablePrefix   string
	WordPressRoot string // enables WordPress version detection
	ThemeDir      string // enables theme name/version detection
}

// OpenSQL connects to a WordPress database
func OpenSQL(dsn string, opts SQLOptions) (*SQLSource, error) {
	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, wsderrors.NewSourceError(opts.Driver, "open", err)
	}
	return NewSQLSource(db, opts), nil
}

// NewSQLSource wraps an existing connection
func NewSQLSource(db *sql.DB, opts SQLOptions) *SQLSource {
	if opts.TablePrefix == "" {
		opts.TablePrefix = "wp_"
	}
	return &SQLSource{
		db:       db,
		driver:   opts.Driver,
		prefix:   opts.TablePrefix,
		wpRoot:   opts.WordPressRoot,
		themeDir: opts.ThemeDir,
	}
}

func (s *SQLSource) table(name string) string {
	return s.prefix + name
}

// Zones loads zones, locations, methods and method settings
func (s *SQLSource) Zones(ctx context.Context) ([]Zone, error) {
	zones, err := s.loadZones(ctx)
	if err != nil {
		return nil, err
	}
	zones = withRestOfWorld(zones)

	index := make(map[int]int, len(zones))
	for i, z := range zones {
		index[z.ID] = i
	}

	if err := s.loadLocations(ctx, zones, index); err != nil {
		return nil, err
	}
	if err := s.loadMethods(ctx, zones, index); err != nil {
		return nil, err
	}
	debug.LogSource("loaded %d zones from %s\n", len(zones), s.driver)
	return zones, nil
}

func (s *SQLSource) loadZones(ctx context.Context) ([]Zone, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT zone_id, zone_name, zone_order FROM %s ORDER BY zone_order ASC, zone_id ASC",
		s.table("woocommerce_shipping_zones")))
	if err != nil {
		return nil, wsderrors.NewSourceError(s.driver, "query zones", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.Order); err != nil {
			return nil, wsderrors.NewSourceError(s.driver, "scan zone", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, wsderrors.NewSourceError(s.driver, "read zones", err)
	}
	return zones, nil
}

func (s *SQLSource) loadLocations(ctx context.Context, zones []Zone, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT zone_id, location_code, location_type FROM %s ORDER BY location_id ASC",
		s.table("woocommerce_shipping_zone_locations")))
	if err != nil {
		return wsderrors.NewSourceError(s.driver, "query locations", err)
	}
	defer rows.Close()

	for rows.Next() {
		var zoneID int
		var loc Location
		if err := rows.Scan(&zoneID, &loc.Code, &loc.Type); err != nil {
			return wsderrors.NewSourceError(s.driver, "scan location", err)
		}
		if i, ok := index[zoneID]; ok {
			zones[i].Locations = append(zones[i].Locations, loc)
		}
	}
	if err := rows.Err(); err != nil {
		return wsderrors.NewSourceError(s.driver, "read locations", err)
	}
	return nil
}

func (s *SQLSource) loadMethods(ctx context.Context, zones []Zone, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT zone_id, instance_id, method_id, method_order, is_enabled FROM %s ORDER BY zone_id ASC, method_order ASC, instance_id ASC",
		s.table("woocommerce_shipping_zone_methods")))
	if err != nil {
		return wsderrors.NewSourceError(s.driver, "query methods", err)
	}

	type zoneMethod struct {
		zoneIndex int
		method    Method
	}
	var found []zoneMethod
	for rows.Next() {
		var zoneID, enabled int
		var m Method
		if err := rows.Scan(&zoneID, &m.InstanceID, &m.ID, &m.Order, &enabled); err != nil {
			rows.Close()
			return wsderrors.NewSourceError(s.driver, "scan method", err)
		}
		m.Enabled = enabled == 1
		if i, ok := index[zoneID]; ok {
			found = append(found, zoneMethod{zoneIndex: i, method: m})
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return wsderrors.NewSourceError(s.driver, "read methods", err)
	}

	// Settings are read after the cursor closes; sqlite connections cannot interleave queries
	for _, zm := range found {
		settings, err := s.methodSettings(ctx, zm.method)
		if err != nil {
			return err
		}
		zm.method.Settings = settings
		zm.method.Title = settings["title"]
		zm.method.MethodTitle = defaultMethodTitles[zm.method.ID]
		zones[zm.zoneIndex].Methods = append(zones[zm.zoneIndex].Methods, zm.method)
	}
	return nil
}

// methodSettings decodes the woocommerce_<method>_<instance>_settings option
func (s *SQLSource) methodSettings(ctx context.Context, m Method) (map[string]string, error) {
	name := "woocommerce_" + m.ID + "_" + strconv.Itoa(m.InstanceID) + "_settings"
	value, err := s.option(ctx, name)
	if err != nil || value == "" {
		return map[string]string{}, err
	}
	settings, err := DecodeSettings(value)
	if err != nil {
		debug.LogSource("option %s is not a serialized array: %v\n", name, err)
		return map[string]string{}, nil
	}
	return settings, nil
}

// option reads a wp_options value; missing options return ""
func (s *SQLSource) option(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT option_value FROM %s WHERE option_name = ?", s.table("options")), name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", wsderrors.NewSourceError(s.driver, "read option "+name, err)
	}
	return value, nil
}

// Environment reports WooCommerce, database, WordPress and theme versions
func (s *SQLSource) Environment(ctx context.Context) (Environment, error) {
	var env Environment
	wc, err := s.option(ctx, "woocommerce_version")
	if err != nil {
		return env, err
	}
	env.WooCommerceVersion = wc

	versionQuery := "SELECT VERSION()"
	if s.driver == "sqlite" {
		versionQuery = "SELECT sqlite_version()"
	}
	if err := s.db.QueryRowContext(ctx, versionQuery).Scan(&env.DatabaseVersion); err != nil {
		debug.LogSource("database version unavailable: %v\n", err)
	}

	fillLocalEnvironment(&env, s.wpRoot, s.themeDir)
	return env, nil
}

// Close releases the connection pool
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// DecodeSettings turns a PHP-serialized associative array into string settings.
// Nested arrays are flattened to comma-joined values.
func DecodeSettings(serialized string) (map[string]string, error) {
	decoded, err := phpserialize.UnmarshalAssociativeArray([]byte(serialized))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(decoded))
	for k, v := range decoded {
		out[fmt.Sprint(k)] = settingString(v)
	}
	return out, nil
}

func settingString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case map[interface{}]interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, settingString(item))
		}
		sort.Strings(parts)
		return strings.Join(parts, ",")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, settingString(item))
		}
		sort.Strings(parts)
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
