// Package export writes WooCommerce's UI shipping settings as CSV.
package export

import (
	"encoding/csv"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/standardbeagle/wsd/internal/display"
	"github.com/standardbeagle/wsd/internal/preview"
	"github.com/standardbeagle/wsd/internal/woo"
)

// Header is the CSV column order
var Header = []string{
	"zone_id",
	"zone_name",
	"zone_order",
	"locations",
	"method_instance_id",
	"method_id",
	"method_title",
	"enabled",
	"method_order",
	"summary",
	"settings",
}

// WriteCSV writes one row per method; zones without methods get a single row
// with empty method columns.
func WriteCSV(w io.Writer, zones []woo.Zone, currency string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, z := range zones {
		zoneCols := []string{
			strconv.Itoa(z.ID),
			z.Name,
			strconv.Itoa(z.Order),
			locations(z),
		}
		if len(z.Methods) == 0 {
			if err := cw.Write(append(zoneCols, "", "", "", "", "", "", "")); err != nil {
				return err
			}
			continue
		}
		for _, m := range z.Methods {
			row := append(append([]string{}, zoneCols...),
				strconv.Itoa(m.InstanceID),
				m.ID,
				preview.MethodTitle(m),
				yesNo(m.Enabled),
				strconv.Itoa(m.Order),
				display.PlainText(preview.SummarizeMethod(m, currency)),
				settings(m),
			)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func locations(z woo.Zone) string {
	codes := make([]string, len(z.Locations))
	for i, loc := range z.Locations {
		codes[i] = loc.Code
	}
	return strings.Join(codes, ", ")
}

func settings(m woo.Method) string {
	keys := m.SettingKeys()
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + m.Settings[k]
	}
	return strings.Join(pairs, "; ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var (
	unsafeFilenameChars = regexp.MustCompile("[?\\[\\]/\\\\=<>:;,'\"&$#*()|~`!{}%+’«»”“\\x00-\\x1f]")
	filenameSpaces      = regexp.MustCompile(`[\s-]+`)
)

// Filename builds <host>-shipping-<YYYY-MM-DD-HHMMSS>.csv from the site URL or host
func Filename(home string, t time.Time) string {
	host := home
	if u, err := url.Parse(home); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	return SanitizeFilename(host + "-shipping-" + t.Format("2006-01-02-150405") + ".csv")
}

// SanitizeFilename strips characters that are unsafe in download names
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = filenameSpaces.ReplaceAllString(name, "-")
	return strings.Trim(name, ".-_")
}
