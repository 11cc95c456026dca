package preview

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/standardbeagle/wsd/internal/display"
)

// Headers are the preview table's column titles
var Headers = []string{"Zone", "Locations", "Methods", "Links"}

// ZoneCell shows the zone name and its method counts
func (r Row) ZoneCell() string {
	return fmt.Sprintf(`<strong>%s</strong><br><span style="opacity:.75;">%s</span>`,
		html.EscapeString(r.ZoneName), html.EscapeString(r.Counts()))
}

// Counts reads "N enabled / M disabled"
func (r Row) Counts() string {
	return fmt.Sprintf("%d enabled / %d disabled", r.Enabled, r.Disabled)
}

// MethodsCell lists each method with an Enabled/Disabled badge
func (r Row) MethodsCell() string {
	if len(r.Methods) == 0 {
		return "<em>—</em>"
	}
	lines := make([]string, len(r.Methods))
	for i, m := range r.Methods {
		badge := disabledBadge
		if m.Enabled {
			badge = enabledBadge
		}
		lines[i] = badge + m.Summary
	}
	return strings.Join(lines, "<br>")
}

// LinksCell links to the zone and each shown method
func (r Row) LinksCell() string {
	parts := []string{link(r.EditURL, "Edit zone")}
	if len(r.Methods) > 0 {
		methods := make([]string, len(r.Methods))
		for i, m := range r.Methods {
			methods[i] = link(m.EditURL, "Edit method")
		}
		parts = append(parts, strings.Join(methods, " | "))
	}
	return strings.Join(parts, "<br>")
}

// Cells returns the row's HTML cells in Headers order
func (r Row) Cells() []string {
	return []string{r.ZoneCell(), r.Locations, r.MethodsCell(), r.LinksCell()}
}

func link(href, text string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), html.EscapeString(text))
}

// WarningsHTML is the aggregate warnings block, empty when no zone has issues
func (r *Result) WarningsHTML() string {
	if len(r.Warnings) == 0 {
		return ""
	}
	lines := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		lines[i] = fmt.Sprintf("<strong>%s</strong>: %s",
			html.EscapeString(w.Zone), html.EscapeString(strings.Join(w.Issues, "; ")))
	}
	return "⚠️ " + strings.Join(lines, "<br>⚠️ ")
}

// OverflowText reports rows left out by the cap
func (r *Result) OverflowText() string {
	if n := r.Remaining(); n > 0 {
		return fmt.Sprintf("And %d more rows...", n)
	}
	return ""
}

var (
	zoneStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
)

// Text renders the preview for a terminal, one zone per block
func (r *Result) Text(color bool) string {
	paint := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}

	var sb strings.Builder
	for _, w := range r.Warnings {
		sb.WriteString(paint(warningStyle, "⚠️ "+w.Zone+": "+strings.Join(w.Issues, "; ")) + "\n")
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("\n")
	}

	for i, row := range r.Rows {
		sb.WriteString(paint(zoneStyle, row.ZoneName) + " " + paint(mutedStyle, "("+row.Counts()+")") + "\n")
		sb.WriteString("  Locations: " + display.PlainText(row.Locations) + "\n")
		if len(row.Methods) == 0 {
			sb.WriteString("  Methods: —\n")
		}
		for _, m := range row.Methods {
			state := paint(disabledStyle, "[Disabled]")
			if m.Enabled {
				state = paint(enabledStyle, "[Enabled]")
			}
			sb.WriteString("  " + state + " " + display.PlainText(m.Summary) + "\n")
		}
		sb.WriteString("  " + paint(mutedStyle, row.EditURL) + "\n")
		if i < len(r.Rows)-1 {
			sb.WriteString("\n")
		}
	}

	if overflow := r.OverflowText(); overflow != "" {
		sb.WriteString("\n" + overflow + "\n")
	}
	return sb.String()
}
