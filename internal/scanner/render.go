package scanner

import (
	"github.com/standardbeagle/wsd/internal/display"
)

// Display converts the report into the display model used by every output format
func (r *Report) Display() *display.Report {
	out := &display.Report{Notices: notes(r.Notices)}
	for _, f := range r.Files {
		df := display.File{
			Path:     f.DisplayPath,
			Notices:  notes(f.Notices),
			Warnings: f.Warnings,
		}
		for _, g := range f.Groups {
			dg := display.Group{Name: g.Function, Hooks: g.Hooks}
			for _, finding := range g.Findings {
				dg.Items = append(dg.Items, display.Item{
					Label: finding.Label,
					HTML:  finding.Description,
					Line:  finding.Line,
				})
			}
			df.Groups = append(df.Groups, dg)
		}
		out.Files = append(out.Files, df)
	}
	return out
}

// Render formats the report; format is text, markdown, html or json
func (r *Report) Render(format string, color bool) (string, error) {
	if format == "json" {
		// The scanner model carries hook links and resolved arrays the display model drops
		return display.NewTreeFormatter(display.FormatterOptions{Format: "json"}).FormatValue(r)
	}
	return display.NewTreeFormatter(display.FormatterOptions{
		Format:    format,
		Color:     color,
		ShowLines: true,
	}).Format(r.Display())
}

func notes(in []Notice) []display.Note {
	out := make([]display.Note, 0, len(in))
	for _, n := range in {
		out = append(out, display.Note{Level: string(n.Level), Message: n.Message})
	}
	return out
}
