package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"io"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/charmbracelet/lipgloss"
)

// Report is the display model of a scan: files, their function groups and findings
type Report struct {
	Notices []Note `json:"notices,omitempty"`
	Files   []File `json:"files"`
}

// File is one scanned file
type File struct {
	Path     string   `json:"path"`
	Notices  []Note   `json:"notices,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Groups   []Group  `json:"groups,omitempty"`
}

// Group is a function, method, closure or the file scope
type Group struct {
	Name  string   `json:"function"`
	Hooks []string `json:"hooks,omitempty"`
	Items []Item   `json:"findings"`
}

// Item is one finding. HTML holds the description with inline markup.
type Item struct {
	Label string `json:"label"`
	HTML  string `json:"description"`
	Line  int    `json:"line"`
}

// Note is a leveled message
type Note struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// TreeFormatter renders reports
type TreeFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls report formatting
type FormatterOptions struct {
	Format    string // "text", "markdown", "html", "json"
	Color     bool   // Style headings for a terminal
	ShowLines bool   // Append (line N) to findings
	Indent    string // Indentation string
}

// NewTreeFormatter creates a new formatter
func NewTreeFormatter(options FormatterOptions) *TreeFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &TreeFormatter{options: options}
}

// Format renders a report in the configured format
func (tf *TreeFormatter) Format(r *Report) (string, error) {
	if r == nil {
		return "No report available", nil
	}

	switch tf.options.Format {
	case "json":
		return tf.formatJSON(r)
	case "html":
		return tf.formatHTML(r)
	case "markdown", "md":
		return tf.formatMarkdown(r), nil
	default:
		return tf.formatText(r), nil
	}
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	groupStyle   = lipgloss.NewStyle().Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func (tf *TreeFormatter) style(s lipgloss.Style, text string) string {
	if !tf.options.Color {
		return text
	}
	return s.Render(text)
}

// formatText draws each file as a tree of groups and findings
func (tf *TreeFormatter) formatText(r *Report) string {
	var sb strings.Builder
	for _, n := range r.Notices {
		sb.WriteString(tf.style(warnStyle, fmt.Sprintf("[%s] %s", n.Level, n.Message)) + "\n")
	}

	for i, f := range r.Files {
		if i > 0 || len(r.Notices) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(tf.style(headingStyle, "Scanning "+f.Path) + "\n")
		for _, n := range f.Notices {
			sb.WriteString(tf.options.Indent + n.Message + "\n")
		}
		for _, w := range f.Warnings {
			sb.WriteString(tf.options.Indent + tf.style(warnStyle, "warning: "+w) + "\n")
		}

		for gi, g := range f.Groups {
			lastGroup := gi == len(f.Groups)-1
			branch, childPrefix := "├─→ ", "│   "
			if lastGroup {
				branch, childPrefix = "└─→ ", "    "
			}
			name := "Function: " + g.Name
			if len(g.Hooks) > 0 {
				name += " (" + strings.Join(g.Hooks, ", ") + ")"
			}
			sb.WriteString(branch + tf.style(groupStyle, name) + "\n")

			for ii, item := range g.Items {
				itemBranch := "├─→ "
				if ii == len(g.Items)-1 {
					itemBranch = "└─→ "
				}
				sb.WriteString(childPrefix + itemBranch + item.Label + " — " + PlainText(item.HTML))
				if tf.options.ShowLines && item.Line > 0 {
					sb.WriteString(" " + tf.style(dimStyle, fmt.Sprintf("(line %d)", item.Line)))
				}
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func (tf *TreeFormatter) formatMarkdown(r *Report) string {
	var sb strings.Builder
	for _, n := range r.Notices {
		sb.WriteString(fmt.Sprintf("> **%s:** %s\n\n", n.Level, n.Message))
	}
	for _, f := range r.Files {
		sb.WriteString("### Scanning `" + f.Path + "`\n\n")
		for _, n := range f.Notices {
			sb.WriteString("_" + n.Message + "_\n\n")
		}
		for _, w := range f.Warnings {
			sb.WriteString("> " + w + "\n\n")
		}
		for _, g := range f.Groups {
			sb.WriteString("#### Function: `" + g.Name + "`")
			if len(g.Hooks) > 0 {
				sb.WriteString(" (" + strings.Join(g.Hooks, ", ") + ")")
			}
			sb.WriteString("\n\n")
			for _, item := range g.Items {
				sb.WriteString("- **" + item.Label + "** — " + Markdown(item.HTML))
				if tf.options.ShowLines && item.Line > 0 {
					sb.WriteString(fmt.Sprintf(" (line %d)", item.Line))
				}
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

var reportTemplate = template.Must(template.New("report").Parse(`
{{- range .Notices}}<div class="notice notice-{{.Level}}"><p>{{.Message}}</p></div>
{{end -}}
{{- range .Files}}<h3>Scanning <code>{{.Path}}</code></h3>
{{range .Notices}}<p><em>{{.Message}}</em></p>
{{end -}}
{{range .Warnings}}<div class="notice notice-warning"><p>{{.}}</p></div>
{{end -}}
{{range .Groups}}<h4>Function: <code>{{.Name}}</code>{{range .Hooks}} <span class="hook">{{.}}</span>{{end}}</h4>
<ul>
{{range .Items}}<li><strong>{{.Label}}</strong> — {{.Description}} <span style="opacity:.7;">(line {{.Line}})</span></li>
{{end}}</ul>
{{end -}}
{{end -}}`))

type htmlItem struct {
	Label       string
	Description template.HTML
	Line        int
}

type htmlGroup struct {
	Name  string
	Hooks []string
	Items []htmlItem
}

type htmlFile struct {
	Path     string
	Notices  []Note
	Warnings []string
	Groups   []htmlGroup
}

// formatHTML renders the admin-page fragment. Descriptions are trusted markup
// built from escaped parts; every other field is escaped by the template.
func (tf *TreeFormatter) formatHTML(r *Report) (string, error) {
	var buf bytes.Buffer
	if err := tf.WriteHTML(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteHTML writes the admin-page fragment for r
func (tf *TreeFormatter) WriteHTML(w io.Writer, r *Report) error {
	data := struct {
		Notices []Note
		Files   []htmlFile
	}{Notices: r.Notices}
	for _, f := range r.Files {
		hf := htmlFile{Path: f.Path, Notices: f.Notices, Warnings: f.Warnings}
		for _, g := range f.Groups {
			hg := htmlGroup{Name: g.Name, Hooks: g.Hooks}
			for _, item := range g.Items {
				hg.Items = append(hg.Items, htmlItem{Label: item.Label, Description: template.HTML(item.HTML), Line: item.Line})
			}
			hf.Groups = append(hf.Groups, hg)
		}
		data.Files = append(data.Files, hf)
	}
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

func (tf *TreeFormatter) formatJSON(r *Report) (string, error) {
	return tf.FormatValue(r)
}

// FormatValue encodes any report-like value as indented JSON
func (tf *TreeFormatter) FormatValue(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", tf.options.Indent)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return string(data), nil
}

// Markdown converts a description fragment to inline markdown
func Markdown(fragment string) string {
	md, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return PlainText(fragment)
	}
	return strings.TrimSpace(md)
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// PlainText strips markup from a description fragment and decodes entities
func PlainText(fragment string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(fragment, ""))
}
