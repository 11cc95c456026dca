package selftest

import (
	"bufio"
	"bytes"
	"html"
	"os"
	"strings"

	"github.com/yuin/goldmark"
)

// DefaultChangelogLines is how much of the changelog the plain text fallback shows
const DefaultChangelogLines = 100

// ChangelogPreview renders the changelog as HTML. When rendering fails the
// first lines are shown as preformatted text.
func ChangelogPreview(path string, lines int) string {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "<p>changelog.md file not found.</p>"
	}
	if err != nil {
		return "<p>Unable to read changelog.md.</p>"
	}

	var buf bytes.Buffer
	if err := goldmark.New().Convert(data, &buf); err == nil && buf.Len() > 0 {
		return buf.String()
	}
	return plainChangelog(data, lines)
}

func plainChangelog(data []byte, lines int) string {
	if lines <= 0 {
		lines = DefaultChangelogLines
	}
	var kept []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() && len(kept) < lines {
		kept = append(kept, sc.Text())
	}
	return "<p><em>Rendering failed; showing the first lines as plain text.</em></p><pre>" +
		html.EscapeString(strings.Join(kept, "\n")) + "</pre>"
}
