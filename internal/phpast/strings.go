package phpast

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// StringLiteral returns the value of a single-quoted string, nowdoc, or a
// double-quoted string without interpolation.
func (f *File) StringLiteral(n *sitter.Node) (string, bool) {
	n = Unparen(n)
	if n == nil {
		return "", false
	}
	switch n.Kind() {
	case "string":
		return unquoteSingle(f.Text(n)), true
	case "encapsed_string":
		var interpolated bool
		out := f.Interpolate(n, func(*sitter.Node) string {
			interpolated = true
			return ""
		})
		if interpolated {
			return "", false
		}
		return out, true
	case "nowdoc":
		if body := FindChildByType(n, "nowdoc_body"); body != nil {
			return strings.TrimSuffix(f.Text(body), "\n"), true
		}
	}
	return "", false
}

// Interpolate renders a double-quoted string, calling part for every embedded
// expression ({$x}, $x, $x[k], $x->y). Literal segments have escapes decoded.
func (f *File) Interpolate(n *sitter.Node, part func(*sitter.Node) string) string {
	start, end := n.StartByte(), n.EndByte()
	if count := n.ChildCount(); count > 0 {
		if first := n.Child(0); first != nil && !first.IsNamed() && strings.HasSuffix(f.Text(first), `"`) {
			start = first.EndByte()
		} else {
			start++
		}
		if last := n.Child(count - 1); last != nil && !last.IsNamed() && f.Text(last) == `"` && last.StartByte() >= start {
			end = last.StartByte()
		} else if end > start {
			end--
		}
	}

	var b strings.Builder
	cursor := start
	flush := func(upTo uint) {
		if upTo > cursor && upTo <= uint(len(f.Source)) {
			b.WriteString(unescapeDouble(string(f.Source[cursor:upTo])))
		}
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil || c.StartByte() < start || c.EndByte() > end {
			continue
		}
		switch {
		case !c.IsNamed() && (f.Text(c) == "{" || f.Text(c) == "}" || f.Text(c) == "${"):
			flush(c.StartByte())
			cursor = c.EndByte()
		case c.IsNamed() && isInterpolation(c.Kind()):
			flush(c.StartByte())
			b.WriteString(part(c))
			cursor = c.EndByte()
		}
	}
	flush(end)
	return b.String()
}

func isInterpolation(kind string) bool {
	switch kind {
	case "string_content", "string_value", "escape_sequence", "text":
		return false
	}
	return true
}

func unquoteSingle(raw string) string {
	i := strings.IndexByte(raw, '\'')
	j := strings.LastIndexByte(raw, '\'')
	if i < 0 || j <= i {
		return raw
	}
	body := raw[i+1 : j]
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for k := 0; k < len(body); k++ {
		if body[k] == '\\' && k+1 < len(body) && (body[k+1] == '\\' || body[k+1] == '\'') {
			k++
		}
		b.WriteByte(body[k])
	}
	return b.String()
}

var doubleEscapes = map[byte]string{
	'n': "\n", 't': "\t", 'r': "\r", 'v': "\v", 'f': "\f", 'e': "\x1b",
	'\\': `\`, '$': "$", '"': `"`,
}

func unescapeDouble(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for k := 0; k < len(s); k++ {
		if s[k] == '\\' && k+1 < len(s) {
			if rep, ok := doubleEscapes[s[k+1]]; ok {
				b.WriteString(rep)
				k++
				continue
			}
		}
		b.WriteByte(s[k])
	}
	return b.String()
}
