package rules

import (
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/wsd/internal/phpast"
)

// translationWrappers return their first argument unchanged for our purposes
var translationWrappers = map[string]bool{
	"__": true, "_e": true, "esc_html__": true, "esc_attr__": true, "esc_html_e": true,
	"esc_attr_e": true, "_x": true, "_ex": true, "_nx": true, "_n": true, "esc_html_x": true,
}

var sprintfToken = regexp.MustCompile(`%[%bcdeEufFgGosxX]`)

// extractString makes a best-effort readable string out of an expression:
// literals, interpolation, concatenation, translation wrappers and sprintf.
// Variables resolve to their last literal assignment before at.
func (st *analysis) extractString(n, at *sitter.Node) string {
	n = phpast.Unparen(n)
	if n == nil {
		return ""
	}
	if s, ok := st.file.StringLiteral(n); ok {
		return s
	}
	switch n.Kind() {
	case "encapsed_string":
		return st.file.Interpolate(n, func(part *sitter.Node) string {
			return st.interpolatedPart(part, at)
		})
	case "integer", "float":
		return st.file.Text(n)
	case "binary_expression":
		if st.operator(n) == "." {
			return st.extractString(n.ChildByFieldName("left"), at) + st.extractString(n.ChildByFieldName("right"), at)
		}
	case "variable_name":
		name, _ := st.file.VariableName(n)
		if s, ok := st.resolveVariable(name, at); ok {
			return s
		}
	case "function_call_expression":
		name := st.file.CallName(n)
		args := phpast.Arguments(n)
		if translationWrappers[name] && len(args) > 0 {
			return st.extractString(args[0], at)
		}
		if (name == "sprintf" || name == "printf") && len(args) > 0 {
			return st.sprintf(args, at)
		}
	}
	return st.placeholder(n)
}

// extractOrPlaceholder prefers the extracted text unless it degraded to a simplified placeholder
func (st *analysis) extractOrPlaceholder(n, at *sitter.Node) string {
	if s := st.extractString(n, at); s != "" && !strings.HasPrefix(s, "[") {
		return s
	}
	return st.placeholder(n)
}

func (st *analysis) sprintf(args []*sitter.Node, at *sitter.Node) string {
	format := st.extractString(args[0], at)
	next := 1
	return sprintfToken.ReplaceAllStringFunc(format, func(tok string) string {
		if tok == "%%" {
			return "%"
		}
		if next >= len(args) {
			return "[?]"
		}
		arg := args[next]
		next++
		return st.extractOrPlaceholder(arg, at)
	})
}

// interpolatedPart renders an expression embedded in a double-quoted string.
// A subscript of a resolvable literal array lists every value it could take.
func (st *analysis) interpolatedPart(part, at *sitter.Node) string {
	if arr, _, ok := phpast.Subscript(part); ok {
		if name, ok := st.file.VariableName(arr); ok {
			if values, ok := st.resolveArray(name, at); ok && values.Len() > 0 {
				return strings.Join(values.Values(), ", ")
			}
		}
	}
	if name, ok := st.file.VariableName(part); ok {
		if s, ok := st.resolveVariable(name, at); ok {
			return s
		}
	}
	return st.simplifiedPlaceholder(part)
}

// resolveVariable returns the string value of the last assignment to name before at
func (st *analysis) resolveVariable(name string, at *sitter.Node) (string, bool) {
	asg, ok := st.lastAssignment(name, at)
	if !ok || asg.rhs.Kind() == "array_creation_expression" {
		return "", false
	}
	s := st.extractString(asg.rhs, asg.rhs)
	if s == "" || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return "", false
	}
	return s, true
}

// simplifiedPlaceholder is the bracketed stand-in used inside interpolated strings
func (st *analysis) simplifiedPlaceholder(n *sitter.Node) string {
	if arr, _, ok := phpast.Subscript(n); ok {
		name, _ := st.file.VariableName(arr)
		name = strings.ToLower(name)
		switch {
		case strings.Contains(name, "state"):
			return "[state name]"
		case strings.Contains(name, "postcode"):
			return "[postcode]"
		case strings.Contains(name, "city"):
			return "[city name]"
		}
		return "[value]"
	}
	if name, ok := st.file.VariableName(n); ok {
		return "[" + name + "]"
	}
	return "[value]"
}

// placeholder renders an expression as a compact {…} token
func (st *analysis) placeholder(n *sitter.Node) string {
	n = phpast.Unparen(n)
	if n == nil {
		return "{?}"
	}
	if s, ok := st.file.StringLiteral(n); ok {
		return s
	}
	switch n.Kind() {
	case "variable_name":
		name, _ := st.file.VariableName(n)
		return "{" + name + "}"
	case "subscript_expression":
		arr, idx, _ := phpast.Subscript(n)
		return "{" + st.baseName(arr) + "[" + st.indexText(idx) + "]}"
	case "member_access_expression", "nullsafe_member_access_expression":
		return "{" + st.baseName(n.ChildByFieldName("object")) + "->" + st.file.Text(n.ChildByFieldName("name")) + "}"
	case "member_call_expression", "nullsafe_member_call_expression":
		return "{" + st.baseName(n.ChildByFieldName("object")) + "->" + st.file.Text(n.ChildByFieldName("name")) + "()}"
	case "scoped_call_expression":
		return "{" + st.file.Text(n.ChildByFieldName("scope")) + "::" + st.file.Text(n.ChildByFieldName("name")) + "()}"
	case "integer", "float":
		return st.file.Text(n)
	case "name", "qualified_name", "boolean", "null":
		return "{" + st.file.Text(n) + "}"
	case "function_call_expression":
		return "{" + st.file.Text(n.ChildByFieldName("function")) + "()}"
	case "binary_expression":
		if st.operator(n) == "." {
			return st.extractString(n, n)
		}
	}
	return "{?}"
}

func (st *analysis) baseName(n *sitter.Node) string {
	if name, ok := st.file.VariableName(n); ok {
		return name
	}
	return strings.TrimPrefix(st.file.Text(n), "$")
}

func (st *analysis) indexText(idx *sitter.Node) string {
	idx = phpast.Unparen(idx)
	if idx == nil {
		return ""
	}
	if s, ok := st.file.StringLiteral(idx); ok {
		return s
	}
	if name, ok := st.file.VariableName(idx); ok {
		return "$" + name
	}
	if idx.Kind() == "integer" {
		return st.file.Text(idx)
	}
	return "?"
}

// describeCallback names a hook callback: the function name, ::method for
// [object, 'method'] pairs, or "" for closures.
func (st *analysis) describeCallback(n *sitter.Node) string {
	n = phpast.Unparen(n)
	if n == nil || phpast.IsFunctionLike(n) {
		return ""
	}
	if s, ok := st.file.StringLiteral(n); ok {
		return s
	}
	if n.Kind() == "array_creation_expression" {
		elems := phpast.NamedChildren(n)
		if len(elems) == 2 {
			if method, ok := st.file.StringLiteral(lastNamed(elems[1])); ok {
				return "::" + method
			}
		}
	}
	return ""
}

// operator returns the operator token of a binary expression
func (st *analysis) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return strings.ToLower(st.file.Text(op))
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && !c.IsNamed() {
			return strings.ToLower(st.file.Text(c))
		}
	}
	return ""
}
