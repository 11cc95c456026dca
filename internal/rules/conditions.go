package rules

import (
	"html"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/wsd/internal/display"
	"github.com/standardbeagle/wsd/internal/phpast"
)

// maxConditions caps how many enclosing if conditions a description mentions
const maxConditions = 3

// locationWords mark variables that hold a shipping destination
var locationWords = []string{"state", "postcode", "zip", "city", "country", "location", "region"}

// when joins the enclosing if/elseif conditions of n, nearest first, as an HTML phrase
func (st *analysis) when(n *sitter.Node) string {
	return strings.Join(st.conditionChain(n), " and ")
}

func (st *analysis) conditionChain(n *sitter.Node) []string {
	var out []string
	prev := n
	for p := n.Parent(); p != nil && !phpast.IsFunctionLike(p) && len(out) < maxConditions; prev, p = p, p.Parent() {
		cond := st.branchCondition(p, prev)
		if cond == nil {
			continue
		}
		text := st.condText(cond)
		if text != "" && !containsString(out, text) {
			out = append(out, text)
		}
	}
	return out
}

// branchCondition returns the condition guarding child inside p, or nil when
// child is the condition itself or sits in an else branch.
func (st *analysis) branchCondition(p, child *sitter.Node) *sitter.Node {
	switch p.Kind() {
	case "if_statement", "else_if_clause":
	default:
		return nil
	}
	cond := p.ChildByFieldName("condition")
	if cond == nil || phpast.Same(cond, child) {
		return nil
	}
	switch child.Kind() {
	case "else_clause", "else_if_clause":
		return nil
	}
	return phpast.Unparen(cond)
}

// nearestConditionMentionsFreeShipping checks the closest enclosing if for a
// strpos(…, 'free_shipping') !== false test
func (st *analysis) nearestConditionMentionsFreeShipping(n *sitter.Node) bool {
	prev := n
	for p := n.Parent(); p != nil && !phpast.IsFunctionLike(p); prev, p = p, p.Parent() {
		cond := st.branchCondition(p, prev)
		if cond == nil {
			continue
		}
		found := false
		phpast.Walk(cond, func(c *sitter.Node) bool {
			if c.Kind() == "binary_expression" {
				switch st.operator(c) {
				case "!==", "!=", "<>":
					found = st.isFreeShippingComparison(c)
				}
			}
			return !found
		})
		return found
	}
	return false
}

// isFreeShippingComparison reports a comparison of a free_shipping strpos against false
func (st *analysis) isFreeShippingComparison(n *sitter.Node) bool {
	left := phpast.Unparen(n.ChildByFieldName("left"))
	right := phpast.Unparen(n.ChildByFieldName("right"))
	return (st.isFreeShippingStrpos(left) && st.isFalse(right)) || (st.isFreeShippingStrpos(right) && st.isFalse(left))
}

func (st *analysis) isFreeShippingStrpos(n *sitter.Node) bool {
	n = phpast.Unparen(n)
	if n == nil || n.Kind() != "function_call_expression" {
		return false
	}
	switch st.file.CallName(n) {
	case "strpos", "stripos", "str_contains", "str_starts_with":
	default:
		return false
	}
	args := phpast.Arguments(n)
	if len(args) < 2 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(st.extractString(args[1], n)), "free_shipping")
}

func (st *analysis) isFalse(n *sitter.Node) bool {
	n = phpast.Unparen(n)
	if n == nil {
		return false
	}
	switch n.Kind() {
	case "boolean", "name", "qualified_name":
		return strings.EqualFold(st.file.Text(n), "false")
	}
	return false
}

// condText renders a condition expression as an HTML phrase. Dynamic text is
// escaped; resolved value lists are bolded and product categories set as code.
func (st *analysis) condText(n *sitter.Node) string {
	n = phpast.Unparen(n)
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "binary_expression":
		return st.binaryText(n)
	case "unary_op_expression":
		if strings.HasPrefix(strings.TrimSpace(st.file.Text(n)), "!") {
			return st.negatedText(lastNamed(n))
		}
	case "variable_name":
		if name, _ := st.file.VariableName(n); name == "has_drinks" {
			return "the cart contains drinks"
		}
	case "function_call_expression":
		if text, ok := st.callConditionText(n, false); ok {
			return text
		}
	}
	if strings.Contains(n.Kind(), "isset") {
		if text, ok := st.issetText(n, phpast.NamedChildren(n), false); ok {
			return text
		}
	}
	return html.EscapeString(st.simpleText(n))
}

func (st *analysis) binaryText(n *sitter.Node) string {
	left := phpast.Unparen(n.ChildByFieldName("left"))
	right := phpast.Unparen(n.ChildByFieldName("right"))
	op := st.operator(n)
	switch op {
	case "&&", "and":
		return st.condText(left) + " and " + st.condText(right)
	case "||", "or":
		return st.condText(left) + " or " + st.condText(right)
	case "!==", "!=", "<>", "===", "==":
		if st.isFreeShippingComparison(n) {
			if strings.HasPrefix(op, "=") {
				return "the rate is not a Free Shipping method"
			}
			return "the rate is a Free Shipping method"
		}
	}
	if name, ok := st.file.VariableName(left); ok && name == "adjusted_total" && isNumber(right) {
		amount, _ := strconv.ParseFloat(strings.ReplaceAll(st.file.Text(right), "_", ""), 64)
		price := html.EscapeString(display.Price(amount, st.opts.CurrencySymbol))
		switch op {
		case "<":
			return "the non-drink subtotal is under " + price
		case "<=":
			return "the non-drink subtotal is at most " + price
		case ">":
			return "the non-drink subtotal is over " + price
		case ">=":
			return "the non-drink subtotal is at least " + price
		}
		return html.EscapeString("adjusted_total " + op + " " + st.file.Text(right))
	}
	return html.EscapeString(st.simpleText(left) + " " + op + " " + st.simpleText(right))
}

func (st *analysis) negatedText(inner *sitter.Node) string {
	inner = phpast.Unparen(inner)
	if inner == nil {
		return ""
	}
	if name, ok := st.file.VariableName(inner); ok && name == "has_drinks" {
		return "the cart does not contain drinks"
	}
	if inner.Kind() == "function_call_expression" {
		if text, ok := st.callConditionText(inner, true); ok {
			return text
		}
	}
	return html.EscapeString("not " + st.simpleText(inner))
}

// callConditionText handles function calls with a dedicated phrasing
func (st *analysis) callConditionText(n *sitter.Node, negated bool) (string, bool) {
	args := phpast.Arguments(n)
	switch st.file.CallName(n) {
	case "has_term":
		if negated || len(args) < 2 {
			return "", false
		}
		if tax, ok := st.file.StringLiteral(args[1]); !ok || tax != "product_cat" {
			return "", false
		}
		return "cart contains product from category <code>" + html.EscapeString(st.extractOrPlaceholder(args[0], n)) + "</code>", true
	case "isset":
		return st.issetText(n, args, negated)
	case "in_array":
		if len(args) < 2 {
			return "", false
		}
		return st.membershipText(args[0], args[1], n, negated)
	case "array_key_exists":
		if len(args) < 2 {
			return "", false
		}
		return st.membershipText(args[0], args[1], n, negated)
	}
	return "", false
}

func (st *analysis) issetText(n *sitter.Node, args []*sitter.Node, negated bool) (string, bool) {
	if len(args) == 1 {
		if arr, idx, ok := phpast.Subscript(args[0]); ok && idx != nil {
			if text, ok := st.membershipText(idx, arr, n, negated); ok {
				return text, true
			}
		}
	}
	if negated || len(args) == 0 {
		return "", false
	}
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = st.simpleText(a)
	}
	return html.EscapeString(strings.Join(names, ", ") + " is set"), true
}

// membershipText phrases "needle is one of: values" when haystack is a resolvable literal array
func (st *analysis) membershipText(needle, haystack, at *sitter.Node, negated bool) (string, bool) {
	name, ok := st.file.VariableName(haystack)
	if !ok {
		return "", false
	}
	arr, ok := st.resolveArray(name, at)
	if !ok || arr.Len() == 0 {
		return "", false
	}
	subject := html.EscapeString(st.simpleText(needle))
	if needleName, ok := st.file.VariableName(needle); ok && isLocationName(needleName) {
		subject = "the location"
	}
	verb := " is one of: "
	if negated {
		verb = " is not one of: "
	}
	return subject + verb + "<strong>" + html.EscapeString(strings.Join(arr.Values(), ", ")) + "</strong>", true
}

func isLocationName(name string) bool {
	name = strings.ToLower(name)
	for _, w := range locationWords {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

func isNumber(n *sitter.Node) bool {
	return n != nil && (n.Kind() == "integer" || n.Kind() == "float")
}

// simpleText is the plain-text rendering of an expression used inside conditions
func (st *analysis) simpleText(n *sitter.Node) string {
	n = phpast.Unparen(n)
	if n == nil {
		return ""
	}
	if name, ok := st.file.VariableName(n); ok {
		switch name {
		case "has_drinks":
			return "the cart contains drinks"
		case "adjusted_total":
			return "the non-drink subtotal"
		case "state":
			return "the state"
		case "postcode":
			return "the postcode"
		}
		return name
	}
	if s, ok := st.file.StringLiteral(n); ok {
		return "'" + s + "'"
	}
	switch n.Kind() {
	case "integer", "float":
		return st.file.Text(n)
	case "member_access_expression", "nullsafe_member_access_expression":
		return st.simpleText(n.ChildByFieldName("object")) + "->" + st.file.Text(n.ChildByFieldName("name"))
	case "member_call_expression", "nullsafe_member_call_expression":
		return st.simpleText(n.ChildByFieldName("object")) + "->" + st.file.Text(n.ChildByFieldName("name")) + "()"
	case "subscript_expression":
		arr, idx, _ := phpast.Subscript(n)
		return st.simpleText(arr) + "[" + st.simpleText(idx) + "]"
	case "function_call_expression":
		return st.file.Text(n.ChildByFieldName("function")) + "()"
	case "name", "qualified_name", "boolean", "null":
		return st.file.Text(n)
	}
	return st.placeholder(n)
}
