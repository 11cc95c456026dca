package rules

import (
	"fmt"
	"html"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/wsd/internal/phpast"
)

func (st *analysis) describeFilterHook(m match) string {
	args := phpast.Arguments(m.node)
	if len(args) > 1 {
		if cb := st.describeCallback(args[1]); cb != "" {
			return fmt.Sprintf("Theme code hooks into WooCommerce package rates (%s) to change which shipping options appear.", html.EscapeString(cb))
		}
	}
	return "Theme code hooks into WooCommerce package rates to change which shipping options appear."
}

func (st *analysis) describeFeeHook(m match) string {
	args := phpast.Arguments(m.node)
	if len(args) > 1 {
		if cb := st.describeCallback(args[1]); cb != "" {
			return fmt.Sprintf("Runs during cart fee calculation (%s). This can add discounts/surcharges and affect totals.", html.EscapeString(cb))
		}
	}
	return "Runs during cart fee calculation. This can add discounts/surcharges and affect totals."
}

func (st *analysis) describeNewRate(m match) string {
	var b strings.Builder
	b.WriteString("Instantiates WC_Shipping_Rate directly, creating a shipping option in code.")

	args := phpast.Arguments(m.node)
	var details []string
	if len(args) > 0 {
		details = append(details, "id “"+html.EscapeString(st.stringOrResolvedVariable(args[0], m.node))+"”")
	}
	if len(args) > 1 {
		details = append(details, "label “"+html.EscapeString(st.extractOrPlaceholder(args[1], m.node))+"”")
	}
	if len(args) > 2 {
		details = append(details, "cost "+html.EscapeString(st.extractOrPlaceholder(args[2], m.node)))
	}
	if len(details) > 0 {
		b.WriteString(" Details: " + strings.Join(details, ", ") + ".")
	}
	if when := st.when(m.node); when != "" {
		b.WriteString(" Runs when " + when + ".")
	}
	return b.String()
}

func (st *analysis) stringOrResolvedVariable(n, at *sitter.Node) string {
	if name, ok := st.file.VariableName(n); ok {
		if s, ok := st.resolveVariable(name, at); ok {
			return s
		}
	}
	return st.extractOrPlaceholder(n, at)
}

func (st *analysis) describeUnsetRate(m match) string {
	var b strings.Builder
	_, idx, _ := phpast.Subscript(m.node)
	switch {
	case st.nearestConditionMentionsFreeShipping(m.node):
		b.WriteString("Removes the free shipping rate")
	case idx != nil:
		key := st.extractOrPlaceholder(idx, m.node)
		if name, ok := st.file.VariableName(idx); ok {
			if s, ok := st.resolveVariable(name, m.node); ok {
				key = s
			}
		}
		b.WriteString("Removes a shipping rate by key (<code>" + html.EscapeString(key) + "</code>)")
	default:
		b.WriteString("Removes one or more shipping rates from the available options")
	}
	if when := st.when(m.node); when != "" {
		b.WriteString(" when " + when)
	}
	return b.String()
}

func (st *analysis) describeAddFee(m match) string {
	var b strings.Builder
	b.WriteString("Adds a fee to the cart.")

	args := phpast.Arguments(m.node)
	var details []string
	if len(args) > 0 {
		details = append(details, "label “"+html.EscapeString(st.extractOrPlaceholder(args[0], m.node))+"”")
	}
	if len(args) > 1 {
		details = append(details, "amount "+st.feeAmount(args[1], m.node))
	}
	if len(details) > 0 {
		b.WriteString(" Details: " + strings.Join(details, ", ") + ".")
	}
	if when := st.when(m.node); when != "" {
		b.WriteString(" Runs when " + when + ".")
	}
	return b.String()
}

// feeAmount explains where a fee amount comes from, following a variable to its last assignment
func (st *analysis) feeAmount(n, at *sitter.Node) string {
	name, ok := st.file.VariableName(n)
	if !ok {
		return html.EscapeString(st.extractOrPlaceholder(n, at))
	}
	asg, ok := st.lastAssignment(name, at)
	if !ok {
		return html.EscapeString(st.placeholder(n))
	}
	switch {
	case asg.rhs.Kind() == "match_expression":
		return "is determined by conditional logic (a match statement)"
	case asg.rhs.Kind() == "conditional_expression":
		return "is determined by conditional logic (a ternary expression)"
	case isNumber(asg.rhs):
		return html.EscapeString(st.file.Text(asg.rhs))
	}
	return html.EscapeString(st.placeholder(n))
}

func (st *analysis) describeError(m match) string {
	args := phpast.Arguments(m.node)
	var msgNode *sitter.Node
	if m.node.Kind() == "function_call_expression" {
		if len(args) > 0 {
			msgNode = args[0]
		}
	} else if len(args) > 1 {
		msgNode = args[1]
	}

	var b strings.Builder
	b.WriteString("Adds a checkout error message")
	if msgNode != nil {
		if msg := strings.TrimSpace(st.extractString(msgNode, m.node)); msg != "" {
			b.WriteString(": “" + st.bolder.bold(html.EscapeString(msg)) + "”")
		}
	}
	if when := st.when(m.node); when != "" {
		b.WriteString(" when " + when)
	}
	b.WriteString(".")
	return b.String()
}
