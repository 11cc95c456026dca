package rules

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/wsd/internal/debug"
	"github.com/standardbeagle/wsd/internal/phpast"
)

// Options tunes how findings are worded
type Options struct {
	// CurrencySymbol prefixes money amounts in conditions
	CurrencySymbol string
	// Products are bolded inside checkout error messages
	Products []string
}

// DefaultProducts are restricted product words commonly named in shipping error messages
var DefaultProducts = []string{
	"Kratom", "Kava", "CBD", "Delta 8", "Delta-8", "THC", "Hemp", "Vape", "Vapes",
	"Tobacco", "Alcohol", "Wine", "Beer", "Spirits", "Liquor", "Drinks",
	"Firearms", "Ammunition", "Knives", "Fireworks",
}

// Analyzer turns parsed PHP files into grouped, described findings. It holds no
// per-file state and is safe for concurrent use.
type Analyzer struct {
	opts   Options
	bolder *bolder
}

// NewAnalyzer creates an analyzer, filling unset options with defaults
func NewAnalyzer(opts Options) *Analyzer {
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "$"
	}
	if opts.Products == nil {
		opts.Products = DefaultProducts
	}
	return &Analyzer{opts: opts, bolder: newBolder(opts.Products)}
}

type match struct {
	category Category
	node     *sitter.Node
	fn       *sitter.Node
}

type assignment struct {
	end uint
	rhs *sitter.Node
}

// analysis is the state of one Analyze call
type analysis struct {
	*Analyzer
	file    *phpast.File
	arrays  *Table
	assigns map[string]map[string][]assignment
	hooks   *hookCollector
	matches []match
}

// Analyze walks the file once, collecting shipping calls, literal arrays and
// hook registrations, then describes every match in source order.
func (a *Analyzer) Analyze(f *phpast.File) *Analysis {
	st := &analysis{
		Analyzer: a,
		file:     f,
		arrays:   NewTable(),
		assigns:  make(map[string]map[string][]assignment),
		hooks:    newHookCollector(f),
	}
	phpast.Walk(f.Root, func(n *sitter.Node) bool {
		st.hooks.visit(n)
		st.collectAssignment(n)
		st.collectMatch(n)
		return true
	})

	hooksByDecl, hooked := st.hooks.resolve()
	result := &Analysis{
		Hooked:   hooked,
		Arrays:   st.arrays.Scopes(),
		Warnings: st.hooks.warnings,
	}

	groupIndex := make(map[uintptr]int)
	for _, m := range st.matches {
		var key uintptr
		if m.fn != nil {
			key = m.fn.Id() + 1
		}
		gi, ok := groupIndex[key]
		if !ok {
			g := Group{Function: displayName(f, m.fn)}
			if m.fn != nil {
				for _, h := range hooksByDecl[m.fn.Id()] {
					g.Hooks = append(g.Hooks, "hooked to "+h)
				}
			}
			gi = len(result.Groups)
			groupIndex[key] = gi
			result.Groups = append(result.Groups, g)
		}
		result.Groups[gi].Findings = append(result.Groups[gi].Findings, Finding{
			Category:    m.category,
			Label:       m.category.Label(),
			Description: st.describe(m),
			Line:        phpast.Line(m.node),
			ScopeKey:    scopeKey(f, m.fn),
		})
	}
	debug.LogScan("analysed file: %d findings in %d groups, %d warnings\n",
		result.FindingCount(), len(result.Groups), len(result.Warnings))
	return result
}

func (st *analysis) collectAssignment(n *sitter.Node) {
	if n.Kind() != "assignment_expression" {
		return
	}
	name, ok := st.file.VariableName(n.ChildByFieldName("left"))
	if !ok {
		return
	}
	rhs := phpast.Unparen(n.ChildByFieldName("right"))
	if rhs == nil {
		return
	}
	scope := scopeKey(st.file, phpast.EnclosingFunction(n))
	vars, ok := st.assigns[scope]
	if !ok {
		vars = make(map[string][]assignment)
		st.assigns[scope] = vars
	}
	vars[name] = append(vars[name], assignment{end: n.EndByte(), rhs: rhs})
	if rhs.Kind() == "array_creation_expression" {
		st.arrays.Set(scope, name, literalArray(st.file, rhs, 0))
	}
}

func (st *analysis) collectMatch(n *sitter.Node) {
	var cat Category
	switch n.Kind() {
	case "member_call_expression", "nullsafe_member_call_expression":
		switch st.file.CallName(n) {
		case "add_rate":
			cat = CategoryRateCall
		case "add_fee":
			cat = CategoryAddFee
		case "add":
			obj, ok := st.file.VariableName(n.ChildByFieldName("object"))
			if ok && strings.Contains(strings.ToLower(obj), "error") {
				cat = CategoryError
			}
		}
	case "object_creation_expression":
		if strings.EqualFold(st.className(n), "WC_Shipping_Rate") {
			cat = CategoryNewRate
		}
	case "unset_statement":
		for _, arg := range phpast.NamedChildren(n) {
			if st.isRateSubscript(arg) || st.isRateList(arg) {
				st.matches = append(st.matches, match{CategoryUnsetRate, arg, phpast.EnclosingFunction(n)})
			}
		}
		return
	case "function_call_expression":
		cat = st.functionCategory(n)
	}
	if cat != "" {
		st.matches = append(st.matches, match{cat, n, phpast.EnclosingFunction(n)})
	}
}

func (st *analysis) functionCategory(n *sitter.Node) Category {
	args := phpast.Arguments(n)
	switch st.file.CallName(n) {
	case "wc_add_notice":
		if len(args) >= 2 {
			if kind, ok := st.file.StringLiteral(args[1]); ok && kind == "error" {
				return CategoryError
			}
		}
	case "add_filter", "add_action":
		if len(args) == 0 {
			return ""
		}
		switch hook, _ := st.file.StringLiteral(args[0]); hook {
		case HookPackageRates:
			return CategoryFilterHook
		case HookCartCalculateFees:
			return CategoryFeeHook
		}
	}
	return ""
}

func (st *analysis) className(n *sitter.Node) string {
	for _, c := range phpast.NamedChildren(n) {
		switch c.Kind() {
		case "name", "qualified_name":
			text := st.file.Text(c)
			if i := strings.LastIndex(text, `\`); i >= 0 {
				text = text[i+1:]
			}
			return text
		}
	}
	return ""
}

func (st *analysis) isRateSubscript(n *sitter.Node) bool {
	arr, _, ok := phpast.Subscript(n)
	if !ok {
		return false
	}
	name, ok := st.file.VariableName(arr)
	return ok && strings.Contains(strings.ToLower(name), "rate")
}

// isRateList reports a bare variable holding the whole rates list
func (st *analysis) isRateList(n *sitter.Node) bool {
	name, ok := st.file.VariableName(phpast.Unparen(n))
	return ok && strings.Contains(strings.ToLower(name), "rates")
}

// lastAssignment finds the most recent assignment to name that completes before at, in at's scope
func (st *analysis) lastAssignment(name string, at *sitter.Node) (assignment, bool) {
	scope := scopeKey(st.file, phpast.EnclosingFunction(at))
	list := st.assigns[scope][name]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].end <= at.StartByte() {
			return list[i], true
		}
	}
	return assignment{}, false
}

// resolveArray returns the literal array held by name at the point of at. A
// later non-literal assignment in scope hides the literal; with no assignment
// in scope the global table is consulted.
func (st *analysis) resolveArray(name string, at *sitter.Node) (*Array, bool) {
	if asg, ok := st.lastAssignment(name, at); ok {
		if asg.rhs.Kind() != "array_creation_expression" {
			return nil, false
		}
		return literalArray(st.file, asg.rhs, 0), true
	}
	a, ok := st.arrays.Lookup(GlobalScopeKey, name)
	return a, ok
}

// describe renders a match, yielding "" if a template trips over an unexpected tree shape
func (st *analysis) describe(m match) (desc string) {
	defer func() {
		if r := recover(); r != nil {
			debug.LogScan("describe %s at line %d failed: %v\n", m.category, phpast.Line(m.node), r)
			desc = ""
		}
	}()
	switch m.category {
	case CategoryFilterHook:
		return st.describeFilterHook(m)
	case CategoryFeeHook:
		return st.describeFeeHook(m)
	case CategoryRateCall:
		return "Calls add_rate() to insert a custom shipping option programmatically."
	case CategoryNewRate:
		return st.describeNewRate(m)
	case CategoryUnsetRate:
		return st.describeUnsetRate(m)
	case CategoryAddFee:
		return st.describeAddFee(m)
	case CategoryError:
		return st.describeError(m)
	}
	return fmt.Sprintf("Matched %s", m.node.Kind())
}
