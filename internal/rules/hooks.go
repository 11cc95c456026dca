package rules

import (
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/wsd/internal/phpast"
)

// KnownHooks are the hooks whose callbacks get annotated on their groups
var KnownHooks = []string{HookPackageRates, HookCartCalculateFees}

// maxHookTypoDistance bounds the edit distance reported as a likely misspelling
const maxHookTypoDistance = 3

type hookRegistration struct {
	hook     string
	callback *sitter.Node
	line     int
}

// hookCollector records declarations and add_filter/add_action calls during
// the walk, then links registrations to the declarations they name.
type hookCollector struct {
	file          *phpast.File
	functions     map[string]*sitter.Node
	methods       map[string]*sitter.Node
	registrations []hookRegistration
	warnings      []string
}

func newHookCollector(f *phpast.File) *hookCollector {
	return &hookCollector{
		file:      f,
		functions: make(map[string]*sitter.Node),
		methods:   make(map[string]*sitter.Node),
	}
}

func (h *hookCollector) visit(n *sitter.Node) {
	switch n.Kind() {
	case "function_definition":
		h.functions[strings.ToLower(h.file.FunctionName(n))] = n
	case "method_declaration":
		h.methods[h.file.FunctionName(n)] = n
	case "function_call_expression":
		name := h.file.CallName(n)
		if name != "add_filter" && name != "add_action" {
			return
		}
		args := phpast.Arguments(n)
		if len(args) < 2 {
			return
		}
		hook, ok := h.file.StringLiteral(args[0])
		if !ok {
			return
		}
		if !isKnownHook(hook) {
			h.checkTypo(hook, phpast.Line(n))
			return
		}
		h.registrations = append(h.registrations, hookRegistration{
			hook:     hook,
			callback: args[1],
			line:     phpast.Line(n),
		})
	}
}

func isKnownHook(hook string) bool {
	for _, k := range KnownHooks {
		if hook == k {
			return true
		}
	}
	return false
}

func (h *hookCollector) checkTypo(hook string, line int) {
	for _, known := range KnownHooks {
		d := edlib.LevenshteinDistance(hook, known)
		if d > 0 && d <= maxHookTypoDistance {
			h.warnings = append(h.warnings, fmt.Sprintf(
				"Hook %q on line %d looks like a misspelling of %q; WooCommerce will never call it.", hook, line, known))
			return
		}
	}
}

// resolve maps each callback declaration (by node id) to the hooks it is registered on
func (h *hookCollector) resolve() (map[uintptr][]string, []HookedFunction) {
	byNode := make(map[uintptr][]string)
	var hooked []HookedFunction
	for _, r := range h.registrations {
		decl := h.callbackDeclaration(r.callback)
		if decl == nil {
			continue
		}
		id := decl.Id()
		if !containsString(byNode[id], r.hook) {
			byNode[id] = append(byNode[id], r.hook)
		}
		hooked = append(hooked, HookedFunction{Hook: r.hook, Function: displayName(h.file, decl), Line: r.line})
	}
	return byNode, hooked
}

func (h *hookCollector) callbackDeclaration(cb *sitter.Node) *sitter.Node {
	cb = phpast.Unparen(cb)
	if cb == nil {
		return nil
	}
	if phpast.IsFunctionLike(cb) {
		return cb
	}
	if name, ok := h.file.StringLiteral(cb); ok {
		if i := strings.LastIndex(name, "::"); i >= 0 {
			return h.methods[name[i+2:]]
		}
		if fn, ok := h.functions[strings.ToLower(strings.TrimPrefix(name, `\`))]; ok {
			return fn
		}
		return h.methods[name]
	}
	if cb.Kind() == "array_creation_expression" {
		elems := phpast.NamedChildren(cb)
		if len(elems) != 2 {
			return nil
		}
		if method, ok := h.file.StringLiteral(lastNamed(elems[1])); ok {
			return h.methods[method]
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
