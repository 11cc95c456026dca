package rules

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/wsd/internal/phpast"
)

const anonymousClass = "__anonymous"

// scopeKey names the variable scope a function-like node opens:
// Class::method, function name, closure@line:N, or __global__ for nil.
func scopeKey(f *phpast.File, fn *sitter.Node) string {
	if fn == nil {
		return GlobalScopeKey
	}
	switch fn.Kind() {
	case "function_definition":
		return f.FunctionName(fn)
	case "method_declaration":
		class := f.EnclosingClassName(fn)
		if class == "" {
			class = anonymousClass
		}
		return class + "::" + f.FunctionName(fn)
	default:
		return fmt.Sprintf("closure@line:%d", phpast.Line(fn))
	}
}

// displayName is the heading shown above a group of findings
func displayName(f *phpast.File, fn *sitter.Node) string {
	if fn == nil {
		return GlobalScopeDisplayName
	}
	switch fn.Kind() {
	case "function_definition":
		return f.FunctionName(fn) + "()"
	case "method_declaration":
		class := f.EnclosingClassName(fn)
		if class == "" {
			class = "class@anonymous"
		}
		return class + "::" + f.FunctionName(fn) + "()"
	default:
		return ClosureDisplayName
	}
}
