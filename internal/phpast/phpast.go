// Package phpast wraps the tree-sitter PHP grammar with the small set of
// node helpers the shipping-rule visitors need.
package phpast

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// File is a parsed PHP source file. Nodes obtained from it are only valid until Close.
type File struct {
	Source []byte
	Root   *sitter.Node
	tree   *sitter.Tree
}

// Parse builds a syntax tree for src. Syntax errors do not fail the parse;
// they are reported through HasErrors and FirstError so callers can analyse
// the recovered tree.
func Parse(src []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	language := sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	if err := parser.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to load PHP grammar: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, errors.New("parser returned no tree")
	}
	return &File{Source: src, Root: tree.RootNode(), tree: tree}, nil
}

// Close releases the underlying tree
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// HasErrors reports whether the tree contains ERROR or MISSING nodes
func (f *File) HasErrors() bool {
	return f.Root != nil && f.Root.HasError()
}

// SyntaxError describes the first ERROR or MISSING node in a tree
type SyntaxError struct {
	Line   int
	Column int
	Token  string
}

// FirstError locates the earliest syntax error, if any
func (f *File) FirstError() (SyntaxError, bool) {
	var found *sitter.Node
	Walk(f.Root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return false
		}
		return n.HasError()
	})
	if found == nil {
		return SyntaxError{}, false
	}
	pos := found.StartPosition()
	token := f.Text(found)
	if found.IsMissing() {
		token = "missing " + found.Kind()
	}
	if len(token) > 40 {
		token = token[:40]
	}
	return SyntaxError{Line: int(pos.Row) + 1, Column: int(pos.Column) + 1, Token: token}, true
}

// Text returns the source text covered by n
func (f *File) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start > uint(len(f.Source)) || end > uint(len(f.Source)) || start > end {
		return ""
	}
	return string(f.Source[start:end])
}

// Line returns the 1-based line n starts on
func Line(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.StartPosition().Row) + 1
}

// Walk visits n and its descendants in source order. Returning false skips the children.
func Walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		Walk(n.Child(i), visit)
	}
}

// NamedChildren returns the named children of n
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil && c.Kind() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

// FindChildByType finds the first direct child of the given kind
func FindChildByType(n *sitter.Node, kind string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}

// Same reports whether a and b are the same syntax node
func Same(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Id() == b.Id()
}

// Unparen strips any parenthesized_expression wrappers
func Unparen(n *sitter.Node) *sitter.Node {
	for n != nil && n.Kind() == "parenthesized_expression" {
		kids := NamedChildren(n)
		if len(kids) == 0 {
			return n
		}
		n = kids[0]
	}
	return n
}

// Arguments returns the expression of each argument of a call-like node
// (function, method, static and nullsafe calls and object creation).
func Arguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		args = FindChildByType(call, "arguments")
	}
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for _, a := range NamedChildren(args) {
		if a.Kind() != "argument" {
			out = append(out, a)
			continue
		}
		// Named arguments carry a leading name node; the value is always last
		kids := NamedChildren(a)
		if len(kids) == 0 {
			continue
		}
		out = append(out, kids[len(kids)-1])
	}
	return out
}

// CallName returns the called function or method name, lower-cased for function calls
// the way PHP resolves them. Dynamic names return "".
func (f *File) CallName(call *sitter.Node) string {
	switch call.Kind() {
	case "function_call_expression":
		fn := call.ChildByFieldName("function")
		if fn == nil {
			return ""
		}
		switch fn.Kind() {
		case "name":
			return strings.ToLower(f.Text(fn))
		case "qualified_name":
			text := f.Text(fn)
			if i := strings.LastIndex(text, `\`); i >= 0 {
				text = text[i+1:]
			}
			return strings.ToLower(text)
		}
		return ""
	case "member_call_expression", "nullsafe_member_call_expression", "scoped_call_expression":
		name := call.ChildByFieldName("name")
		if name != nil && name.Kind() == "name" {
			return f.Text(name)
		}
	}
	return ""
}

// VariableName returns the identifier of a simple $variable without the dollar sign
func (f *File) VariableName(n *sitter.Node) (string, bool) {
	n = Unparen(n)
	if n == nil || n.Kind() != "variable_name" {
		return "", false
	}
	if name := FindChildByType(n, "name"); name != nil {
		return f.Text(name), true
	}
	return strings.TrimPrefix(f.Text(n), "$"), true
}

// Subscript splits an $array[index] expression. index is nil for $array[].
func Subscript(n *sitter.Node) (array, index *sitter.Node, ok bool) {
	n = Unparen(n)
	if n == nil || n.Kind() != "subscript_expression" {
		return nil, nil, false
	}
	kids := NamedChildren(n)
	switch len(kids) {
	case 0:
		return nil, nil, false
	case 1:
		return kids[0], nil, true
	default:
		return kids[0], kids[1], true
	}
}

// IsFunctionLike reports nodes that open a new variable scope
func IsFunctionLike(n *sitter.Node) bool {
	switch n.Kind() {
	case "function_definition", "method_declaration", "anonymous_function",
		"anonymous_function_creation_expression", "arrow_function":
		return true
	}
	return false
}

// EnclosingFunction returns the nearest function-like ancestor of n, or nil at file scope
func EnclosingFunction(n *sitter.Node) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if IsFunctionLike(p) {
			return p
		}
	}
	return nil
}

// EnclosingClassName returns the name of the class declaring method m, or "" for anonymous classes
func (f *File) EnclosingClassName(m *sitter.Node) string {
	for p := m.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "class_declaration", "trait_declaration", "enum_declaration", "interface_declaration":
			return f.Text(p.ChildByFieldName("name"))
		case "anonymous_class", "anonymous_class_creation_expression", "object_creation_expression":
			return ""
		}
	}
	return ""
}

// FunctionName returns the declared name of a function or method node
func (f *File) FunctionName(fn *sitter.Node) string {
	return f.Text(fn.ChildByFieldName("name"))
}

// ProbeSnippet is parsed by Probe to check the grammar is usable
const ProbeSnippet = `<?php function _wsd_probe(){return 42;} _wsd_probe();`

// Probe parses a tiny snippet and verifies the expected declaration is found
func Probe() error {
	f, err := Parse([]byte(ProbeSnippet))
	if err != nil {
		return err
	}
	defer f.Close()

	if f.HasErrors() {
		return errors.New("present but could not parse the test snippet")
	}
	found := false
	Walk(f.Root, func(n *sitter.Node) bool {
		if n.Kind() == "function_definition" && f.FunctionName(n) == "_wsd_probe" {
			found = true
		}
		return !found
	})
	if !found {
		return errors.New("present but could not parse the test snippet")
	}
	return nil
}
