package rules

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/wsd/internal/phpast"
)

// DynamicValue stands in for array values that are not literals
const DynamicValue = "{dynamic_value}"

// maxNesting bounds recursion into nested array literals
const maxNesting = 32

// ValueKind classifies a literal array value
type ValueKind uint8

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBool
	ValueNull
	ValueArray
	ValueDynamic
)

// Value is one array element value
type Value struct {
	Kind   ValueKind
	Text   string
	Nested *Array
}

// String renders scalars as their text; nested arrays as a bracketed list
func (v Value) String() string {
	switch v.Kind {
	case ValueArray:
		return "[" + strings.Join(v.Nested.Values(), ", ") + "]"
	case ValueDynamic:
		return DynamicValue
	default:
		return v.Text
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueArray:
		return json.Marshal(v.Nested)
	case ValueNumber:
		if _, err := strconv.ParseFloat(v.Text, 64); err == nil {
			return []byte(v.Text), nil
		}
	case ValueBool:
		return []byte(v.Text), nil
	case ValueNull:
		return []byte("null"), nil
	case ValueDynamic:
		return json.Marshal(DynamicValue)
	}
	return json.Marshal(v.Text)
}

// Entry is a key/value pair in insertion order
type Entry struct {
	Key   string
	Value Value
}

// Array is an ordered PHP array literal. Keys are kept in their string form.
type Array struct {
	Entries   []Entry
	index     map[string]int
	nextIndex int64
}

// NewArray returns an empty array
func NewArray() *Array {
	return &Array{index: make(map[string]int)}
}

// Set stores a value, overwriting an existing key in place
func (a *Array) Set(key string, v Value) {
	if i, ok := a.index[key]; ok {
		a.Entries[i].Value = v
		return
	}
	if n, err := strconv.ParseInt(key, 10, 64); err == nil && n >= a.nextIndex {
		a.nextIndex = n + 1
	}
	a.index[key] = len(a.Entries)
	a.Entries = append(a.Entries, Entry{Key: key, Value: v})
}

// Append stores a value under the next integer key
func (a *Array) Append(v Value) {
	a.Set(strconv.FormatInt(a.nextIndex, 10), v)
}

// Get looks up a value by key
func (a *Array) Get(key string) (Value, bool) {
	i, ok := a.index[key]
	if !ok {
		return Value{}, false
	}
	return a.Entries[i].Value, true
}

// Len returns the number of entries
func (a *Array) Len() int {
	return len(a.Entries)
}

// Keys returns keys in insertion order
func (a *Array) Keys() []string {
	out := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e.Key
	}
	return out
}

// Values returns the rendered values in insertion order
func (a *Array) Values() []string {
	out := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e.Value.String()
	}
	return out
}

// MarshalJSON writes the array as an object preserving insertion order
func (a *Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range a.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Table holds literal arrays assigned to variables, keyed by scope then variable name.
// A later assignment in the same scope replaces an earlier one.
type Table struct {
	scopes map[string]map[string]*Array
}

// NewTable returns an empty table
func NewTable() *Table {
	return &Table{scopes: make(map[string]map[string]*Array)}
}

// Set records the array assigned to name in scope
func (t *Table) Set(scope, name string, a *Array) {
	vars, ok := t.scopes[scope]
	if !ok {
		vars = make(map[string]*Array)
		t.scopes[scope] = vars
	}
	vars[name] = a
}

// Lookup finds name in scope, falling back to the global scope
func (t *Table) Lookup(scope, name string) (*Array, bool) {
	if a, ok := t.scopes[scope][name]; ok {
		return a, true
	}
	a, ok := t.scopes[GlobalScopeKey][name]
	return a, ok
}

// Scopes exposes the collected arrays
func (t *Table) Scopes() map[string]map[string]*Array {
	return t.scopes
}

// literalArray converts an array_creation_expression into an Array.
// depth counts nesting below the top-level array.
func literalArray(f *phpast.File, n *sitter.Node, depth int) *Array {
	out := NewArray()
	for _, el := range phpast.NamedChildren(n) {
		if el.Kind() != "array_element_initializer" {
			continue
		}
		kids := phpast.NamedChildren(el)
		switch len(kids) {
		case 1:
			if kids[0].Kind() == "variadic_unpacking" {
				continue
			}
			out.Append(literalValue(f, kids[0], depth))
		case 2:
			key, ok := literalKey(f, kids[0])
			if !ok {
				// Non-literal keys cannot be looked up; keep the value reachable by position
				out.Append(literalValue(f, kids[1], depth))
				continue
			}
			out.Set(key, literalValue(f, kids[1], depth))
		}
	}
	return out
}

func literalKey(f *phpast.File, n *sitter.Node) (string, bool) {
	v := literalValue(f, n, maxNesting+1)
	switch v.Kind {
	case ValueString:
		return v.Text, true
	case ValueNumber:
		if i := strings.IndexByte(v.Text, '.'); i >= 0 {
			return v.Text[:i], true
		}
		return v.Text, true
	case ValueBool:
		if v.Text == "true" {
			return "1", true
		}
		return "0", true
	case ValueNull:
		return "", true
	}
	return "", false
}

func literalValue(f *phpast.File, n *sitter.Node, depth int) Value {
	n = phpast.Unparen(n)
	if n == nil {
		return Value{Kind: ValueDynamic}
	}
	if s, ok := f.StringLiteral(n); ok {
		return Value{Kind: ValueString, Text: s}
	}
	switch n.Kind() {
	case "integer", "float":
		return Value{Kind: ValueNumber, Text: strings.ReplaceAll(f.Text(n), "_", "")}
	case "boolean":
		return Value{Kind: ValueBool, Text: strings.ToLower(f.Text(n))}
	case "null":
		return Value{Kind: ValueNull, Text: "null"}
	case "unary_op_expression":
		text := strings.ReplaceAll(f.Text(n), " ", "")
		if strings.HasPrefix(text, "-") {
			if inner := literalValue(f, lastNamed(n), depth); inner.Kind == ValueNumber {
				return Value{Kind: ValueNumber, Text: "-" + inner.Text}
			}
		}
	case "array_creation_expression":
		if depth < maxNesting {
			return Value{Kind: ValueArray, Nested: literalArray(f, n, depth+1)}
		}
	}
	return Value{Kind: ValueDynamic}
}

func lastNamed(n *sitter.Node) *sitter.Node {
	kids := phpast.NamedChildren(n)
	if len(kids) == 0 {
		return nil
	}
	return kids[len(kids)-1]
}
