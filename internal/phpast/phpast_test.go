package phpast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

func parse(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse([]byte(src))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func findFirst(f *File, kind string) *sitter.Node {
	var found *sitter.Node
	Walk(f.Root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() == kind {
			found = n
			return false
		}
		return true
	})
	return found
}

func TestProbe(t *testing.T) {
	assert.NoError(t, Probe())
}

func TestParseReportsSyntaxErrors(t *testing.T) {
	f := parse(t, "<?php\nfunction broken( {\n  return 1;\n")
	assert.True(t, f.HasErrors())

	se, ok := f.FirstError()
	require.True(t, ok)
	assert.GreaterOrEqual(t, se.Line, 2)

	clean := parse(t, "<?php echo 1;")
	assert.False(t, clean.HasErrors())
	_, ok = clean.FirstError()
	assert.False(t, ok)
}

func TestCallNameAndArguments(t *testing.T) {
	f := parse(t, `<?php
add_filter( 'woocommerce_package_rates', 'my_rates', 20, 2 );
$rates->add_rate( $rate );
`)

	call := findFirst(f, "function_call_expression")
	require.NotNil(t, call)
	assert.Equal(t, "add_filter", f.CallName(call))
	assert.Equal(t, 2, Line(call))

	args := Arguments(call)
	require.Len(t, args, 4)
	hook, ok := f.StringLiteral(args[0])
	require.True(t, ok)
	assert.Equal(t, "woocommerce_package_rates", hook)
	assert.Equal(t, "20", f.Text(args[2]))

	method := findFirst(f, "member_call_expression")
	require.NotNil(t, method)
	assert.Equal(t, "add_rate", f.CallName(method))
	require.Len(t, Arguments(method), 1)
	name, ok := f.VariableName(Arguments(method)[0])
	require.True(t, ok)
	assert.Equal(t, "rate", name)
}

func TestSubscript(t *testing.T) {
	f := parse(t, `<?php unset( $rates['free_shipping:1'] );`)

	sub := findFirst(f, "subscript_expression")
	require.NotNil(t, sub)
	arr, idx, ok := Subscript(sub)
	require.True(t, ok)

	name, ok := f.VariableName(arr)
	require.True(t, ok)
	assert.Equal(t, "rates", name)

	key, ok := f.StringLiteral(idx)
	require.True(t, ok)
	assert.Equal(t, "free_shipping:1", key)
}

func TestStringLiteral(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
		ok   bool
	}{
		{"single quoted", `<?php $x = 'Flat rate';`, "Flat rate", true},
		{"single escapes", `<?php $x = 'it\'s \\ ok';`, `it's \ ok`, true},
		{"double without interpolation", `<?php $x = "Ship \"now\"";`, `Ship "now"`, true},
		{"double with interpolation", `<?php $x = "to $state";`, "", false},
		{"number", `<?php $x = 5;`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parse(t, tt.src)
			assign := findFirst(f, "assignment_expression")
			require.NotNil(t, assign)

			got, ok := f.StringLiteral(assign.ChildByFieldName("right"))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpolate(t *testing.T) {
	f := parse(t, `<?php $m = "We cannot ship to {$states[$state]} or $city today.";`)
	str := findFirst(f, "encapsed_string")
	require.NotNil(t, str)

	var parts []string
	out := f.Interpolate(str, func(n *sitter.Node) string {
		parts = append(parts, n.Kind())
		return "<" + n.Kind() + ">"
	})

	assert.Equal(t, "We cannot ship to <subscript_expression> or <variable_name> today.", out)
	assert.Equal(t, []string{"subscript_expression", "variable_name"}, parts)
}

func TestEnclosingFunctionAndClass(t *testing.T) {
	f := parse(t, `<?php
class Shipping_Rules {
    public function filter_rates( $rates ) {
        unset( $rates['flat_rate:2'] );
        return $rates;
    }
}
`)
	unset := findFirst(f, "unset_statement")
	require.NotNil(t, unset)

	fn := EnclosingFunction(unset)
	require.NotNil(t, fn)
	assert.Equal(t, "method_declaration", fn.Kind())
	assert.Equal(t, "filter_rates", f.FunctionName(fn))
	assert.Equal(t, "Shipping_Rules", f.EnclosingClassName(fn))

	assert.Nil(t, EnclosingFunction(findFirst(f, "class_declaration")))
}

func TestUnparen(t *testing.T) {
	f := parse(t, `<?php if ( ( $has_drinks ) ) { echo 1; }`)
	ifStmt := findFirst(f, "if_statement")
	require.NotNil(t, ifStmt)

	inner := Unparen(ifStmt.ChildByFieldName("condition"))
	require.NotNil(t, inner)
	assert.Equal(t, "variable_name", inner.Kind())
}
