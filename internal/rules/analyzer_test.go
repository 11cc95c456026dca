package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/wsd/internal/phpast"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func analyze(t *testing.T, src string) *Analysis {
	t.Helper()
	f, err := phpast.Parse([]byte(src))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return NewAnalyzer(Options{}).Analyze(f)
}

func descriptions(a *Analysis) string {
	var parts []string
	for _, g := range a.Groups {
		for _, f := range g.Findings {
			parts = append(parts, f.Description)
		}
	}
	return strings.Join(parts, "\n")
}

func findings(a *Analysis, cat Category) []Finding {
	var out []Finding
	for _, g := range a.Groups {
		for _, f := range g.Findings {
			if f.Category == cat {
				out = append(out, f)
			}
		}
	}
	return out
}

const restrictedStatesFixture = `<?php
function wsd_self_test_rules($rates, $package, $errors) {
    $restricted_states = ['AL' => 'Alabama', 'AR' => 'Arkansas', 'IN' => 'Indiana', 'VT' => 'Vermont', 'WI' => 'Wisconsin'];
    $state = 'WI';
    if (isset($restricted_states[$state])) {
        unset($rates['free_shipping:1']);
    }
    if (isset($restricted_states[$state])) {
        $errors->add('shipping_error', "We cannot ship Kratom to {$restricted_states[$state]}.");
    }
    $dynamic_states = array_keys($restricted_states);
    if (in_array($state, $dynamic_states)) {
        new WC_Shipping_Rate('dynamic_rate', 'Dynamic Rate', 5);
    }
}
`

func TestAnalyze_RestrictedStates(t *testing.T) {
	a := analyze(t, restrictedStatesFixture)
	out := descriptions(a)

	assert.Contains(t, out, "when the location is one of: <strong>Alabama, Arkansas, Indiana, Vermont, Wisconsin</strong>")
	assert.Contains(t, out, "Adds a checkout error message: “We cannot ship <strong>Kratom</strong> to <strong>Alabama</strong>, Arkansas, Indiana, Vermont, Wisconsin.”")
	assert.Contains(t, out, "Runs when in_array()")

	require.Len(t, a.Groups, 1)
	assert.Equal(t, "wsd_self_test_rules()", a.Groups[0].Function)

	cats := make([]Category, 0, 3)
	for _, f := range a.Groups[0].Findings {
		cats = append(cats, f.Category)
	}
	assert.Equal(t, []Category{CategoryUnsetRate, CategoryError, CategoryNewRate}, cats, "findings keep source order")

	unset := findings(a, CategoryUnsetRate)
	require.Len(t, unset, 1)
	assert.Equal(t, 6, unset[0].Line)
	assert.Equal(t, "Removes a rate", unset[0].Label)
	assert.True(t, strings.HasPrefix(unset[0].Description, "Removes a shipping rate by key (<code>free_shipping:1</code>) when "))

	rate := findings(a, CategoryNewRate)
	require.Len(t, rate, 1)
	assert.Contains(t, rate[0].Description, "Details: id “dynamic_rate”, label “Dynamic Rate”, cost 5.")
}

func TestAnalyze_ArrayScopes(t *testing.T) {
	src := `<?php
$zones = ['east', 'west'];
function restricted() { $blocked = ['HI' => 'Hawaii']; }
class Rules {
    public function states() { $allowed = ['NY' => 'New York', 'NJ' => 'New Jersey']; }
}
$cb = function () { $codes = [10001, 10002]; };
$obj = new class {
    public function m() { $x = ['a']; }
};
`
	a := analyze(t, src)

	require.Contains(t, a.Arrays, GlobalScopeKey)
	assert.Equal(t, []string{"east", "west"}, a.Arrays[GlobalScopeKey]["zones"].Values())
	assert.Equal(t, []string{"0", "1"}, a.Arrays[GlobalScopeKey]["zones"].Keys())

	require.Contains(t, a.Arrays, "restricted")
	assert.Equal(t, []string{"HI"}, a.Arrays["restricted"]["blocked"].Keys())

	require.Contains(t, a.Arrays, "Rules::states")
	assert.Equal(t, []string{"New York", "New Jersey"}, a.Arrays["Rules::states"]["allowed"].Values())

	require.Contains(t, a.Arrays, "closure@line:7")
	assert.Equal(t, []string{"10001", "10002"}, a.Arrays["closure@line:7"]["codes"].Values())

	assert.Contains(t, a.Arrays, "__anonymous::m")
}

func TestLiteralArray(t *testing.T) {
	src := `<?php
$a = [
    'x' => 1,
    'y' => -2.5,
    'x' => 'again',
    'flag' => true,
    5 => 'five',
    'six',
    'nested' => ['k' => 'v', 'deep' => ['z']],
    'dyn' => get_option('foo'),
];
`
	a := analyze(t, src)
	arr := a.Arrays[GlobalScopeKey]["a"]
	require.NotNil(t, arr)

	assert.Equal(t, []string{"x", "y", "flag", "5", "6", "nested", "dyn"}, arr.Keys())

	v, ok := arr.Get("x")
	require.True(t, ok)
	assert.Equal(t, "again", v.Text, "duplicate keys overwrite in place")

	v, _ = arr.Get("y")
	assert.Equal(t, ValueNumber, v.Kind)
	assert.Equal(t, "-2.5", v.Text)

	v, _ = arr.Get("flag")
	assert.Equal(t, ValueBool, v.Kind)

	nested, _ := arr.Get("nested")
	require.Equal(t, ValueArray, nested.Kind)
	deep, ok := nested.Nested.Get("deep")
	require.True(t, ok)
	require.Equal(t, ValueArray, deep.Kind)
	assert.Equal(t, []string{"z"}, deep.Nested.Values())
	assert.Equal(t, "[v, [z]]", nested.String())

	dyn, _ := arr.Get("dyn")
	assert.Equal(t, DynamicValue, dyn.String())

	data, err := arr.MarshalJSON()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"x":"again","y":-2.5,"flag":true,"5":"five","6":"six"`))
}

func TestAnalyze_HookedCallbacks(t *testing.T) {
	src := `<?php
add_filter('woocommerce_package_rates', 'limit_rates', 10, 2);
function limit_rates($rates, $package) {
    unset($rates['flat_rate:3']);
    return $rates;
}
class Fees {
    public function __construct() {
        add_action('woocommerce_cart_calculate_fees', [$this, 'surcharge']);
    }
    public function surcharge($cart) {
        $cart->add_fee('Handling', 4.5);
    }
}
add_filter('woocommerce_package_rate', function ($rates) { return $rates; });
`
	a := analyze(t, src)

	var groups []string
	for _, g := range a.Groups {
		groups = append(groups, g.Function)
	}
	assert.Equal(t, []string{"global scope", "limit_rates()", "Fees::__construct()", "Fees::surcharge()"}, groups)

	assert.Equal(t, []string{"hooked to woocommerce_package_rates"}, a.Groups[1].Hooks)
	assert.Equal(t, []string{"hooked to woocommerce_cart_calculate_fees"}, a.Groups[3].Hooks)

	filter := findings(a, CategoryFilterHook)
	require.Len(t, filter, 1)
	assert.Equal(t, "Theme code hooks into WooCommerce package rates (limit_rates) to change which shipping options appear.", filter[0].Description)

	fee := findings(a, CategoryFeeHook)
	require.Len(t, fee, 1)
	assert.Equal(t, "Runs during cart fee calculation (::surcharge). This can add discounts/surcharges and affect totals.", fee[0].Description)

	addFee := findings(a, CategoryAddFee)
	require.Len(t, addFee, 1)
	assert.Equal(t, "Adds a fee to the cart. Details: label “Handling”, amount 4.5.", addFee[0].Description)

	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], `"woocommerce_package_rate"`)
	assert.Contains(t, a.Warnings[0], `"woocommerce_package_rates"`)

	require.Len(t, a.Hooked, 2)
	assert.Equal(t, "limit_rates()", a.Hooked[0].Function)
}

func TestAnalyze_FreeShippingAndSubtotal(t *testing.T) {
	src := `<?php
add_filter('woocommerce_package_rates', function ($rates) {
    $adjusted_total = 10;
    foreach ($rates as $rate_id => $rate) {
        if (strpos($rate_id, 'free_shipping') !== false && $adjusted_total < 50) {
            unset($rates[$rate_id]);
        }
    }
    return $rates;
});
`
	a := analyze(t, src)
	unset := findings(a, CategoryUnsetRate)
	require.Len(t, unset, 1)
	assert.Equal(t, "Removes the free shipping rate when the rate is a Free Shipping method and the non-drink subtotal is under $50", unset[0].Description)

	require.Len(t, a.Groups, 2)
	assert.Equal(t, "global scope", a.Groups[0].Function)
	assert.Equal(t, "anonymous function", a.Groups[1].Function)
	assert.Equal(t, []string{"hooked to woocommerce_package_rates"}, a.Groups[1].Hooks)

	filter := findings(a, CategoryFilterHook)
	require.Len(t, filter, 1)
	assert.Equal(t, "Theme code hooks into WooCommerce package rates to change which shipping options appear.", filter[0].Description)
}

func TestAnalyze_FeeAmountFromMatch(t *testing.T) {
	src := `<?php
function fees($cart) {
    $has_drinks = true;
    $fee = match (WC()->customer->get_shipping_state()) {
        'AK', 'HI' => 25,
        default => 0,
    };
    if (!$has_drinks) {
        $cart->add_fee(__('Remote surcharge', 'theme'), $fee);
    }
}
`
	a := analyze(t, src)
	fee := findings(a, CategoryAddFee)
	require.Len(t, fee, 1)
	assert.Equal(t, "Adds a fee to the cart. Details: label “Remote surcharge”, amount is determined by conditional logic (a match statement). Runs when the cart does not contain drinks.", fee[0].Description)
}

func TestAnalyze_NoticesAndSprintf(t *testing.T) {
	src := `<?php
function notices($postcode) {
    $blocked = ['90210', '10001'];
    if (in_array($postcode, $blocked)) {
        wc_add_notice(sprintf(__('Sorry, we cannot ship CBD products to %s (%d%%).', 'theme'), $postcode, 5), 'error');
    }
    if (has_term('alcohol', 'product_cat')) {
        wc_add_notice('Heads up', 'notice');
    }
}
`
	a := analyze(t, src)
	errs := findings(a, CategoryError)
	require.Len(t, errs, 1, "only error notices are checkout rules")
	assert.Equal(t,
		"Adds a checkout error message: “Sorry, we cannot ship <strong>CBD</strong> products to {postcode} (5%).” when the location is one of: <strong>90210, 10001</strong>.",
		errs[0].Description)
}

func TestAnalyze_MembershipRespectsReassignment(t *testing.T) {
	src := `<?php
function check($errors, $state) {
    $states = ['AK' => 'Alaska'];
    $states = apply_filters('blocked_states', $states);
    if (isset($states[$state])) {
        $errors->add('err', 'Blocked');
    }
}
`
	a := analyze(t, src)
	errs := findings(a, CategoryError)
	require.Len(t, errs, 1)
	assert.NotContains(t, errs[0].Description, "Alaska")
	assert.Contains(t, errs[0].Description, "when states[the state] is set.")
}

func TestAnalyze_CategoryCondition(t *testing.T) {
	src := `<?php
function gate($rates) {
    if (has_term('wine', 'product_cat') && !in_array('x', $list)) {
        unset($rates['ups']);
    }
}
`
	a := analyze(t, src)
	unset := findings(a, CategoryUnsetRate)
	require.Len(t, unset, 1)
	assert.Equal(t, "Removes a shipping rate by key (<code>ups</code>) when cart contains product from category <code>wine</code> and not in_array()", unset[0].Description)
}

func TestAnalyze_NothingFound(t *testing.T) {
	a := analyze(t, "<?php\nfunction hello() { return 'world'; }\n")
	assert.True(t, a.Empty())
	assert.Zero(t, a.FindingCount())
	assert.Empty(t, a.Warnings)
}

func TestBolder(t *testing.T) {
	b := newBolder(DefaultProducts)
	assert.Equal(t, "No <strong>Delta 8</strong> to <strong>Texas</strong>.", b.bold("No Delta 8 to Texas."))
	assert.Equal(t, "<strong>Garden</strong> products ship free", b.bold("Garden products ship free"))
	assert.Equal(t, "nothing here", b.bold("nothing here"))
}

func TestCategoryLabel(t *testing.T) {
	assert.Equal(t, "Checkout rule", CategoryError.Label())
	assert.Equal(t, "Matched code", Category("other").Label())
}

func TestAnalyze_Descriptions(t *testing.T) {
	tests := []struct {
		name        string
		src         string
		contains    []string
		notContains []string
	}{
		{
			name: "strict equality with false keeps free shipping",
			src: `<?php
function gate($rates) {
    foreach ($rates as $rate_id => $rate) {
        if (strpos($rate_id, 'free_shipping') === false) {
            unset($rates[$rate_id]);
        }
    }
}
`,
			contains: []string{
				"Removes a shipping rate by key (<code>",
				"when the rate is not a Free Shipping method",
			},
			notContains: []string{"Removes the free shipping rate"},
		},
		{
			name: "loose inequality with false on the left",
			src: `<?php
function gate($rates) {
    foreach ($rates as $rate_id => $rate) {
        if (false != stripos($rate_id, ' FREE_SHIPPING ')) {
            unset($rates[$rate_id]);
        }
    }
}
`,
			contains: []string{"Removes the free shipping rate when the rate is a Free Shipping method"},
		},
		{
			name: "instance id needle is not the free shipping method",
			src: `<?php
function gate($rates) {
    foreach ($rates as $rate_id => $rate) {
        if (strpos($rate_id, 'free_shipping:1') !== false) {
            unset($rates[$rate_id]);
        }
    }
}
`,
			contains:    []string{"Removes a shipping rate by key (<code>"},
			notContains: []string{"Removes the free shipping rate", "Free Shipping method"},
		},
		{
			name: "whole rates list",
			src: `<?php
function wipe($package_rates) {
    unset($package_rates);
}
`,
			contains: []string{"Removes one or more shipping rates from the available options"},
		},
		{
			name: "interpolated location placeholders",
			src: `<?php
function notices($errors) {
    $errors->add('a', "No shipping to {$state_names[$code]}.");
    $errors->add('b', "Zip {$postcodes[0]} is blocked.");
    $errors->add('c', "{$city_list[$i]} is out of range.");
}
`,
			contains: []string{
				"No shipping to [state name].",
				"Zip [postcode] is blocked.",
				"[city name] is out of range.",
			},
		},
		{
			name: "dynamic array value",
			src: `<?php
function check($errors, $state) {
    $blocked = ['AK', get_option('extra_state')];
    if (in_array($state, $blocked)) {
        $errors->add('e', 'No');
    }
}
`,
			contains: []string{"when the location is one of: <strong>AK, {dynamic_value}</strong>."},
		},
		{
			name: "nested arrays resolve recursively",
			src: `<?php
function check($errors, $state) {
    $zones = ['west' => ['CA' => ['cities' => 'LA']], 'x' => [[1, 2]]];
    if (in_array($state, $zones)) {
        $errors->add('e', 'No');
    }
}
`,
			contains:    []string{"<strong>[[LA]], [[1, 2]]</strong>"},
			notContains: []string{DynamicValue},
		},
		{
			name: "isset with several arguments",
			src: `<?php
function check($errors, $a, $b) {
    if (isset($a, $b)) {
        $errors->add('e', 'Both');
    }
}
`,
			contains: []string{"when a, b is set."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := descriptions(analyze(t, tt.src))
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, text, unwanted)
			}
		})
	}
}

func TestAnalyze_HookTypoWarnings(t *testing.T) {
	tests := []struct {
		name string
		hook string
		want string
	}{
		{"extra letter", "woocommerce_packages_rates", `Hook "woocommerce_packages_rates" on line 2 looks like a misspelling of "woocommerce_package_rates"; WooCommerce will never call it.`},
		{"transposed", "woocommerce_cart_calcualte_fees", `Hook "woocommerce_cart_calcualte_fees" on line 2 looks like a misspelling of "woocommerce_cart_calculate_fees"; WooCommerce will never call it.`},
		{"unrelated hook", "init", ""},
		{"known hook", "woocommerce_package_rates", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := analyze(t, "<?php\nadd_filter('"+tt.hook+"', 'cb');\nfunction cb($rates) { return $rates; }\n")
			if tt.want == "" {
				assert.Empty(t, a.Warnings)
				return
			}
			assert.Equal(t, []string{tt.want}, a.Warnings)
		})
	}
}

func TestLiteralArray_DeepNesting(t *testing.T) {
	src := `<?php
$zones = ['west' => ['CA' => ['cities' => 'LA']], 'x' => [[1, 2]]];
`
	a := analyze(t, src)
	zones := a.Arrays[GlobalScopeKey]["zones"]
	require.NotNil(t, zones)

	west, _ := zones.Get("west")
	require.Equal(t, ValueArray, west.Kind)
	ca, ok := west.Nested.Get("CA")
	require.True(t, ok)
	require.Equal(t, ValueArray, ca.Kind)
	city, ok := ca.Nested.Get("cities")
	require.True(t, ok)
	assert.Equal(t, "LA", city.Text)

	x, _ := zones.Get("x")
	assert.Equal(t, "[[1, 2]]", x.String())

	data, err := zones.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"west":{"CA":{"cities":"LA"}},"x":{"0":{"0":1,"1":2}}}`, string(data))
}
