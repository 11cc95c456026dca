// Package rules finds shipping-related logic in theme PHP files and explains it in plain English.
//
// A single pass over the syntax tree feeds three collectors: shipping calls
// (rates, fees, checkout errors and the two WooCommerce hooks), literal array
// assignments keyed by scope, and hook registrations. Each match is then
// rendered through a per-category template that pulls in resolved literals
// and the text of the enclosing conditions.
package rules

// Category identifies the kind of shipping logic a finding represents
type Category string

const (
	CategoryFilterHook Category = "filterHooks"
	CategoryFeeHook    Category = "feeHooks"
	CategoryRateCall   Category = "rateCalls"
	CategoryNewRate    Category = "newRates"
	CategoryUnsetRate  Category = "unsetRates"
	CategoryAddFee     Category = "addFees"
	CategoryError      Category = "errors"
)

// Label is the short list-item heading for a category
func (c Category) Label() string {
	switch c {
	case CategoryFilterHook:
		return "Modifies shipping rates"
	case CategoryFeeHook:
		return "Adjusts cart fees/totals"
	case CategoryRateCall:
		return "Adds a custom rate"
	case CategoryNewRate:
		return "Creates a rate object"
	case CategoryUnsetRate:
		return "Removes a rate"
	case CategoryAddFee:
		return "Adds a cart fee"
	case CategoryError:
		return "Checkout rule"
	default:
		return "Matched code"
	}
}

// WooCommerce hooks that change which shipping options and fees a shopper sees
const (
	HookPackageRates       = "woocommerce_package_rates"
	HookCartCalculateFees  = "woocommerce_cart_calculate_fees"
	GlobalScopeKey         = "__global__"
	GlobalScopeDisplayName = "global scope"
	ClosureDisplayName     = "anonymous function"
)

// Finding is one matched piece of shipping logic
type Finding struct {
	Category    Category `json:"category"`
	Label       string   `json:"label"`
	Description string   `json:"description"` // HTML fragment, dynamic parts escaped
	Line        int      `json:"line"`
	ScopeKey    string   `json:"scope"`
}

// Group collects the findings inside one function, method, closure or the file scope
type Group struct {
	Function string    `json:"function"`
	Hooks    []string  `json:"hooks,omitempty"`
	Findings []Finding `json:"findings"`
}

// HookedFunction is a hook registration whose callback resolved to a declaration in the file
type HookedFunction struct {
	Hook     string `json:"hook"`
	Function string `json:"function"`
	Line     int    `json:"line"`
}

// Analysis is the result of analysing one parsed file
type Analysis struct {
	Groups   []Group                      `json:"groups"`
	Hooked   []HookedFunction             `json:"hooked,omitempty"`
	Arrays   map[string]map[string]*Array `json:"arrays,omitempty"`
	Warnings []string                     `json:"warnings,omitempty"`
}

// Empty reports whether nothing shipping-related was found
func (a *Analysis) Empty() bool {
	return len(a.Groups) == 0
}

// FindingCount returns the number of findings across all groups
func (a *Analysis) FindingCount() int {
	n := 0
	for _, g := range a.Groups {
		n += len(g.Findings)
	}
	return n
}
