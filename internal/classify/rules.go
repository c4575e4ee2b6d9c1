package classify

import (
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/analysis"
	"github.com/KaramelBytes/chainpulse/internal/table"
)

var (
	defaultDateHints    = []string{"date", "time", "timestamp", "block_time", "day", "created"}
	defaultAddressHints = []string{"address", "wallet", "from", "trader", "user", "account", "sender", "receiver", "buyer", "seller", "borrower", "depositor", "to_address"}
	defaultValueHints   = []string{"amount", "value", "volume", "price"}
)

const (
	// parseThreshold is the share of sampled cells that must coerce.
	parseThreshold = 0.9
	// cardinalityThreshold is the minimum distinct/non-null ratio for addresses.
	cardinalityThreshold = 0.5
)

// Rule is a named predicate proposing a column for one role.
type Rule struct {
	Name  string
	Role  Role
	Match func(c Column, ctx *Context) bool
}

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "date-name-hint", Role: RoleDate, Match: func(c Column, ctx *Context) bool {
			return containsAny(c.Lower, ctx.DateHints)
		}},
		{Name: "date-values-parse", Role: RoleDate, Match: func(c Column, _ *Context) bool {
			return parsesAsTime(c.Sample)
		}},
		{Name: "value-usd-numeric", Role: RoleValue, Match: func(c Column, _ *Context) bool {
			return strings.Contains(c.Lower, "usd") && isNumeric(c)
		}},
		{Name: "value-name-hint", Role: RoleValue, Match: func(c Column, ctx *Context) bool {
			return containsAny(c.Lower, ctx.ValueHints) && isNumeric(c)
		}},
		{Name: "value-first-numeric", Role: RoleValue, Match: func(c Column, _ *Context) bool {
			return isNumeric(c)
		}},
		{Name: "address-name-hint", Role: RoleAddress, Match: func(c Column, ctx *Context) bool {
			return containsAny(c.Lower, ctx.AddressHints) && !isNumeric(c)
		}},
		{Name: "address-high-cardinality", Role: RoleAddress, Match: func(c Column, _ *Context) bool {
			switch c.Summary.Kind {
			case analysis.KindCategorical, analysis.KindText:
				return c.Summary.UniqueRatio() >= cardinalityThreshold
			}
			return false
		}},
	}
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if h != "" && strings.Contains(s, h) {
			return true
		}
	}
	return false
}

func isNumeric(c Column) bool {
	return c.Summary.NonNull > 0 && c.Summary.NumericRatio >= parseThreshold
}

func parsesAsTime(sample []string) bool {
	if len(sample) == 0 {
		return false
	}
	ok := 0
	for _, v := range sample {
		if _, parsed := table.ParseTime(v); parsed {
			ok++
		}
	}
	return float64(ok)/float64(len(sample)) >= parseThreshold
}
