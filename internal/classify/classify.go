// Package classify proposes which columns of a table hold the date, the
// address and the USD value of each transaction.
package classify

import (
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/analysis"
	"github.com/KaramelBytes/chainpulse/internal/table"
)

// Role is a logical column role.
type Role string

const (
	RoleDate    Role = "date"
	RoleValue   Role = "value"
	RoleAddress Role = "address"
)

// Roles lists roles in the order they are resolved.
var Roles = []Role{RoleDate, RoleValue, RoleAddress}

// DefaultSampleSize bounds the cells inspected per column.
const DefaultSampleSize = 100

// Assignment maps each role to a column name. Empty means unassigned.
type Assignment struct {
	Date    string `json:"date" yaml:"date"`
	Address string `json:"address" yaml:"address"`
	Value   string `json:"value" yaml:"value"`
}

// Get returns the column assigned to r.
func (a Assignment) Get(r Role) string {
	switch r {
	case RoleDate:
		return a.Date
	case RoleAddress:
		return a.Address
	case RoleValue:
		return a.Value
	}
	return ""
}

// Set assigns col to r.
func (a *Assignment) Set(r Role, col string) {
	switch r {
	case RoleDate:
		a.Date = col
	case RoleAddress:
		a.Address = col
	case RoleValue:
		a.Value = col
	}
}

// Options tunes classification.
type Options struct {
	// Extra substrings appended to the built-in name hints.
	DateHints    []string
	AddressHints []string
	ValueHints   []string
	// Rules replaces the built-in rule set when non-empty.
	Rules []Rule
	// SampleSize caps non-empty cells sampled per column (default 100).
	SampleSize int
	// UseProtocol seeds the assignment from the best matching protocol template.
	UseProtocol bool
}

// Result explains an assignment.
type Result struct {
	Assignment Assignment
	// MatchedBy names the rule that resolved each role.
	MatchedBy map[Role]string
	Protocol  Detection
}

// Classify returns the best-guess column per role.
func Classify(t *table.Table, opts Options) Assignment {
	return Explain(t, opts).Assignment
}

// Explain classifies t and records which rule matched each role.
func Explain(t *table.Table, opts Options) Result {
	res := Result{MatchedBy: map[Role]string{}}
	if t == nil || t.Width() == 0 {
		res.Protocol = Detection{Protocol: "generic"}
		return res
	}
	ctx := newContext(t, opts)
	taken := map[string]bool{}

	if opts.UseProtocol {
		res.Protocol = DetectProtocol(t.Columns())
		for _, r := range Roles {
			col := res.Protocol.Matched[r]
			if col == "" || taken[col] {
				continue
			}
			res.Assignment.Set(r, col)
			res.MatchedBy[r] = "protocol-" + res.Protocol.Protocol
			taken[col] = true
		}
	} else {
		res.Protocol = Detection{Protocol: "generic"}
	}

	rules := opts.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for _, r := range Roles {
		if res.Assignment.Get(r) != "" {
			continue
		}
		for _, rule := range rules {
			if rule.Role != r {
				continue
			}
			col := ""
			for _, c := range ctx.cols {
				if taken[c.Name] {
					continue
				}
				if rule.Match(c, ctx) {
					col = c.Name
					break
				}
			}
			if col != "" {
				res.Assignment.Set(r, col)
				res.MatchedBy[r] = rule.Name
				taken[col] = true
				break
			}
		}
	}
	return res
}

// Override applies non-empty fields of manual on top of base.
func Override(base, manual Assignment) Assignment {
	if manual.Date != "" {
		base.Date = manual.Date
	}
	if manual.Address != "" {
		base.Address = manual.Address
	}
	if manual.Value != "" {
		base.Value = manual.Value
	}
	return base
}

// Missing lists unassigned roles.
func Missing(a Assignment) []Role {
	var out []Role
	for _, r := range Roles {
		if a.Get(r) == "" {
			out = append(out, r)
		}
	}
	return out
}

// Column is what a rule sees of a candidate column.
type Column struct {
	Name    string
	Lower   string
	Index   int
	Summary analysis.ColumnSummary
	// Sample holds up to SampleSize non-empty cells in row order.
	Sample []string
}

// Context carries per-call state shared by rules.
type Context struct {
	Table        *table.Table
	DateHints    []string
	AddressHints []string
	ValueHints   []string
	cols         []Column
}

func newContext(t *table.Table, opts Options) *Context {
	n := opts.SampleSize
	if n <= 0 {
		n = DefaultSampleSize
	}
	ctx := &Context{
		Table:        t,
		DateHints:    appendHints(defaultDateHints, opts.DateHints),
		AddressHints: appendHints(defaultAddressHints, opts.AddressHints),
		ValueHints:   appendHints(defaultValueHints, opts.ValueHints),
	}
	popt := analysis.DefaultOptions()
	popt.Outliers = false
	popt.SampleRows = 0
	popt.MaxRows = n
	rep := analysis.Profile(t, popt)
	for i, name := range t.Columns() {
		c := Column{Name: name, Lower: strings.ToLower(name), Index: i}
		if s, ok := rep.Column(name); ok {
			c.Summary = s
		}
		for row := 0; row < t.Len() && len(c.Sample) < n; row++ {
			if v := t.Cell(row, i); v != "" {
				c.Sample = append(c.Sample, v)
			}
		}
		ctx.cols = append(ctx.cols, c)
	}
	return ctx
}

func appendHints(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	for _, h := range extra {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
