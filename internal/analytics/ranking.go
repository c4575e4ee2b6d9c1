package analytics

import (
	"sort"

	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/shopspring/decimal"
)

// DefaultTopN is the ranking size used when callers do not choose one.
const DefaultTopN = 10

// Entity is one ranked address.
type Entity struct {
	Address    string  `json:"address"`
	Display    string  `json:"display"`
	TotalValue float64 `json:"total_value"`
	TxCount    int     `json:"tx_count"`
	Share      float64 `json:"share"`
}

// Ranking is the top-N addresses by summed value, descending.
type Ranking struct {
	Entries           []Entity `json:"entries"`
	N                 int      `json:"n"`
	DistinctAddresses int      `json:"distinct_addresses"`
	TotalValue        float64  `json:"total_value"`
	DroppedRows       int      `json:"dropped_rows"`

	Warning *EmptyResultWarning `json:"warning,omitempty"`
}

// BuildTopEntities groups rows by address and ranks by summed value.
// Ties keep first-appearance order. n is clamped to [1, distinct addresses].
func BuildTopEntities(t *table.Table, addressCol, valueCol string, n int) (Ranking, error) {
	r := Ranking{Entries: []Entity{}}
	if t.Len() == 0 {
		r.Warning = emptyWarning("ranking", "table has no rows")
		return r, nil
	}
	ai, err := resolve(t, roleAddress, addressCol)
	if err != nil {
		return Ranking{}, err
	}
	vi, err := resolve(t, roleValue, valueCol)
	if err != nil {
		return Ranking{}, err
	}
	addrs, _ := addresses(t, ai)
	vals, vc := numbers(t, vi)

	type agg struct {
		addr  string
		total decimal.Decimal
		count int
	}
	var order []*agg
	byAddr := make(map[string]*agg)
	grand := decimal.Zero
	for i := 0; i < t.Len(); i++ {
		if !vc.ok[i] || addrs[i] == "" {
			r.DroppedRows++
			continue
		}
		a := byAddr[addrs[i]]
		if a == nil {
			a = &agg{addr: addrs[i], total: decimal.Zero}
			byAddr[addrs[i]] = a
			order = append(order, a)
		}
		v := decimal.NewFromFloat(vals[i])
		a.total = a.total.Add(v)
		a.count++
		grand = grand.Add(v)
	}
	qerr := joinQuality(vc.quality(valueCol, roleValue))
	r.DistinctAddresses = len(order)
	r.TotalValue = grand.InexactFloat64()
	if len(order) == 0 {
		r.Warning = emptyWarning("ranking", "no rows with an address and a numeric value")
		return r, qerr
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].total.GreaterThan(order[j].total) })
	r.N = clamp(n, 1, len(order))
	for _, a := range order[:r.N] {
		e := Entity{
			Address:    a.addr,
			Display:    ShortAddress(a.addr),
			TotalValue: a.total.InexactFloat64(),
			TxCount:    a.count,
		}
		if !grand.IsZero() {
			e.Share = a.total.Div(grand).InexactFloat64()
		}
		r.Entries = append(r.Entries, e)
	}
	return r, qerr
}

// ShortAddress renders long identifiers as 0x1234...abcd.
func ShortAddress(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
