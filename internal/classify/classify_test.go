package classify

import (
	"reflect"
	"testing"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

func scenario() *table.Table {
	return table.New("tx.csv", []string{"date", "address", "value"}, [][]string{
		{"2024-01-01", "0xA", "100"},
		{"2024-01-01", "0xB", "50"},
		{"2024-01-02", "0xA", "25"},
	})
}

func TestClassifyScenario(t *testing.T) {
	res := Explain(scenario(), Options{})
	want := Assignment{Date: "date", Address: "address", Value: "value"}
	if res.Assignment != want {
		t.Fatalf("assignment = %+v, want %+v", res.Assignment, want)
	}
	if res.MatchedBy[RoleDate] != "date-name-hint" || res.MatchedBy[RoleValue] != "value-name-hint" || res.MatchedBy[RoleAddress] != "address-name-hint" {
		t.Fatalf("matched by = %v", res.MatchedBy)
	}
}

func TestClassifyPrefersUSDAndFallsBackToValues(t *testing.T) {
	tb := table.New("dune.csv", []string{"ts_col", "hash", "amount_token", "amount_usd", "label"}, [][]string{
		{"2024-01-01 10:00:00.000 UTC", "0xaa", "1.5", "3000", "x"},
		{"2024-01-02 10:00:00.000 UTC", "0xbb", "2", "4000", "x"},
		{"2024-01-03 10:00:00.000 UTC", "0xcc", "0.5", "1000", "y"},
		{"2024-01-04 10:00:00.000 UTC", "0xdd", "1", "2000", "x"},
	})
	res := Explain(tb, Options{})
	if res.Assignment.Value != "amount_usd" {
		t.Fatalf("value = %q, want amount_usd", res.Assignment.Value)
	}
	if res.Assignment.Date != "ts_col" || res.MatchedBy[RoleDate] != "date-values-parse" {
		t.Fatalf("date = %q via %q", res.Assignment.Date, res.MatchedBy[RoleDate])
	}
	if res.Assignment.Address != "hash" || res.MatchedBy[RoleAddress] != "address-high-cardinality" {
		t.Fatalf("address = %q via %q", res.Assignment.Address, res.MatchedBy[RoleAddress])
	}
}

func TestClassifyFirstNumericAndMissing(t *testing.T) {
	tb := table.New("x.csv", []string{"n1", "n2"}, [][]string{{"1", "2"}, {"3", "4"}})
	a := Classify(tb, Options{})
	if a.Value != "n1" || a.Date != "" {
		t.Fatalf("assignment = %+v", a)
	}
	// n2 is numeric so it is not proposed as an address.
	if got := Missing(a); !reflect.DeepEqual(got, []Role{RoleDate, RoleAddress}) {
		t.Fatalf("missing = %v", got)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	tb := scenario()
	a1 := Classify(tb, Options{UseProtocol: true})
	a2 := Classify(tb, Options{UseProtocol: true})
	if a1 != a2 {
		t.Fatalf("not idempotent: %+v vs %+v", a1, a2)
	}
}

func TestClassifyExtraHintsAndCustomRules(t *testing.T) {
	tb := table.New("x.csv", []string{"epoch_label", "owner", "qty"}, [][]string{
		{"a", "0x1", "1"}, {"b", "0x1", "2"}, {"c", "0x1", "3"},
	})
	a := Classify(tb, Options{AddressHints: []string{"Owner"}})
	if a.Address != "owner" || a.Value != "qty" {
		t.Fatalf("assignment = %+v", a)
	}
	only := []Rule{{Name: "pick-epoch", Role: RoleDate, Match: func(c Column, _ *Context) bool { return c.Name == "epoch_label" }}}
	a = Classify(tb, Options{Rules: only})
	if a != (Assignment{Date: "epoch_label"}) {
		t.Fatalf("custom rules assignment = %+v", a)
	}
}

func TestOverride(t *testing.T) {
	base := Assignment{Date: "d", Address: "a", Value: "v"}
	got := Override(base, Assignment{Value: "amount_usd"})
	if got != (Assignment{Date: "d", Address: "a", Value: "amount_usd"}) {
		t.Fatalf("override = %+v", got)
	}
}

func TestClassifyEmpty(t *testing.T) {
	a := Classify(table.New("e.csv", nil, nil), Options{})
	if len(Missing(a)) != 3 {
		t.Fatalf("expected all roles missing, got %+v", a)
	}
}

func TestDetectProtocol(t *testing.T) {
	cases := []struct {
		name    string
		columns []string
		want    string
		assign  Assignment
	}{
		{"uniswap", []string{"block_time", "trader", "amount_usd", "token_bought_symbol"}, "uniswap", Assignment{Date: "block_time", Address: "trader", Value: "amount_usd"}},
		{"opensea", []string{"block_time", "buyer", "seller", "price_usd", "nft_project_name"}, "opensea", Assignment{Date: "block_time", Address: "buyer", Value: "price_usd"}},
		{"aave", []string{"block_time", "user_address", "amount_usd", "reserve_symbol", "action"}, "aave", Assignment{Date: "block_time", Address: "user_address", Value: "amount_usd"}},
		{"generic", []string{"foo", "bar"}, "generic", Assignment{}},
		{"empty", nil, "generic", Assignment{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := DetectProtocol(tc.columns)
			if d.Protocol != tc.want {
				t.Fatalf("protocol = %s (score %d), want %s", d.Protocol, d.Score, tc.want)
			}
			if d.Assignment() != tc.assign {
				t.Fatalf("assignment = %+v, want %+v", d.Assignment(), tc.assign)
			}
		})
	}
}

func TestExplainUsesProtocolFirst(t *testing.T) {
	tb := table.New("swaps.csv", []string{"amount", "block_time", "trader", "amount_usd"}, [][]string{
		{"1", "2024-01-01", "0xa", "10"},
	})
	res := Explain(tb, Options{UseProtocol: true})
	if res.Protocol.Protocol != "uniswap" {
		t.Fatalf("protocol = %s", res.Protocol.Protocol)
	}
	if res.Assignment.Value != "amount_usd" || res.MatchedBy[RoleValue] != "protocol-uniswap" {
		t.Fatalf("value = %q via %q", res.Assignment.Value, res.MatchedBy[RoleValue])
	}
}
