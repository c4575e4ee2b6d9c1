package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

func fixture() *table.Table {
	header := []string{"block_time", "trader", "amount_usd", "token", "note"}
	rows := [][]string{
		{"2024-01-01 10:00:00", "0xaaa1", "10", "WETH", "first swap"},
		{"2024-01-01 11:00:00", "0xaaa2", "11", "USDC", "second"},
		{"2024-01-02 09:30:00", "0xaaa3", "9.5", "WETH", ""},
		{"2024-01-02 12:00:00", "0xaaa4", "10.5", "WETH", "fourth"},
		{"2024-01-03 08:00:00", "0xaaa5", "9.8", "USDC", "fifth"},
		{"2024-01-03 18:00:00", "0xaaa6", "10.2", "WETH", "sixth"},
		{"2024-01-04 01:00:00", "0xaaa7", "8.8", "DAI", "seventh"},
		{"2024-01-04 02:00:00", "0xaaa8", "9.7", "WETH", "eighth"},
		{"2024-01-05 03:00:00", "0xaaa9", "50", "WETH", "ninth"},
		{"2024-01-05 04:00:00", "0xaab0", "10.1", "DAI", "tenth"},
	}
	return table.New("swaps.csv", header, rows)
}

func TestProfileKindsAndStats(t *testing.T) {
	rep := Profile(fixture(), DefaultOptions())
	if rep.Rows != 10 || rep.Processed != 10 {
		t.Fatalf("rows=%d processed=%d", rep.Rows, rep.Processed)
	}
	kinds := map[string]string{
		"block_time": KindDatetime,
		"trader":     KindCategorical,
		"amount_usd": KindNumeric,
		"token":      KindCategorical,
		"note":       KindCategorical,
	}
	for name, want := range kinds {
		c, ok := rep.Column(name)
		if !ok {
			t.Fatalf("missing column %s", name)
		}
		if c.Kind != want {
			t.Fatalf("%s kind = %s, want %s", name, c.Kind, want)
		}
	}
	amt, _ := rep.Column("amount_usd")
	if amt.Min != 8.8 || amt.Max != 50 {
		t.Fatalf("min/max = %v/%v", amt.Min, amt.Max)
	}
	if math.Abs(amt.Mean-13.96) > 1e-9 {
		t.Fatalf("mean = %v", amt.Mean)
	}
	if amt.OutliersCount != 1 {
		t.Fatalf("outliers = %d, want 1", amt.OutliersCount)
	}
	if amt.NumericRatio != 1 {
		t.Fatalf("numeric ratio = %v", amt.NumericRatio)
	}
	trader, _ := rep.Column("trader")
	if trader.UniqueRatio() != 1 {
		t.Fatalf("trader unique ratio = %v", trader.UniqueRatio())
	}
	note, _ := rep.Column("note")
	if note.Missing != 1 || note.NonNull != 9 {
		t.Fatalf("note missing=%d nonnull=%d", note.Missing, note.NonNull)
	}
	tok, _ := rep.Column("token")
	if tok.TopValues[0].Value != "WETH" || tok.TopValues[0].Count != 6 {
		t.Fatalf("top token = %#v", tok.TopValues[0])
	}
}

func TestProfileMarkdownAndMaxRows(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 9
	opt.SampleRows = 2
	rep := Profile(fixture(), opt)
	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"Source: swaps.csv",
		"Rows: ~10 (processed 9)",
		"- amount_usd: numeric",
		"- block_time: datetime",
		"[HEAD AND SAMPLE ROWS]",
		"processed only 9/10 rows due to MaxRows",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if len(rep.Samples) != 2 {
		t.Fatalf("samples = %d", len(rep.Samples))
	}
}

func TestProfileEmptyTable(t *testing.T) {
	rep := Profile(table.New("empty.csv", []string{"date", "address", "value"}, nil), DefaultOptions())
	if rep.Rows != 0 || len(rep.Cols) != 3 {
		t.Fatalf("rows=%d cols=%d", rep.Rows, len(rep.Cols))
	}
	for _, c := range rep.Cols {
		if c.Kind != KindUnknown {
			t.Fatalf("%s kind = %s, want unknown", c.Name, c.Kind)
		}
	}
}
