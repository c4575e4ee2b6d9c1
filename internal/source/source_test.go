package source

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		ref    string
		kind   Kind
		target string
		query  string
	}{
		{"data/trades.csv", KindFile, "data/trades.csv", ""},
		{"dune:1234", KindDune, "1234", ""},
		{"dune:uniswap_v3_daily_volume", KindDune, "uniswap_v3_daily_volume", ""},
		{"postgres://u:p@db:5432/chain#SELECT * FROM trades", KindPostgres, "postgres://u:p@db:5432/chain", "SELECT * FROM trades"},
		{"postgresql://db/chain", KindPostgres, "postgresql://db/chain", ""},
		{"clickhouse://default@ch:9000/dex# select 1 ", KindClickHouse, "clickhouse://default@ch:9000/dex", "select 1"},
	}
	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			r, err := Parse(tc.ref)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, r.Kind)
			assert.Equal(t, tc.target, r.Target)
			assert.Equal(t, tc.query, r.Query)
		})
	}
}

func TestParseDuneParams(t *testing.T) {
	r, err := Parse("dune:42?chain=ethereum&days=30")
	require.NoError(t, err)
	assert.Equal(t, "42", r.Target)
	assert.Equal(t, map[string]string{"chain": "ethereum", "days": "30"}, r.Params)

	_, err = Parse("dune:")
	assert.Error(t, err)
	_, err = Parse("   ")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://u:xxxxx@db:5432/chain", Redact("postgres://u:secret@db:5432/chain#select 1"))
	assert.Equal(t, "trades.csv", Redact("trades.csv"))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,wallet,amount_usd\n2024-01-01,0xA,10\n2024-01-02,0xB,20\n"), 0o644))

	tb, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, tb.Len())
	assert.Equal(t, []string{"date", "wallet", "amount_usd"}, tb.Columns())
}

func TestOpenRequiresClientOrQuery(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, "dune:42", Options{})
	assert.ErrorContains(t, err, "no Dune client")

	_, err = Open(ctx, "postgres://localhost/db", Options{})
	assert.ErrorContains(t, err, "needs a query")

	_, err = Open(ctx, "clickhouse://localhost/db", Options{})
	assert.ErrorContains(t, err, "needs a query")
}

func TestParseClickHouseDSN(t *testing.T) {
	opts, err := parseClickHouseDSN("clickhouse://reader:pw@ch.internal/dex")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch.internal:9000"}, opts.Addr)
	assert.Equal(t, "reader", opts.Auth.Username)
	assert.Equal(t, "pw", opts.Auth.Password)
	assert.Equal(t, "dex", opts.Auth.Database)

	opts, err = parseClickHouseDSN("clickhouse://ch:9440")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch:9440"}, opts.Addr)
	assert.Empty(t, opts.Auth.Database)

	_, err = parseClickHouseDSN("clickhouse:///nohost")
	assert.Error(t, err)
}

func TestCellString(t *testing.T) {
	s := "0xabc"
	var nilStr *string
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{nilStr, ""},
		{&s, "0xabc"},
		{[]byte("raw"), "raw"},
		{ts, "2024-03-01T11:00:00Z"},
		{1.5, "1.5"},
		{float32(2.25), "2.25"},
		{int64(-7), "-7"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{true, "true"},
		{decimal.RequireFromString("123.4500"), "123.45"},
		{big.NewInt(1e18), "1000000000000000000"},
		{[16]byte{0x12, 0x34}, "12340000-0000-0000-0000-000000000000"},
		{map[string]int{"a": 1}, `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cellString(tc.in), "%T", tc.in)
	}
}
