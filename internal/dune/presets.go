package dune

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Preset is a named, commonly used public query.
type Preset struct {
	Key         string
	QueryID     int
	Name        string
	Description string
	// Columns the query is expected to return, used as role hints.
	Columns []string
}

var presets = map[string]Preset{
	"uniswap_v3_daily_volume": {
		Key: "uniswap_v3_daily_volume", QueryID: 1234567,
		Name: "Uniswap V3 Daily Volume", Description: "Daily trading volume on Uniswap V3",
		Columns: []string{"block_time", "trader", "amount_usd"},
	},
	"opensea_collections": {
		Key: "opensea_collections", QueryID: 2345678,
		Name: "OpenSea Top Collections", Description: "NFT collection rankings by volume",
		Columns: []string{"block_time", "buyer", "amount_usd", "nft_project_name"},
	},
	"aave_v3_tvl": {
		Key: "aave_v3_tvl", QueryID: 3456789,
		Name: "Aave V3 TVL", Description: "Total Value Locked in Aave V3",
		Columns: []string{"block_time", "user_address", "amount_usd"},
	},
}

// Presets returns the built-in presets ordered by key.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// LookupPreset finds a preset by key.
func LookupPreset(key string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// ResolveQueryID accepts a numeric id or a preset key.
func ResolveQueryID(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("query id must be positive, got %d", id)
		}
		return id, nil
	}
	if p, ok := LookupPreset(ref); ok {
		return p.QueryID, nil
	}
	return 0, fmt.Errorf("unknown query %q: use a numeric id or one of the presets", ref)
}

// ParseParams converts k=v pairs into query parameters.
func ParseParams(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
