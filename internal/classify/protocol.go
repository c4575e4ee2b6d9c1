package classify

import "strings"

// Template describes the column conventions of a known protocol export.
type Template struct {
	Key         string
	Name        string
	Description string
	Date        []string
	Address     []string
	Value       []string
	Optional    []string
}

// Detection is the outcome of DetectProtocol.
type Detection struct {
	Protocol string          `json:"protocol"`
	Score    int             `json:"score"`
	Matched  map[Role]string `json:"matched,omitempty"`
	Optional []string        `json:"optional,omitempty"`
}

// Assignment converts the matched columns into a role assignment.
func (d Detection) Assignment() Assignment {
	return Assignment{Date: d.Matched[RoleDate], Address: d.Matched[RoleAddress], Value: d.Matched[RoleValue]}
}

// minProtocolScore is the score a template needs to beat the generic fallback.
const minProtocolScore = 5

var templates = []Template{
	{
		Key: "uniswap", Name: "Uniswap V3", Description: "DEX swaps on Uniswap V3",
		Date:     []string{"block_time", "timestamp", "date", "time"},
		Address:  []string{"trader", "user", "from_address", "to_address", "wallet"},
		Value:    []string{"amount_usd", "value_usd", "volume_usd", "amount"},
		Optional: []string{"token_bought_symbol", "token_sold_symbol", "project", "version"},
	},
	{
		Key: "opensea", Name: "OpenSea NFT", Description: "NFT sales on OpenSea marketplace",
		Date:     []string{"block_time", "timestamp", "date", "time"},
		Address:  []string{"buyer", "seller", "from_address", "to_address", "wallet"},
		Value:    []string{"amount_usd", "price_usd", "value_usd", "amount"},
		Optional: []string{"nft_project_name", "collection", "token_id", "marketplace"},
	},
	{
		Key: "aave", Name: "Aave V3", Description: "Lending/borrowing on Aave V3",
		Date:     []string{"block_time", "timestamp", "date", "time"},
		Address:  []string{"user_address", "user", "borrower", "depositor", "wallet"},
		Value:    []string{"amount_usd", "value_usd", "amount"},
		Optional: []string{"action", "reserve_symbol", "protocol_version", "chain"},
	},
	{
		Key: "generic", Name: "Generic Web3 Data", Description: "Generic blockchain/Web3 dataset",
		Date:    []string{"block_time", "timestamp", "date", "time", "created_at"},
		Address: []string{"address", "wallet", "user", "from", "to", "sender", "receiver"},
		Value:   []string{"amount_usd", "value_usd", "volume", "amount", "value"},
	},
}

// Templates returns a copy of the known protocol templates.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// LookupTemplate returns the template for key, falling back to generic.
func LookupTemplate(key string) Template {
	for _, t := range templates {
		if t.Key == key {
			return t
		}
	}
	return templates[len(templates)-1]
}

// DetectProtocol scores each non-generic template against the column names.
// A matching date pattern scores 3, address 3, value 2 and each optional
// column 1. The first template with the highest score wins when it reaches
// minProtocolScore; otherwise the result is "generic" with no matches.
func DetectProtocol(columns []string) Detection {
	best := Detection{Protocol: "generic"}
	if len(columns) == 0 {
		return best
	}
	lower := make([]string, len(columns))
	for i, c := range columns {
		lower[i] = strings.ToLower(c)
	}
	found := false
	for _, tpl := range templates {
		if tpl.Key == "generic" {
			continue
		}
		d := Detection{Protocol: tpl.Key, Matched: map[Role]string{}}
		if col, ok := firstPattern(tpl.Date, columns, lower); ok {
			d.Score += 3
			d.Matched[RoleDate] = col
		}
		if col, ok := firstPattern(tpl.Address, columns, lower); ok {
			d.Score += 3
			d.Matched[RoleAddress] = col
		}
		if col, ok := firstPattern(tpl.Value, columns, lower); ok {
			d.Score += 2
			d.Matched[RoleValue] = col
		}
		for _, p := range tpl.Optional {
			if col, ok := firstPattern([]string{p}, columns, lower); ok {
				d.Score++
				d.Optional = append(d.Optional, col)
			}
		}
		if !found || d.Score > best.Score {
			best = d
			found = true
		}
	}
	if best.Score < minProtocolScore {
		return Detection{Protocol: "generic"}
	}
	return best
}

// firstPattern returns the first column containing the first pattern that
// matches any column.
func firstPattern(patterns, columns, lower []string) (string, bool) {
	for _, p := range patterns {
		for i, c := range lower {
			if strings.Contains(c, p) {
				return columns[i], true
			}
		}
	}
	return "", false
}
