package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NumberFormat pins the decimal and thousands separators. Zero values mean
// auto-detect per value.
type NumberFormat struct {
	Decimal   rune
	Thousands rune
}

var timeLayouts = []string{
	time.RFC3339Nano, time.RFC3339,
	"2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02 15:04:05.000 MST",
	"2006-01-02 15:04:05 MST", "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "1/2/2006",
}

// ParseTime parses common date/time encodings, including Dune style
// "2024-01-01 00:00:00.000 UTC" and 10/13 digit unix timestamps. Results are UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		switch len(s) {
		case 10:
			return time.Unix(n, 0).UTC(), true
		case 13:
			return time.UnixMilli(n).UTC(), true
		}
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell with auto-detected separators.
func ParseNumber(s string) (float64, bool) {
	return ParseNumberWith(s, NumberFormat{})
}

// ParseNumberWith parses a numeric cell. Currency symbols, percent signs and
// non-breaking spaces are stripped; hex strings, NaN and Inf are rejected.
func ParseNumberWith(s string, nf NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "-0x") {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	neg := false
	// The sign may sit on either side of the currency: "-$5", "$-5", "USD -5".
	for i := 0; i < 2; i++ {
		if r := strings.TrimLeft(raw, "-+ "); r != raw {
			neg = neg || strings.Contains(raw[:len(raw)-len(r)], "-")
			raw = r
		}
		raw = trimCurrency(raw)
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	dec, thou := nf.Decimal, nf.Thousands
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			// "1,234" and "1,234,567" read as thousands; "0,5" and "0,500"
			// as a decimal comma.
			if thousandsGrouped(raw, ',') {
				dec, thou = '.', ','
			} else {
				dec = ','
			}
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

func trimCurrency(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.EqualFold(s[:3], "usd") {
		s = s[3:]
	} else if strings.HasPrefix(s, "US$") {
		s = s[2:]
	}
	s = strings.TrimLeft(s, "$€£ ")
	if n := len(s); n >= 3 && strings.EqualFold(s[n-3:], "usd") {
		s = s[:n-3]
	}
	return strings.TrimSpace(s)
}

// thousandsGrouped reports whether sep splits s into a 1-3 digit head with a
// non-zero lead followed by 3-digit groups.
func thousandsGrouped(s string, sep rune) bool {
	parts := strings.Split(s, string(sep))
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[0]) > 3 || parts[0][0] == '0' {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 || !isDigits(p) {
			return false
		}
	}
	return isDigits(parts[0])
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
