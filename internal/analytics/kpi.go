// Package analytics turns a transaction table into KPI cards, time series,
// rankings, cohort retention matrices and value histograms. Every function
// is pure: inputs are never mutated and equal inputs give equal outputs.
package analytics

import (
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/axiomhq/hyperloglog"
	"github.com/shopspring/decimal"
)

// exactUniqueLimit is the number of distinct addresses counted exactly.
// Past it the exact set is dropped and the HyperLogLog estimate is used.
var exactUniqueLimit = 1 << 20

// KPISet holds the headline metrics of a table.
type KPISet struct {
	TotalVolume           float64         `json:"total_volume"`
	TotalVolumeExact      decimal.Decimal `json:"total_volume_exact"`
	TransactionCount      int             `json:"transaction_count"`
	DroppedRows           int             `json:"dropped_rows"`
	UniqueAddresses       int             `json:"unique_addresses"`
	ApproxUniqueAddresses uint64          `json:"approx_unique_addresses"`

	// UniqueAddressesEstimated is set when the distinct count passed
	// exactUniqueLimit and UniqueAddresses holds the sketch estimate.
	UniqueAddressesEstimated bool `json:"unique_addresses_estimated,omitempty"`

	ActiveDays           int       `json:"active_days"`
	FirstDate            time.Time `json:"first_date"`
	LastDate             time.Time `json:"last_date"`
	DateRangeDays        int       `json:"date_range_days"`
	AvgTransaction       float64   `json:"avg_transaction"`
	AvgDailyVolume       float64   `json:"avg_daily_volume"`
	AvgDailyTransactions float64   `json:"avg_daily_transactions"`

	Warning *EmptyResultWarning `json:"warning,omitempty"`
}

// ComputeKPIs summarizes t using the three resolved columns.
//
// Values that do not coerce are excluded from totals and counted in
// DroppedRows. When more than half of the date or value cells fail to
// coerce a DataQualityError is returned with the partial KPISet.
func ComputeKPIs(t *table.Table, dateCol, addressCol, valueCol string) (KPISet, error) {
	if t.Len() == 0 {
		return KPISet{TotalVolumeExact: decimal.Zero, Warning: emptyWarning("kpis", "table has no rows")}, nil
	}
	di, err := resolve(t, roleDate, dateCol)
	if err != nil {
		return KPISet{}, err
	}
	ai, err := resolve(t, roleAddress, addressCol)
	if err != nil {
		return KPISet{}, err
	}
	vi, err := resolve(t, roleValue, valueCol)
	if err != nil {
		return KPISet{}, err
	}

	vals, vc := numbers(t, vi)
	dates, dc := times(t, di)
	addrs, _ := addresses(t, ai)

	k := KPISet{}
	total := decimal.Zero
	for i, ok := range vc.ok {
		if !ok {
			k.DroppedRows++
			continue
		}
		total = total.Add(decimal.NewFromFloat(vals[i]))
		k.TransactionCount++
	}
	k.TotalVolumeExact = total
	k.TotalVolume = total.InexactFloat64()

	sketch := hyperloglog.New16()
	seen := make(map[string]struct{})
	for _, a := range addrs {
		if a == "" {
			continue
		}
		sketch.Insert([]byte(a))
		if seen == nil {
			continue
		}
		seen[a] = struct{}{}
		if len(seen) > exactUniqueLimit {
			seen = nil
		}
	}
	k.ApproxUniqueAddresses = sketch.Estimate()
	if seen != nil {
		k.UniqueAddresses = len(seen)
	} else {
		k.UniqueAddresses = int(k.ApproxUniqueAddresses)
		k.UniqueAddressesEstimated = true
	}

	days := make(map[time.Time]struct{})
	for i, ok := range dc.ok {
		if !ok {
			continue
		}
		d := table.Day(dates[i])
		days[d] = struct{}{}
		if k.FirstDate.IsZero() || d.Before(k.FirstDate) {
			k.FirstDate = d
		}
		if d.After(k.LastDate) {
			k.LastDate = d
		}
	}
	k.ActiveDays = len(days)
	if k.ActiveDays > 0 {
		k.DateRangeDays = daysBetween(k.FirstDate, k.LastDate) + 1
	}

	if k.TransactionCount > 0 {
		k.AvgTransaction = total.Div(decimal.NewFromInt(int64(k.TransactionCount))).InexactFloat64()
	} else {
		k.Warning = emptyWarning("kpis", "no rows with a numeric value")
	}
	if k.ActiveDays > 0 {
		ad := decimal.NewFromInt(int64(k.ActiveDays))
		k.AvgDailyVolume = total.Div(ad).InexactFloat64()
		k.AvgDailyTransactions = float64(k.TransactionCount) / float64(k.ActiveDays)
	}
	return k, joinQuality(dc.quality(dateCol, roleDate), vc.quality(valueCol, roleValue))
}
