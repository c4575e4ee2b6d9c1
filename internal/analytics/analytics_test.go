package analytics

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeRows() *table.Table {
	return table.New("tx.csv", []string{"date", "address", "value"}, [][]string{
		{"2024-01-01", "0xA", "100"},
		{"2024-01-01", "0xB", "50"},
		{"2024-01-02", "0xA", "25"},
	})
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// synthetic builds a deterministic multi-week table.
func synthetic() *table.Table {
	var rows [][]string
	start := day("2024-01-01")
	for i := 0; i < 60; i++ {
		d := start.AddDate(0, 0, i%37)
		addr := fmt.Sprintf("0x%040d", i%9)
		val := fmt.Sprintf("%d.%02d", (i*37)%500, i%100)
		rows = append(rows, []string{d.Format("2006-01-02 15:04:05"), addr, val})
	}
	return table.New("synthetic.csv", []string{"block_time", "trader", "amount_usd"}, rows)
}

func TestComputeKPIsScenario(t *testing.T) {
	k, err := ComputeKPIs(threeRows(), "date", "address", "value")
	require.NoError(t, err)
	assert.Equal(t, 175.0, k.TotalVolume)
	assert.Equal(t, "175", k.TotalVolumeExact.String())
	assert.Equal(t, 3, k.TransactionCount)
	assert.Equal(t, 2, k.UniqueAddresses)
	assert.Equal(t, uint64(2), k.ApproxUniqueAddresses)
	assert.Equal(t, 2, k.ActiveDays)
	assert.Equal(t, 2, k.DateRangeDays)
	assert.InDelta(t, 58.33, k.AvgTransaction, 0.005)
	assert.InDelta(t, 87.5, k.AvgDailyVolume, 1e-9)
	assert.InDelta(t, 1.5, k.AvgDailyTransactions, 1e-9)
	assert.Equal(t, day("2024-01-01"), k.FirstDate)
	assert.Equal(t, day("2024-01-02"), k.LastDate)
	assert.Nil(t, k.Warning)
}

func TestTopEntitiesScenario(t *testing.T) {
	r, err := BuildTopEntities(threeRows(), "address", "value", 1)
	require.NoError(t, err)
	require.Len(t, r.Entries, 1)
	e := r.Entries[0]
	assert.Equal(t, "0xA", e.Address)
	assert.Equal(t, 125.0, e.TotalValue)
	assert.Equal(t, 2, e.TxCount)
	assert.InDelta(t, 125.0/175.0, e.Share, 1e-9)
}

func TestTopEntitiesClampAndTies(t *testing.T) {
	tb := table.New("t.csv", []string{"addr", "v"}, [][]string{
		{"0xC", "10"}, {"0xA", "10"}, {"0xB", "30"}, {"0xA", "0"},
	})
	r, err := BuildTopEntities(tb, "addr", "v", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, r.N)
	assert.Equal(t, "0xB", r.Entries[0].Address)

	r, err = BuildTopEntities(tb, "addr", "v", 99)
	require.NoError(t, err)
	require.Len(t, r.Entries, 3)
	assert.Equal(t, []string{"0xB", "0xC", "0xA"}, []string{r.Entries[0].Address, r.Entries[1].Address, r.Entries[2].Address})
}

func TestTopEntitiesPrefixProperty(t *testing.T) {
	tb := synthetic()
	full, err := BuildTopEntities(tb, "trader", "amount_usd", 100)
	require.NoError(t, err)
	for n1 := 1; n1 <= full.DistinctAddresses; n1++ {
		for n2 := n1; n2 <= full.DistinctAddresses; n2++ {
			a, _ := BuildTopEntities(tb, "trader", "amount_usd", n1)
			b, _ := BuildTopEntities(tb, "trader", "amount_usd", n2)
			assert.Equal(t, a.Entries, b.Entries[:n1], "n1=%d n2=%d", n1, n2)
		}
	}
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0xA", ShortAddress("0xA"))
	assert.Equal(t, "0x1234...abcd", ShortAddress("0x1234567890abcd"))
}

func TestTimeSeriesSumMatchesKPIs(t *testing.T) {
	for _, tb := range []*table.Table{threeRows(), synthetic()} {
		cols := tb.Columns()
		k, err := ComputeKPIs(tb, cols[0], cols[1], cols[2])
		require.NoError(t, err)
		ts, err := BuildTimeSeries(tb, cols[0], cols[2], DefaultTimeSeriesOptions())
		require.NoError(t, err)
		sum := 0.0
		for _, p := range ts.Points {
			sum += p.Volume
		}
		assert.InDelta(t, k.TotalVolume, sum, 1e-6, tb.Name())
		assert.Len(t, ts.VolumeMA, len(ts.Points))
		assert.Len(t, ts.CountMA, len(ts.Points))
		require.Len(t, ts.Cumulative, len(ts.Points))
		for i := 1; i < len(ts.Cumulative); i++ {
			assert.GreaterOrEqual(t, ts.Cumulative[i], ts.Cumulative[i-1])
		}
		assert.InDelta(t, k.TotalVolume, ts.Cumulative[len(ts.Cumulative)-1], 1e-6)
	}
}

func TestTimeSeriesScenario(t *testing.T) {
	ts, err := BuildTimeSeries(threeRows(), "date", "value", DefaultTimeSeriesOptions())
	require.NoError(t, err)
	require.Len(t, ts.Points, 2)
	assert.Equal(t, Point{Date: day("2024-01-01"), Volume: 150, Count: 2}, ts.Points[0])
	assert.Equal(t, Point{Date: day("2024-01-02"), Volume: 25, Count: 1}, ts.Points[1])
	assert.Equal(t, []float64{150, 87.5}, ts.VolumeMA)
	assert.Equal(t, []float64{2, 1.5}, ts.CountMA)
	assert.Equal(t, []float64{150, 175}, ts.Cumulative)
}

func TestTimeSeriesFillGapsAndWeek(t *testing.T) {
	tb := table.New("g.csv", []string{"date", "value"}, [][]string{
		{"2024-01-01", "1"}, {"2024-01-04", "2"}, {"2024-01-08", "4"},
	})
	ts, err := BuildTimeSeries(tb, "date", "value", TimeSeriesOptions{FillGaps: true})
	require.NoError(t, err)
	require.Len(t, ts.Points, 8)
	assert.Equal(t, 0.0, ts.Points[1].Volume)
	assert.Equal(t, 0, ts.Points[1].Count)
	assert.Nil(t, ts.VolumeMA)
	assert.Nil(t, ts.Cumulative)

	wk, err := BuildTimeSeries(tb, "date", "value", TimeSeriesOptions{Granularity: Week})
	require.NoError(t, err)
	require.Len(t, wk.Points, 2)
	assert.Equal(t, day("2024-01-01"), wk.Points[0].Date)
	assert.Equal(t, 3.0, wk.Points[0].Volume)
	assert.Equal(t, day("2024-01-08"), wk.Points[1].Date)
}

func TestMovingAverageShortWindowAtStart(t *testing.T) {
	got := MovingAverage([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 7)
	require.Len(t, got, 9)
	assert.Equal(t, 1.0, got[0])
	assert.Equal(t, 1.5, got[1])
	assert.Equal(t, 4.0, got[6])
	assert.Equal(t, 5.0, got[7])
	assert.Equal(t, 6.0, got[8])
	assert.Empty(t, MovingAverage(nil, 7))
}

func TestCohortRetention(t *testing.T) {
	// Week of 2024-01-01: A, B. Week of 2024-01-08: A, C. Week of 2024-01-15: B.
	tb := table.New("c.csv", []string{"date", "address"}, [][]string{
		{"2024-01-01", "A"},
		{"2024-01-03", "B"},
		{"2024-01-09", "A"},
		{"2024-01-10", "C"},
		{"2024-01-16", "B"},
		{"N/A", "D"},
		{"2024-01-16", ""},
	})
	m, err := BuildCohortRetention(tb, "date", "address", Week)
	require.NoError(t, err)
	assert.Equal(t, 2, m.ExcludedRows)
	assert.Equal(t, 2, m.MaxOffset)
	require.Len(t, m.Cohorts, 2)

	c0 := m.Cohorts[0]
	assert.Equal(t, day("2024-01-01"), c0.Start)
	assert.Equal(t, 2, c0.Size)
	assert.Equal(t, []int{2, 1, 1}, c0.Active)
	assert.Equal(t, []float64{1, 0.5, 0.5}, c0.Retention)

	c1 := m.Cohorts[1]
	assert.Equal(t, day("2024-01-08"), c1.Start)
	assert.Equal(t, 1, c1.Size)
	assert.Equal(t, []int{1, 0}, c1.Active)
	assert.Len(t, c1.Retention, 2)
}

func TestCohortOffsetZeroIsOne(t *testing.T) {
	for _, p := range []Period{Day, Week, Month} {
		m, err := BuildCohortRetention(synthetic(), "block_time", "trader", p)
		require.NoError(t, err)
		require.NotEmpty(t, m.Cohorts)
		for i, c := range m.Cohorts {
			assert.Equal(t, 1.0, c.Retention[0], "period %s cohort %d", p, i)
			assert.Positive(t, c.Size)
			if i > 0 {
				assert.True(t, m.Cohorts[i-1].Start.Before(c.Start))
			}
		}
	}
}

func TestUnparseableDates(t *testing.T) {
	tb := table.New("na.csv", []string{"date", "address", "value"}, [][]string{
		{"N/A", "0xA", "1"}, {"N/A", "0xB", "2"}, {"N/A", "0xA", "3"}, {"N/A", "0xC", "4"},
	})
	k, err := ComputeKPIs(tb, "date", "address", "value")
	require.Error(t, err)
	var dq *DataQualityError
	require.ErrorAs(t, err, &dq)
	assert.Equal(t, tb.Len(), dq.Unparseable)
	assert.Equal(t, tb.Len(), dq.Total)
	assert.Equal(t, "date", dq.Role)
	assert.Equal(t, []string{"N/A"}, dq.Samples)
	assert.True(t, IsPartial(err))
	assert.Equal(t, 10.0, k.TotalVolume)
	assert.Equal(t, 0, k.ActiveDays)

	_, err = BuildTimeSeries(tb, "date", "value", DefaultTimeSeriesOptions())
	require.ErrorAs(t, err, &dq)
	assert.Equal(t, tb.Len(), dq.Unparseable)

	m, err := BuildCohortRetention(tb, "date", "address", Week)
	require.ErrorAs(t, err, &dq)
	assert.Empty(t, m.Cohorts)
	assert.NotNil(t, m.Warning)
}

func TestMultipleQualityErrorsJoin(t *testing.T) {
	tb := table.New("bad.csv", []string{"date", "address", "value"}, [][]string{
		{"x", "0xA", "abc"}, {"y", "0xB", ""}, {"2024-01-01", "0xC", "5"},
	})
	_, err := ComputeKPIs(tb, "date", "address", "value")
	issues := QualityIssues(err)
	require.Len(t, issues, 2)
	assert.Equal(t, "value", issues[1].Role)
	assert.Equal(t, 2, issues[1].Unparseable)
	assert.True(t, IsPartial(err))
}

func TestColumnResolution(t *testing.T) {
	tb := threeRows()
	_, err := ComputeKPIs(tb, "date", "", "value")
	var cre *ColumnResolutionError
	require.ErrorAs(t, err, &cre)
	assert.Equal(t, "address", cre.Role)
	assert.False(t, IsPartial(err))

	r, err := BuildTopEntities(tb, "address", "missing", 5)
	require.ErrorAs(t, err, &cre)
	assert.Equal(t, "missing", cre.Column)
	assert.Nil(t, r.Entries)
}

func TestEmptyTable(t *testing.T) {
	tb := table.New("empty.csv", []string{"date", "address", "value"}, nil)

	k, err := ComputeKPIs(tb, "date", "address", "value")
	require.NoError(t, err)
	assert.Zero(t, k.TransactionCount)
	assert.NotNil(t, k.Warning)

	ts, err := BuildTimeSeries(tb, "date", "value", DefaultTimeSeriesOptions())
	require.NoError(t, err)
	assert.Empty(t, ts.Points)
	assert.NotNil(t, ts.Points)
	assert.NotNil(t, ts.Warning)

	r, err := BuildTopEntities(tb, "address", "value", 10)
	require.NoError(t, err)
	assert.Empty(t, r.Entries)
	assert.NotNil(t, r.Warning)

	m, err := BuildCohortRetention(tb, "date", "address", Week)
	require.NoError(t, err)
	assert.Empty(t, m.Cohorts)
	assert.NotNil(t, m.Warning)

	h, err := BuildHistogram(tb, "value", HistogramOptions{})
	require.NoError(t, err)
	assert.Empty(t, h.Bins)

	// Column resolution is not enforced on an empty table.
	_, err = ComputeKPIs(tb, "", "", "")
	require.NoError(t, err)
}

func TestHistogram(t *testing.T) {
	tb := table.New("h.csv", []string{"v"}, [][]string{{"0"}, {"10"}, {"5"}, {"10"}, {"x"}})
	h, err := BuildHistogram(tb, "v", HistogramOptions{Bins: 2})
	require.NoError(t, err)
	require.Len(t, h.Bins, 2)
	assert.Equal(t, 1, h.Bins[0].Count)
	assert.Equal(t, 3, h.Bins[1].Count)
	assert.Equal(t, 1, h.Skipped)
	assert.Equal(t, 4, h.Count)

	lg, err := BuildHistogram(tb, "v", HistogramOptions{Bins: 4, Log10: true})
	require.NoError(t, err)
	assert.Equal(t, 2, lg.Skipped)
	assert.InDelta(t, math.Log10(5), lg.Min, 1e-12)
	assert.InDelta(t, 1.0, lg.Max, 1e-12)
}

func TestUniqueAddressesFallBackToSketch(t *testing.T) {
	rows := make([][]string, 0, 6000)
	for i := 0; i < 3000; i++ {
		addr := fmt.Sprintf("0x%040x", i)
		rows = append(rows, []string{"2024-01-01", addr, "1"}, []string{"2024-01-02", addr, "2"})
	}
	tb := table.New("big.csv", []string{"date", "address", "value"}, rows)

	k, err := ComputeKPIs(tb, "date", "address", "value")
	require.NoError(t, err)
	assert.Equal(t, 3000, k.UniqueAddresses)
	assert.False(t, k.UniqueAddressesEstimated)

	prev := exactUniqueLimit
	exactUniqueLimit = 100
	t.Cleanup(func() { exactUniqueLimit = prev })

	k, err = ComputeKPIs(tb, "date", "address", "value")
	require.NoError(t, err)
	assert.True(t, k.UniqueAddressesEstimated)
	assert.InDelta(t, 3000, k.UniqueAddresses, 3000*0.03)
	assert.Equal(t, int(k.ApproxUniqueAddresses), k.UniqueAddresses)
	assert.Equal(t, 6000, k.TransactionCount)
}

func TestHistogramClampsBins(t *testing.T) {
	tb := table.New("h.csv", []string{"v"}, [][]string{{"0"}, {"10"}, {"5"}})
	for _, bins := range []int{MaxBins + 1, 2000000000, 1 << 62} {
		h, err := BuildHistogram(tb, "v", HistogramOptions{Bins: bins})
		require.NoError(t, err)
		assert.Len(t, h.Bins, MaxBins)
		assert.Equal(t, 3, h.Count)
	}
}

func TestApplyWindow(t *testing.T) {
	tb := table.New("w.csv", []string{"date", "v"}, [][]string{
		{"2024-01-01", "1"}, {"2024-01-20", "2"}, {"2024-01-24", "3"}, {"2024-01-30", "4"}, {"bad", "5"},
	})
	all, err := ApplyWindow(tb, "date", Window{Preset: All})
	require.NoError(t, err)
	assert.Same(t, tb, all)

	last7, err := ApplyWindow(tb, "date", Window{Preset: Last7})
	require.NoError(t, err)
	assert.Equal(t, 2, last7.Len())
	assert.NotEqual(t, tb.ID(), last7.ID())
	assert.Equal(t, 5, tb.Len())

	w, err := ParseWindow("", "2024-01-02", "2024-01-24")
	require.NoError(t, err)
	assert.Equal(t, Custom, w.Preset)
	custom, err := ApplyWindow(tb, "date", w)
	require.NoError(t, err)
	assert.Equal(t, 2, custom.Len())
	assert.Equal(t, "custom:2024-01-02:2024-01-24", w.Key())

	_, err = ParseWindow("14d", "", "")
	assert.Error(t, err)
	_, err = ParseWindow("", "2024-02-01", "2024-01-01")
	assert.Error(t, err)
}

func TestFormatUSD(t *testing.T) {
	cases := map[float64]string{
		1_234_000_000: "$1.23B",
		4_560_000:     "$4.56M",
		7_890:         "$7.89K",
		12.345:        "$12.35",
		0:             "$0.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatUSD(in), "%v", in)
	}
	assert.Equal(t, "N/A", FormatUSD(math.NaN()))
}

func TestInputsNotMutated(t *testing.T) {
	tb := threeRows()
	snapshot := func() [][]string {
		var rows [][]string
		for i := 0; i < tb.Len(); i++ {
			rows = append(rows, tb.Row(i))
		}
		return rows
	}
	before := snapshot()
	_, _ = ComputeKPIs(tb, "date", "address", "value")
	_, _ = BuildTimeSeries(tb, "date", "value", DefaultTimeSeriesOptions())
	_, _ = BuildTopEntities(tb, "address", "value", 2)
	_, _ = BuildCohortRetention(tb, "date", "address", Week)
	assert.Equal(t, before, snapshot())
}
