package session

import (
	"testing"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/classify"
	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenario() *table.Table {
	return table.New("tx.csv", []string{"date", "address", "value", "alt_value"}, [][]string{
		{"2024-01-01", "0xA", "100", "1"},
		{"2024-01-01", "0xB", "50", "2"},
		{"2024-01-02", "0xA", "25", "3"},
	})
}

var all = analytics.Window{Preset: analytics.All}

func TestNewClassifies(t *testing.T) {
	s := New(scenario(), Options{})
	assert.Equal(t, classify.Assignment{Date: "date", Address: "address", Value: "value"}, s.Roles())
	assert.Empty(t, s.Missing())
	assert.NotEmpty(t, s.ID())
}

func TestCacheHitEqualsRecompute(t *testing.T) {
	s := New(scenario(), Options{})
	first, err := s.TimeSeries(all, analytics.DefaultTimeSeriesOptions())
	require.NoError(t, err)
	second, err := s.TimeSeries(all, analytics.DefaultTimeSeriesOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	hits, misses := s.CacheStats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	fresh, err := analytics.BuildTimeSeries(s.Table(), "date", "value", analytics.DefaultTimeSeriesOptions())
	require.NoError(t, err)
	assert.Equal(t, fresh, second)
}

func TestCachedResultsAreIsolated(t *testing.T) {
	s := New(scenario(), Options{})
	r1, err := s.TopEntities(all, 2)
	require.NoError(t, err)
	r1.Entries[0].Address = "tampered"
	r1.Entries = append(r1.Entries, analytics.Entity{Address: "extra"})

	r2, err := s.TopEntities(all, 2)
	require.NoError(t, err)
	require.Len(t, r2.Entries, 2)
	assert.Equal(t, "0xA", r2.Entries[0].Address)

	c1, err := s.Cohorts(all, analytics.Week)
	require.NoError(t, err)
	c1.Cohorts[0].Retention[0] = 42
	c2, err := s.Cohorts(all, analytics.Week)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c2.Cohorts[0].Retention[0])
}

func TestSetRolesInvalidates(t *testing.T) {
	s := New(scenario(), Options{})
	k, err := s.KPIs(all)
	require.NoError(t, err)
	assert.Equal(t, 175.0, k.TotalVolume)

	require.NoError(t, s.SetRoles(classify.Assignment{Value: "alt_value"}))
	k, err = s.KPIs(all)
	require.NoError(t, err)
	assert.Equal(t, 6.0, k.TotalVolume)
	_, misses := s.CacheStats()
	assert.Equal(t, 1, misses)

	err = s.SetRoles(classify.Assignment{Address: "nope"})
	var cre *analytics.ColumnResolutionError
	require.ErrorAs(t, err, &cre)
	assert.Equal(t, "alt_value", s.Roles().Value)
}

func TestReplaceReclassifies(t *testing.T) {
	s := New(scenario(), Options{})
	_, _ = s.KPIs(all)
	s.Replace(table.New("other.csv", []string{"block_time", "wallet", "amount_usd"}, [][]string{{"2024-02-01", "0x1", "5"}}))
	assert.Equal(t, classify.Assignment{Date: "block_time", Address: "wallet", Value: "amount_usd"}, s.Roles())
	k, err := s.KPIs(all)
	require.NoError(t, err)
	assert.Equal(t, 5.0, k.TotalVolume)
}

func TestReplaceDropsStaleOverrides(t *testing.T) {
	s := New(scenario(), Options{Roles: classify.Assignment{Value: "alt_value", Address: "address"}})
	assert.Equal(t, "alt_value", s.Roles().Value)

	s.Replace(table.New("other.csv", []string{"block_time", "address", "amount_usd"}, [][]string{
		{"2024-02-01", "0x1", "5"}, {"2024-02-02", "0x2", "7"},
	}))
	assert.Equal(t, classify.Assignment{Date: "block_time", Address: "address", Value: "amount_usd"}, s.Roles())
	k, err := s.KPIs(all)
	require.NoError(t, err)
	assert.Equal(t, 12.0, k.TotalVolume)
}

func TestDashboardScenario(t *testing.T) {
	s := New(scenario(), Options{TopN: 1})
	d, err := s.Dashboard(Params{})
	require.NoError(t, err)
	assert.False(t, d.Partial())
	assert.Equal(t, 3, d.Rows)
	assert.Equal(t, 3, d.WindowRows)
	assert.Equal(t, 175.0, d.KPIs.TotalVolume)
	require.Len(t, d.Top.Entries, 1)
	assert.Equal(t, "0xA", d.Top.Entries[0].Address)
	assert.Len(t, d.TimeSeries.Points, 2)
	assert.Len(t, d.TimeSeries.VolumeMA, 2)
	assert.Len(t, d.TimeSeries.Cumulative, 2)
	assert.True(t, d.Params.TimeSeries.MovingAverage)
	assert.Equal(t, analytics.DefaultMAWindow, d.Params.TimeSeries.Window)
	assert.Equal(t, analytics.Week, d.Params.Period)
	assert.Equal(t, analytics.DefaultBins, d.Params.Histogram.Bins)
	assert.Empty(t, d.Warnings)
}

func TestDashboardExplicitSeriesOptions(t *testing.T) {
	s := New(scenario(), Options{})
	d, err := s.Dashboard(Params{TimeSeries: analytics.TimeSeriesOptions{Granularity: analytics.Day}})
	require.NoError(t, err)
	assert.Len(t, d.TimeSeries.Points, 2)
	assert.Empty(t, d.TimeSeries.VolumeMA)
	assert.Empty(t, d.TimeSeries.Cumulative)
}

func TestDashboardPartialAndMissingRoles(t *testing.T) {
	tb := table.New("na.csv", []string{"date", "address", "value"}, [][]string{
		{"N/A", "0xA", "1"}, {"N/A", "0xB", "2"},
	})
	s := New(tb, Options{Roles: classify.Assignment{Date: "date"}})
	d, err := s.Dashboard(Params{})
	require.Error(t, err)
	assert.True(t, analytics.IsPartial(err))
	require.NotNil(t, d)
	assert.True(t, d.Partial())
	require.Len(t, d.Issues, 1)
	assert.Equal(t, 2, d.Issues[0].Unparseable)
	assert.NotEmpty(t, d.Warnings)

	bare := New(table.New("x.csv", []string{"a", "b"}, [][]string{{"x", "y"}}), Options{})
	d, err = bare.Dashboard(Params{})
	var cre *analytics.ColumnResolutionError
	require.ErrorAs(t, err, &cre)
	assert.Nil(t, d)
}

func TestDashboardWindow(t *testing.T) {
	s := New(scenario(), Options{})
	w, err := analytics.ParseWindow("", "2024-01-02", "")
	require.NoError(t, err)
	d, err := s.Dashboard(Params{Window: w})
	require.NoError(t, err)
	assert.Equal(t, 1, d.WindowRows)
	assert.Equal(t, 25.0, d.KPIs.TotalVolume)
}

func TestEmptyTableDashboard(t *testing.T) {
	s := New(table.New("empty.csv", []string{"date", "address", "value"}, nil), Options{})
	d, err := s.Dashboard(Params{})
	require.NoError(t, err)
	assert.Empty(t, d.TimeSeries.Points)
	assert.Empty(t, d.Top.Entries)
	assert.Empty(t, d.Cohorts.Cohorts)
	assert.Len(t, d.Warnings, 5)
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(time.Minute, Options{})
	s := m.Create(scenario())
	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, m.Sweep())
	_, ok = m.Get(s.ID())
	assert.False(t, ok)

	s2 := m.Create(scenario())
	assert.True(t, m.Delete(s2.ID()))
	assert.False(t, m.Delete(s2.ID()))
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(0, Options{})
	a := m.Create(scenario())
	b := m.Create(scenario())
	require.NoError(t, a.SetRoles(classify.Assignment{Value: "alt_value"}))
	ka, _ := a.KPIs(all)
	kb, _ := b.KPIs(all)
	assert.Equal(t, 6.0, ka.TotalVolume)
	assert.Equal(t, 175.0, kb.TotalVolume)
	assert.Equal(t, 0, m.Sweep())
}
