package analytics

import (
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

// Role names used in errors.
const (
	roleDate    = "date"
	roleAddress = "address"
	roleValue   = "value"
)

// resolve returns the index of col, or a ColumnResolutionError.
func resolve(t *table.Table, role, col string) (int, error) {
	if col == "" {
		return -1, &ColumnResolutionError{Role: role}
	}
	idx := t.Index(col)
	if idx < 0 {
		return -1, &ColumnResolutionError{Role: role, Column: col}
	}
	return idx, nil
}

// coercion records which cells of a column parsed.
type coercion struct {
	ok          []bool
	unparseable int
	samples     []string
}

func (c *coercion) fail(v string) {
	c.unparseable++
	if len(c.samples) >= maxSamples {
		return
	}
	for _, s := range c.samples {
		if s == v {
			return
		}
	}
	c.samples = append(c.samples, v)
}

// quality returns a DataQualityError when more than half the rows failed.
func (c *coercion) quality(col, role string) *DataQualityError {
	total := len(c.ok)
	if total == 0 || c.unparseable*2 <= total {
		return nil
	}
	return &DataQualityError{
		Column:      col,
		Role:        role,
		Unparseable: c.unparseable,
		Total:       total,
		Samples:     append([]string(nil), c.samples...),
	}
}

func numbers(t *table.Table, idx int) ([]float64, *coercion) {
	n := t.Len()
	vals := make([]float64, n)
	c := &coercion{ok: make([]bool, n)}
	for i := 0; i < n; i++ {
		v := t.Cell(i, idx)
		x, ok := table.ParseNumber(v)
		if !ok {
			c.fail(v)
			continue
		}
		vals[i] = x
		c.ok[i] = true
	}
	return vals, c
}

func times(t *table.Table, idx int) ([]time.Time, *coercion) {
	n := t.Len()
	vals := make([]time.Time, n)
	c := &coercion{ok: make([]bool, n)}
	for i := 0; i < n; i++ {
		v := t.Cell(i, idx)
		ts, ok := table.ParseTime(v)
		if !ok {
			c.fail(v)
			continue
		}
		vals[i] = ts
		c.ok[i] = true
	}
	return vals, c
}

func addresses(t *table.Table, idx int) ([]string, *coercion) {
	n := t.Len()
	vals := make([]string, n)
	c := &coercion{ok: make([]bool, n)}
	for i := 0; i < n; i++ {
		v := t.Cell(i, idx)
		if v == "" {
			c.fail(v)
			continue
		}
		vals[i] = v
		c.ok[i] = true
	}
	return vals, c
}
