package analysis

import (
	"fmt"
	"strings"
)

// Markdown renders a compact profile suitable for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", r.Name))
	}
	if r.Processed > 0 && r.Processed < r.Rows {
		b.WriteString(fmt.Sprintf("Rows: ~%d (processed %d)\n", r.Rows, r.Processed))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%, unique %d)", safeName(c.Name), c.Kind, c.NonNull, missPct, c.Unique))
		switch c.Kind {
		case KindNumeric:
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
		case KindCategorical:
			if len(c.TopValues) > 0 {
				b.WriteString(": top ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
			}
		case KindText:
			if len(c.ExampleTexts) > 0 {
				b.WriteString(": e.g., ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(ex))
				}
			}
		}
		b.WriteString("\n")
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range r.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}
