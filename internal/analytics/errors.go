package analytics

import (
	"errors"
	"fmt"
	"strings"
)

// maxSamples bounds the offending values kept on a DataQualityError.
const maxSamples = 5

// ColumnResolutionError reports a role with no usable column. No result is
// computed when it is returned.
type ColumnResolutionError struct {
	Role   string
	Column string
}

func (e *ColumnResolutionError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("no column assigned for role %q", e.Role)
	}
	return fmt.Sprintf("column %q for role %q not found", e.Column, e.Role)
}

// DataQualityError reports a column where most rows fail coercion. It is
// returned alongside a result computed over the coercible rows only.
type DataQualityError struct {
	Column      string   `json:"column"`
	Role        string   `json:"role"`
	Unparseable int      `json:"unparseable"`
	Total       int      `json:"total"`
	Samples     []string `json:"samples,omitempty"`
}

func (e *DataQualityError) Error() string {
	msg := fmt.Sprintf("column %q (%s): %d of %d rows could not be parsed", e.Column, e.Role, e.Unparseable, e.Total)
	if len(e.Samples) > 0 {
		quoted := make([]string, len(e.Samples))
		for i, s := range e.Samples {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		msg += " (e.g. " + strings.Join(quoted, ", ") + ")"
	}
	return msg
}

// EmptyResultWarning marks a derived result with no rows. It is attached to
// results and never returned as an error.
type EmptyResultWarning struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
}

func (w *EmptyResultWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Component, w.Reason)
}

func emptyWarning(component, reason string) *EmptyResultWarning {
	return &EmptyResultWarning{Component: component, Reason: reason}
}

// IsPartial reports whether err only carries data quality problems, meaning
// the accompanying result is usable but computed over a subset of rows.
func IsPartial(err error) bool {
	if err == nil {
		return false
	}
	var cre *ColumnResolutionError
	if errors.As(err, &cre) {
		return false
	}
	return len(QualityIssues(err)) > 0
}

// QualityIssues flattens err (including errors.Join trees) into its
// DataQualityErrors.
func QualityIssues(err error) []*DataQualityError {
	if err == nil {
		return nil
	}
	if dq, ok := err.(*DataQualityError); ok {
		return []*DataQualityError{dq}
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		var out []*DataQualityError
		for _, e := range u.Unwrap() {
			out = append(out, QualityIssues(e)...)
		}
		return out
	case interface{ Unwrap() error }:
		return QualityIssues(u.Unwrap())
	}
	return nil
}

// joinQuality combines non-nil quality errors.
func joinQuality(errs ...*DataQualityError) error {
	var out []error
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	if len(out) == 1 {
		return out[0]
	}
	return errors.Join(out...)
}
