package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/labstack/gommon/log"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data     any        `json:"data,omitempty"`
	Warnings []string   `json:"warnings,omitempty"`
	Partial  bool       `json:"partial"`
	Error    *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string                        `json:"kind"`
	Message string                        `json:"message"`
	Role    string                        `json:"role,omitempty"`
	Column  string                        `json:"column,omitempty"`
	Issues  []*analytics.DataQualityError `json:"issues,omitempty"`
}

var errNotFound = errors.New("session not found")

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("[Server] Encode response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, data any, warnings ...string) {
	writeJSON(w, http.StatusOK, Envelope{Data: data, Warnings: warnings})
}

func writeMessage(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, Envelope{Error: &ErrorBody{Kind: kind, Message: msg}})
}

// writeResult maps an aggregator outcome to a response. Data quality errors
// still carry the partial result.
func writeResult(w http.ResponseWriter, data any, err error, warnings ...string) {
	if err == nil {
		writeOK(w, data, warnings...)
		return
	}
	if cre := columnError(err); cre != nil {
		writeJSON(w, http.StatusUnprocessableEntity, Envelope{Error: &ErrorBody{
			Kind: "column_resolution", Message: cre.Error(), Role: cre.Role, Column: cre.Column,
		}})
		return
	}
	if issues := analytics.QualityIssues(err); len(issues) > 0 {
		writeJSON(w, http.StatusOK, Envelope{Data: data, Warnings: warnings, Partial: true, Error: &ErrorBody{
			Kind: "data_quality", Message: err.Error(), Issues: issues,
		}})
		return
	}
	if errors.Is(err, errNotFound) {
		writeMessage(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	log.Errorf("[Server] %v", err)
	writeMessage(w, http.StatusInternalServerError, "internal", err.Error())
}

func warningsOf(ws ...*analytics.EmptyResultWarning) []string {
	var out []string
	for _, w := range ws {
		if w != nil {
			out = append(out, w.String())
		}
	}
	return out
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Errorf("[Server] Handler panic on %s: %v\n%s", r.URL.Path, rec, debug.Stack())
				writeMessage(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func columnError(err error) *analytics.ColumnResolutionError {
	var cre *analytics.ColumnResolutionError
	if errors.As(err, &cre) {
		return cre
	}
	return nil
}
