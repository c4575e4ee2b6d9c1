package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	"github.com/KaramelBytes/chainpulse/internal/classify"
	"github.com/KaramelBytes/chainpulse/internal/dune"
	"github.com/KaramelBytes/chainpulse/internal/ingest"
	"github.com/KaramelBytes/chainpulse/internal/render"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/gorilla/mux"
	"github.com/labstack/gommon/log"
)

// SessionInfo describes a session and its column roles.
type SessionInfo struct {
	ID        string              `json:"id"`
	Source    string              `json:"source"`
	Rows      int                 `json:"rows"`
	Columns   []string            `json:"columns"`
	Roles     classify.Assignment `json:"roles"`
	MatchedBy map[string]string   `json:"matched_by,omitempty"`
	Protocol  string              `json:"protocol"`
	Missing   []string            `json:"missing"`
}

func infoOf(s *session.Session) SessionInfo {
	t := s.Table()
	res := s.Classification()
	info := SessionInfo{
		ID:       s.ID(),
		Source:   t.Name(),
		Rows:     t.Len(),
		Columns:  t.Columns(),
		Roles:    s.Roles(),
		Protocol: res.Protocol.Protocol,
		Missing:  []string{},
	}
	if len(res.MatchedBy) > 0 {
		info.MatchedBy = make(map[string]string, len(res.MatchedBy))
		for r, rule := range res.MatchedBy {
			info.MatchedBy[string(r)] = rule
		}
	}
	for _, r := range s.Missing() {
		info.Missing = append(info.Missing, string(r))
	}
	return info
}

func (a *App) session(r *http.Request) (*session.Session, error) {
	id := mux.Vars(r)["id"]
	s, ok := a.Sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotFound, id)
	}
	return s, nil
}

// readUpload parses a multipart "file" field or a raw body named by ?name=.
// It writes the error response itself and returns nil on failure.
func (a *App) readUpload(w http.ResponseWriter, r *http.Request) *table.Table {
	var (
		t   *table.Table
		err error
	)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			writeMessage(w, http.StatusBadRequest, "bad_request", "invalid multipart body: "+err.Error())
			return nil
		}
		file, hdr, ferr := r.FormFile("file")
		if ferr != nil {
			writeMessage(w, http.StatusBadRequest, "bad_request", "missing form file \"file\"")
			return nil
		}
		defer file.Close()
		t, err = ingest.Read(file, hdr.Filename, a.Ingest)
	} else {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload.csv"
		}
		t, err = ingest.Read(http.MaxBytesReader(w, r.Body, maxUpload), name, a.Ingest)
	}
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ingest.ErrUnsupported) {
			status = http.StatusUnsupportedMediaType
		}
		writeMessage(w, status, "ingest", err.Error())
		return nil
	}
	return t
}

func (a *App) createSession(w http.ResponseWriter, r *http.Request) {
	t := a.readUpload(w, r)
	if t == nil {
		return
	}
	s := a.Sessions.Create(t)
	log.Infof("[Server] Created session %s from %s (%d rows)", s.ID(), t.Name(), t.Len())
	writeJSON(w, http.StatusCreated, Envelope{Data: infoOf(s)})
}

// replaceTable swaps the session's data for a new upload, keeping its id.
func (a *App) replaceTable(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		writeResult(w, nil, err)
		return
	}
	t := a.readUpload(w, r)
	if t == nil {
		return
	}
	s.Replace(t)
	log.Infof("[Server] Replaced table of session %s with %s (%d rows)", s.ID(), t.Name(), t.Len())
	writeOK(w, infoOf(s))
}

// DuneRequest creates a session from a Dune query. QueryID is a numeric id or
// a preset key, as a JSON number or string.
type DuneRequest struct {
	QueryID json.RawMessage   `json:"query_id"`
	Params  map[string]string `json:"params"`
	Latest  bool              `json:"latest"`
}

func (a *App) createDuneSession(w http.ResponseWriter, r *http.Request) {
	if a.Dune == nil {
		writeMessage(w, http.StatusServiceUnavailable, "unavailable", "dune client not configured (set dune_api_key)")
		return
	}
	var req DuneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	ref := strings.Trim(string(bytes.TrimSpace(req.QueryID)), `"`)
	id, err := dune.ResolveQueryID(ref)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var t *table.Table
	if req.Latest {
		t, err = a.Dune.LatestResult(r.Context(), id)
	} else {
		t, err = a.Dune.RunQuery(r.Context(), id, req.Params)
	}
	if err != nil {
		writeMessage(w, duneStatus(err), "dune", err.Error())
		return
	}
	s := a.Sessions.Create(t)
	log.Infof("[Server] Created session %s from dune query %d (%d rows)", s.ID(), id, t.Len())
	writeJSON(w, http.StatusCreated, Envelope{Data: infoOf(s)})
}

func duneStatus(err error) int {
	var (
		auth  *dune.AuthError
		nf    *dune.NotFoundError
		bad   *dune.BadRequestError
		rl    *dune.RateLimitError
		quota *dune.QuotaExceededError
	)
	switch {
	case errors.As(err, &auth), errors.As(err, &quota):
		return http.StatusBadGateway
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &rl):
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

func (a *App) listPresets(w http.ResponseWriter, r *http.Request) {
	writeOK(w, dune.Presets())
}

func (a *App) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		writeResult(w, nil, err)
		return
	}
	writeOK(w, infoOf(s))
}

func (a *App) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !a.Sessions.Delete(id) {
		writeResult(w, nil, fmt.Errorf("%w: %s", errNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) setRoles(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		writeResult(w, nil, err)
		return
	}
	var roles classify.Assignment
	if err := json.NewDecoder(r.Body).Decode(&roles); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if err := s.SetRoles(roles); err != nil {
		writeResult(w, nil, err)
		return
	}
	writeOK(w, infoOf(s))
}

// withParams resolves the session and request parameters, then calls fn.
func (a *App) withParams(w http.ResponseWriter, r *http.Request, fn func(*session.Session, session.Params)) {
	s, err := a.session(r)
	if err != nil {
		writeResult(w, nil, err)
		return
	}
	p, err := parseParams(r.URL.Query(), s.DefaultParams())
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	fn(s, p)
}

func (a *App) getKPIs(w http.ResponseWriter, r *http.Request) {
	a.withParams(w, r, func(s *session.Session, p session.Params) {
		k, err := s.KPIs(p.Window)
		writeResult(w, k, err, warningsOf(k.Warning)...)
	})
}

func (a *App) getTimeSeries(w http.ResponseWriter, r *http.Request) {
	a.withParams(w, r, func(s *session.Session, p session.Params) {
		ts, err := s.TimeSeries(p.Window, p.TimeSeries)
		writeResult(w, ts, err, warningsOf(ts.Warning)...)
	})
}

func (a *App) getTop(w http.ResponseWriter, r *http.Request) {
	a.withParams(w, r, func(s *session.Session, p session.Params) {
		rk, err := s.TopEntities(p.Window, p.TopN)
		writeResult(w, rk, err, warningsOf(rk.Warning)...)
	})
}

func (a *App) getCohorts(w http.ResponseWriter, r *http.Request) {
	a.withParams(w, r, func(s *session.Session, p session.Params) {
		cm, err := s.Cohorts(p.Window, p.Period)
		writeResult(w, cm, err, warningsOf(cm.Warning)...)
	})
}

func (a *App) getHistogram(w http.ResponseWriter, r *http.Request) {
	a.withParams(w, r, func(s *session.Session, p session.Params) {
		h, err := s.Histogram(p.Window, p.Histogram)
		writeResult(w, h, err, warningsOf(h.Warning)...)
	})
}

func (a *App) getDashboard(w http.ResponseWriter, r *http.Request) {
	a.withParams(w, r, func(s *session.Session, p session.Params) {
		d, err := s.Dashboard(p)
		if d == nil {
			writeResult(w, nil, err)
			return
		}
		writeResult(w, d, err, d.Warnings...)
	})
}

func (a *App) getDashboardHTML(w http.ResponseWriter, r *http.Request) {
	a.withParams(w, r, func(s *session.Session, p session.Params) {
		d, err := s.Dashboard(p)
		if d == nil {
			writeResult(w, nil, err)
			return
		}
		var buf bytes.Buffer
		if err := render.DashboardHTML(&buf, d); err != nil {
			writeResult(w, nil, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if d.Partial() {
			w.Header().Set("X-Chainpulse-Partial", "true")
		}
		_, _ = w.Write(buf.Bytes())
	})
}

func (a *App) getChart(w http.ResponseWriter, r *http.Request) {
	a.withParams(w, r, func(s *session.Session, p session.Params) {
		d, err := s.Dashboard(p)
		if d == nil {
			writeResult(w, nil, err)
			return
		}
		png, err := render.PNG(mux.Vars(r)["kind"], d.TimeSeries, d.Top, d.Histogram)
		if errors.Is(err, render.ErrNoData) {
			writeMessage(w, http.StatusNotFound, "no_data", err.Error())
			return
		}
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})
}

// parseParams overlays query parameters on base.
func parseParams(q map[string][]string, base session.Params) (session.Params, error) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	p := base
	if get("window") != "" || get("start") != "" || get("end") != "" {
		win, err := analytics.ParseWindow(get("window"), get("start"), get("end"))
		if err != nil {
			return p, err
		}
		p.Window = win
	}
	ints := []struct {
		key string
		dst *int
	}{{"n", &p.TopN}, {"bins", &p.Histogram.Bins}, {"ma", &p.TimeSeries.Window}}
	for _, f := range ints {
		if raw := get(f.key); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				return p, fmt.Errorf("%s must be a positive integer, got %q", f.key, raw)
			}
			*f.dst = v
		}
	}
	if err := validateParams(p); err != nil {
		return p, err
	}
	bools := []struct {
		key string
		dst *bool
	}{{"log", &p.Histogram.Log10}, {"fill_gaps", &p.TimeSeries.FillGaps}, {"cumulative", &p.TimeSeries.Cumulative}, {"moving_average", &p.TimeSeries.MovingAverage}}
	for _, f := range bools {
		if raw := get(f.key); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return p, fmt.Errorf("%s must be true or false, got %q", f.key, raw)
			}
			*f.dst = v
		}
	}
	if raw := get("period"); raw != "" {
		per, err := analytics.ParsePeriod(raw)
		if err != nil {
			return p, err
		}
		p.Period = per
	}
	if raw := get("granularity"); raw != "" {
		g, err := analytics.ParsePeriod(raw)
		if err != nil {
			return p, err
		}
		p.TimeSeries.Granularity = g
	}
	return p, nil
}

// validateParams rejects sizes that would make a single request allocate
// without bound.
func validateParams(p session.Params) error {
	if p.Histogram.Bins > analytics.MaxBins {
		return fmt.Errorf("bins must be at most %d, got %d", analytics.MaxBins, p.Histogram.Bins)
	}
	return nil
}
