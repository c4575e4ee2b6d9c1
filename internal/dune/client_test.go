package dune

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv, ln: ln}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// fakeDune serves execute -> status (pending, then completed) -> results.
type fakeDune struct {
	executes    int32
	statusCalls int32
	failState   string
	execStatus  []int
	lastParams  map[string]string
	apiKey      string
}

func (f *fakeDune) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query/42/execute", func(w http.ResponseWriter, r *http.Request) {
		f.apiKey = r.Header.Get("X-Dune-API-Key")
		i := int(atomic.AddInt32(&f.executes, 1)) - 1
		if i < len(f.execStatus) && f.execStatus[i] != http.StatusOK {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(f.execStatus[i])
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "slow down"})
			return
		}
		var req executeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastParams = req.QueryParameters
		_ = json.NewEncoder(w).Encode(map[string]any{"execution_id": "01HEXEC", "state": StatePending})
	})
	mux.HandleFunc("/execution/01HEXEC/status", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&f.statusCalls, 1)
		state := StateExecuting
		if n > 1 {
			state = StateCompleted
			if f.failState != "" {
				state = f.failState
			}
		}
		body := map[string]any{"execution_id": "01HEXEC", "query_id": 42, "state": state}
		if f.failState != "" && n > 1 {
			body["error"] = map[string]any{"type": "FAILED_TYPE_EXECUTION_FAILED", "message": "division by zero"}
		}
		_ = json.NewEncoder(w).Encode(body)
	})
	results := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"execution_id":"01HEXEC","query_id":42,"state":"QUERY_STATE_COMPLETED",
			"result":{"rows":[
				{"amount_usd":100.5,"block_time":"2024-01-01 00:00:00.000 UTC","trader":"0xA"},
				{"amount_usd":12345678901234567890,"block_time":"2024-01-02 00:00:00.000 UTC","trader":null}
			],"metadata":{"column_names":["block_time","trader","amount_usd"],"row_count":2}}}`))
	}
	mux.HandleFunc("/execution/01HEXEC/results", results)
	mux.HandleFunc("/query/42/results", results)
	return mux
}

func newTestClient(url string) *Client {
	c := NewClientWithBaseURL("test-key", 2*time.Second, 3, 10*time.Millisecond, 50*time.Millisecond, url)
	c.SetPollInterval(5 * time.Millisecond)
	return c
}

func TestRunQueryPollsAndPreservesColumnOrder(t *testing.T) {
	f := &fakeDune{}
	srv := newIPv4Server(t, f.handler())
	defer srv.Close()

	c := newTestClient(srv.URL)
	tb, err := c.RunQuery(context.Background(), 42, map[string]string{"chain": "ethereum"})
	if err != nil {
		t.Fatalf("RunQuery: %v", err)
	}
	if got := tb.Columns(); !reflect.DeepEqual(got, []string{"block_time", "trader", "amount_usd"}) {
		t.Fatalf("columns = %v", got)
	}
	if tb.Len() != 2 || tb.Name() != "dune:42" {
		t.Fatalf("table = %s", tb)
	}
	if tb.Cell(0, 2) != "100.5" || tb.Cell(1, 1) != "" || tb.Cell(1, 2) != "12345678901234567890" {
		t.Fatalf("cells = %v / %v", tb.Row(0), tb.Row(1))
	}
	if f.apiKey != "test-key" {
		t.Fatalf("api key header = %q", f.apiKey)
	}
	if f.lastParams["chain"] != "ethereum" {
		t.Fatalf("params = %v", f.lastParams)
	}
	if atomic.LoadInt32(&f.statusCalls) < 2 {
		t.Fatalf("expected polling, got %d status calls", f.statusCalls)
	}
}

func TestRunQueryUsesCache(t *testing.T) {
	f := &fakeDune{}
	srv := newIPv4Server(t, f.handler())
	defer srv.Close()

	c := newTestClient(srv.URL)
	params := map[string]string{"b": "2", "a": "1"}
	t1, err := c.RunQuery(context.Background(), 42, params)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	t2, err := c.RunQuery(context.Background(), 42, map[string]string{"a": "1", "b": "2"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if t1 != t2 || atomic.LoadInt32(&f.executes) != 1 {
		t.Fatalf("expected cached table, executes=%d", f.executes)
	}
	if _, err := c.RunQuery(context.Background(), 42, map[string]string{"a": "other"}); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if atomic.LoadInt32(&f.executes) != 2 {
		t.Fatalf("different params must miss the cache, executes=%d", f.executes)
	}
}

func TestCacheExpires(t *testing.T) {
	c := newResultCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.put("k", nil)
	if _, ok := c.get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := c.get("k"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestExecuteRetriesOn429(t *testing.T) {
	f := &fakeDune{execStatus: []int{http.StatusTooManyRequests, http.StatusOK}}
	srv := newIPv4Server(t, f.handler())
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Execute(context.Background(), 42, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if atomic.LoadInt32(&f.executes) != 2 {
		t.Fatalf("executes = %d, want 2", f.executes)
	}
}

func TestExecuteGivesUpWithTypedError(t *testing.T) {
	f := &fakeDune{execStatus: []int{429, 429, 429}}
	srv := newIPv4Server(t, f.handler())
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Execute(context.Background(), 42, nil)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
}

func TestFailedExecution(t *testing.T) {
	f := &fakeDune{failState: "QUERY_STATE_FAILED"}
	srv := newIPv4Server(t, f.handler())
	defer srv.Close()

	_, err := newTestClient(srv.URL).RunQuery(context.Background(), 42, nil)
	var qf *QueryFailedError
	if !errors.As(err, &qf) {
		t.Fatalf("expected QueryFailedError, got %T: %v", err, err)
	}
	if qf.State != "QUERY_STATE_FAILED" || qf.Message != "division by zero" {
		t.Fatalf("unexpected error: %+v", qf)
	}
}

func TestLatestResult(t *testing.T) {
	f := &fakeDune{}
	srv := newIPv4Server(t, f.handler())
	defer srv.Close()

	tb, err := newTestClient(srv.URL).LatestResult(context.Background(), 42)
	if err != nil {
		t.Fatalf("LatestResult: %v", err)
	}
	if tb.Len() != 2 || f.executes != 0 {
		t.Fatalf("rows=%d executes=%d", tb.Len(), f.executes)
	}
}

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(error) bool
	}{
		{401, `{"error":"invalid API Key"}`, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{404, `{"error":"Query not found"}`, func(err error) bool { var e *NotFoundError; return errors.As(err, &e) }},
		{400, `{"error":"invalid parameter"}`, func(err error) bool { var e *BadRequestError; return errors.As(err, &e) }},
		{402, `{"error":"not enough credits"}`, func(err error) bool { var e *QuotaExceededError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Request-Id", "req-1")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			_, err := newTestClient(srv.URL).Execute(context.Background(), 1, nil)
			if !tc.check(err) {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.RequestID != "req-1" {
				t.Fatalf("expected request id on error, got %v", err)
			}
		})
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := NewClientWithBaseURL("", time.Second, 1, 0, 0, "http://127.0.0.1:1")
	if _, err := c.Execute(context.Background(), 1, nil); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestPresetsAndParams(t *testing.T) {
	if len(Presets()) != 3 {
		t.Fatalf("presets = %d", len(Presets()))
	}
	id, err := ResolveQueryID("uniswap_v3_daily_volume")
	if err != nil || id != 1234567 {
		t.Fatalf("resolve preset = %d, %v", id, err)
	}
	if id, err := ResolveQueryID("987"); err != nil || id != 987 {
		t.Fatalf("resolve numeric = %d, %v", id, err)
	}
	if _, err := ResolveQueryID("nope"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
	p, err := ParseParams([]string{"chain=ethereum", "days = 30"})
	if err != nil || p["chain"] != "ethereum" || p["days"] != "30" {
		t.Fatalf("params = %v, %v", p, err)
	}
	if _, err := ParseParams([]string{"novalue"}); err == nil {
		t.Fatal("expected error for missing '='")
	}
}

func TestRetryAfterIsCappedByMaxDelay(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"execution_id": "01HEXEC", "state": StatePending})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", 2*time.Second, 3, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	start := time.Now()
	if _, err := c.Execute(context.Background(), 42, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Retry-After not capped, took %s", elapsed)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryWaitHonoursContext(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", 2*time.Second, 5, 10*time.Second, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Execute(ctx, 42, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %T: %v", err, err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("backoff ignored cancellation, took %s", elapsed)
	}
}
