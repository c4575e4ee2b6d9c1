package dune

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/labstack/gommon/log"
)

// Execution states reported by the API.
const (
	StateCompleted = "QUERY_STATE_COMPLETED"
	StatePartial   = "QUERY_STATE_COMPLETED_PARTIAL"
	StatePending   = "QUERY_STATE_PENDING"
	StateExecuting = "QUERY_STATE_EXECUTING"
)

type executeRequest struct {
	QueryParameters map[string]string `json:"query_parameters"`
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

type statusResponse struct {
	ExecutionID string `json:"execution_id"`
	QueryID     int    `json:"query_id"`
	State       string `json:"state"`
	Error       *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ResultResponse is the payload of the results endpoints.
type ResultResponse struct {
	ExecutionID string `json:"execution_id"`
	QueryID     int    `json:"query_id"`
	State       string `json:"state"`
	Result      struct {
		Rows     []map[string]any `json:"rows"`
		Metadata struct {
			ColumnNames []string `json:"column_names"`
			RowCount    int      `json:"row_count"`
		} `json:"metadata"`
	} `json:"result"`
}

// Execute starts a query execution and returns its id.
func (c *Client) Execute(ctx context.Context, queryID int, params map[string]string) (string, error) {
	if params == nil {
		params = map[string]string{}
	}
	var out executeResponse
	if err := c.do(ctx, "POST", fmt.Sprintf("/query/%d/execute", queryID), executeRequest{QueryParameters: params}, &out); err != nil {
		return "", fmt.Errorf("execute query %d: %w", queryID, err)
	}
	if out.ExecutionID == "" {
		return "", fmt.Errorf("execute query %d: empty execution id", queryID)
	}
	return out.ExecutionID, nil
}

// Wait polls the execution status until it finishes or ctx is done.
func (c *Client) Wait(ctx context.Context, executionID string) error {
	for {
		var st statusResponse
		if err := c.do(ctx, "GET", "/execution/"+executionID+"/status", nil, &st); err != nil {
			return fmt.Errorf("execution status: %w", err)
		}
		switch st.State {
		case StateCompleted, StatePartial:
			return nil
		case StatePending, StateExecuting, "":
			log.Debugf("[Dune] Execution %s is %s", executionID, st.State)
		default:
			qe := &QueryFailedError{ExecutionID: executionID, State: st.State}
			if st.Error != nil {
				qe.Message = st.Error.Message
			}
			return qe
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// Results fetches the rows of a finished execution.
func (c *Client) Results(ctx context.Context, executionID string) (*table.Table, error) {
	var out ResultResponse
	if err := c.do(ctx, "GET", "/execution/"+executionID+"/results", nil, &out); err != nil {
		return nil, fmt.Errorf("execution results: %w", err)
	}
	return ToTable(fmt.Sprintf("dune:%d", out.QueryID), &out), nil
}

// RunQuery executes queryID with params, waits for completion and returns the
// result table. Results are reused from the client cache until they expire.
func (c *Client) RunQuery(ctx context.Context, queryID int, params map[string]string) (*table.Table, error) {
	key := cacheKey(queryID, params)
	if t, ok := c.cache.get(key); ok {
		log.Debugf("[Dune] Cache hit for query %d", queryID)
		return t, nil
	}
	log.Infof("[Dune] Executing query %d", queryID)
	execID, err := c.Execute(ctx, queryID, params)
	if err != nil {
		return nil, err
	}
	if err := c.Wait(ctx, execID); err != nil {
		return nil, err
	}
	t, err := c.Results(ctx, execID)
	if err != nil {
		return nil, err
	}
	t = renamed(t, fmt.Sprintf("dune:%d", queryID))
	log.Infof("[Dune] Query %d returned %d rows", queryID, t.Len())
	c.cache.put(key, t)
	return t, nil
}

// LatestResult returns the most recent stored result of queryID without
// triggering a new execution.
func (c *Client) LatestResult(ctx context.Context, queryID int) (*table.Table, error) {
	key := cacheKey(queryID, nil) + "#latest"
	if t, ok := c.cache.get(key); ok {
		return t, nil
	}
	var out ResultResponse
	if err := c.do(ctx, "GET", fmt.Sprintf("/query/%d/results", queryID), nil, &out); err != nil {
		return nil, fmt.Errorf("latest results for query %d: %w", queryID, err)
	}
	t := ToTable(fmt.Sprintf("dune:%d", queryID), &out)
	c.cache.put(key, t)
	return t, nil
}

// ToTable converts a results payload into a table. Column order follows the
// result metadata; keys missing from metadata are appended in row order.
func ToTable(name string, res *ResultResponse) *table.Table {
	cols := append([]string(nil), res.Result.Metadata.ColumnNames...)
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}
	if len(cols) == 0 {
		for _, row := range res.Result.Rows {
			for _, k := range sortedKeys(row) {
				if !known[k] {
					known[k] = true
					cols = append(cols, k)
				}
			}
		}
	}
	rows := make([][]string, 0, len(res.Result.Rows))
	for _, r := range res.Result.Rows {
		rec := make([]string, len(cols))
		for i, c := range cols {
			rec[i] = cellString(r[c])
		}
		rows = append(rows, rec)
	}
	return table.New(name, cols, rows)
}

func renamed(t *table.Table, name string) *table.Table {
	if t.Name() == name {
		return t
	}
	rows := make([][]string, t.Len())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return table.New(name, t.Columns(), rows)
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
