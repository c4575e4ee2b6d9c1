// Package source resolves a source reference (file path, dune: query,
// postgres:// or clickhouse:// DSN) into a table.
package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/dune"
	"github.com/KaramelBytes/chainpulse/internal/ingest"
	"github.com/KaramelBytes/chainpulse/internal/table"
)

// Kind is the family of a source reference.
type Kind string

const (
	KindFile       Kind = "file"
	KindDune       Kind = "dune"
	KindPostgres   Kind = "postgres"
	KindClickHouse Kind = "clickhouse"
)

// Options configures Open.
type Options struct {
	Ingest ingest.Options
	// Query is the SQL for database sources. A "#<SQL>" suffix on the
	// reference is used when Query is empty.
	Query string
	// Dune executes dune: references. Required only for those.
	Dune *dune.Client
	// Latest fetches the stored result of a Dune query instead of executing it.
	Latest bool
}

// Ref is a parsed source reference.
type Ref struct {
	Kind Kind
	// Target is the file path, DSN, or Dune query id/preset.
	Target string
	// Query is the SQL carried on the reference, if any.
	Query string
	// Params are Dune query parameters.
	Params map[string]string
}

// Parse classifies a reference string.
func Parse(ref string) (Ref, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Ref{}, fmt.Errorf("empty source reference")
	}
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "dune:"):
		body := ref[len("dune:"):]
		id, rawQuery, _ := strings.Cut(body, "?")
		r := Ref{Kind: KindDune, Target: strings.TrimSpace(id), Params: map[string]string{}}
		if rawQuery != "" {
			vals, err := url.ParseQuery(rawQuery)
			if err != nil {
				return Ref{}, fmt.Errorf("parse dune parameters: %w", err)
			}
			for k := range vals {
				r.Params[k] = vals.Get(k)
			}
		}
		if r.Target == "" {
			return Ref{}, fmt.Errorf("dune reference needs a query id: %q", ref)
		}
		return r, nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		dsn, q, _ := strings.Cut(ref, "#")
		return Ref{Kind: KindPostgres, Target: dsn, Query: strings.TrimSpace(q)}, nil
	case strings.HasPrefix(lower, "clickhouse://"):
		dsn, q, _ := strings.Cut(ref, "#")
		return Ref{Kind: KindClickHouse, Target: dsn, Query: strings.TrimSpace(q)}, nil
	}
	return Ref{Kind: KindFile, Target: ref}, nil
}

// Open loads the table behind ref.
func Open(ctx context.Context, ref string, opts Options) (*table.Table, error) {
	r, err := Parse(ref)
	if err != nil {
		return nil, err
	}
	query := opts.Query
	if query == "" {
		query = r.Query
	}
	switch r.Kind {
	case KindDune:
		if opts.Dune == nil {
			return nil, fmt.Errorf("dune source %q: no Dune client configured (set dune_api_key)", r.Target)
		}
		id, err := dune.ResolveQueryID(r.Target)
		if err != nil {
			return nil, err
		}
		if opts.Latest {
			return opts.Dune.LatestResult(ctx, id)
		}
		return opts.Dune.RunQuery(ctx, id, r.Params)
	case KindPostgres:
		if query == "" {
			return nil, fmt.Errorf("postgres source needs a query (use --query or a #SQL suffix)")
		}
		return queryPostgres(ctx, r.Target, query, opts.Ingest.MaxRows)
	case KindClickHouse:
		if query == "" {
			return nil, fmt.Errorf("clickhouse source needs a query (use --query or a #SQL suffix)")
		}
		return queryClickHouse(ctx, r.Target, query, opts.Ingest.MaxRows)
	}
	return ingest.LoadFile(r.Target, opts.Ingest)
}

// Redact hides credentials in a reference for logs and labels.
func Redact(ref string) string {
	r, err := Parse(ref)
	if err != nil || (r.Kind != KindPostgres && r.Kind != KindClickHouse) {
		return ref
	}
	u, err := url.Parse(r.Target)
	if err != nil {
		return r.Target
	}
	return u.Redacted()
}
