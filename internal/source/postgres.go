package source

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/log"
)

// queryPostgres runs sql against dsn and returns at most maxRows rows
// (0 means all).
func queryPostgres(ctx context.Context, dsn, sql string, maxRows int) (*table.Table, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Infof("[Postgres] Running query on %s", Redact(dsn))
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	var out [][]string
	for rows.Next() {
		if maxRows > 0 && len(out) >= maxRows {
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres row %d: %w", len(out)+1, err)
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = cellString(v)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}
	log.Infof("[Postgres] Fetched %d rows", len(out))
	return table.New("postgres:"+config.ConnConfig.Database, header, out), nil
}
