package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFallback answers searches straight from the items table when
// Meilisearch is not available. If Postgres is down the whole app is
// down, so this backend never reports unhealthy.
type PgFallback struct {
	db *sql.DB
}

func NewPgFallback(db *sql.DB) *PgFallback {
	return &PgFallback{db: db}
}

func (p *PgFallback) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, text, list FROM items WHERE text ILIKE '%' || $1 || '%'`
	args := []any{q.Text}
	if q.List != "" {
		query += ` AND list = $2`
		args = append(args, q.List)
	}
	query += fmt.Sprintf(` ORDER BY id ASC LIMIT %d`, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pg search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Text, &r.List); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// LoadAllRecords reads every item for a full reindex into Meilisearch.
func (p *PgFallback) LoadAllRecords(ctx context.Context) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, text, list FROM items`)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Text, &r.List); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
