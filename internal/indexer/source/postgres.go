// Package source provides document sources the indexer can load from
// besides the filesystem.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
)

// Postgres streams (name, body) rows from a single table. Rows are read in
// name order so repeated loads index documents identically.
type Postgres struct {
	db     *sql.DB
	query  string
	logger *slog.Logger
}

func NewPostgres(db *sql.DB, cfg config.PostgresConfig) (*Postgres, error) {
	query, err := buildQuery(cfg.Table, cfg.NameColumn, cfg.BodyColumn)
	if err != nil {
		return nil, err
	}
	return &Postgres{
		db:     db,
		query:  query,
		logger: logger.WithComponent("postgres-source").With("table", cfg.Table),
	}, nil
}

// Each calls fn for every row. NULL bodies are treated as empty documents.
func (p *Postgres) Each(ctx context.Context, fn func(name, body string) error) error {
	rows, err := p.db.QueryContext(ctx, p.query)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var name string
		var body sql.NullString
		if err := rows.Scan(&name, &body); err != nil {
			return fmt.Errorf("scanning document row: %w", err)
		}
		if err := fn(name, body.String); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating document rows: %w", err)
	}
	p.logger.Debug("rows streamed", "rows", n)
	return nil
}

func buildQuery(table, nameCol, bodyCol string) (string, error) {
	if table == "" || nameCol == "" || bodyCol == "" {
		return "", fmt.Errorf("postgres source needs table, name and body columns")
	}
	name := pq.QuoteIdentifier(nameCol)
	return fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		name, pq.QuoteIdentifier(bodyCol), pq.QuoteIdentifier(table), name), nil
}
