package graph

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mnemo-labs/mnemo-engine/pkg/database"
)

// PostgresAdapter runs graph queries against the Postgres-backed node
// and relationship tables. Named parameters in query text (@name) are
// bound through pgx.NamedArgs.
type PostgresAdapter struct {
	db *database.DB
}

// NewPostgresAdapter creates an Adapter over the given connection pool.
func NewPostgresAdapter(db *database.DB) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

var _ Adapter = (*PostgresAdapter)(nil)

func (a *PostgresAdapter) RunQuery(ctx context.Context, query string, params map[string]interface{}) ([]Record, error) {
	rows, err := a.db.Query(ctx, query, pgx.NamedArgs(params))
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	records := make([]Record, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		record := make(Record, len(fields))
		for i, fd := range fields {
			record[fd.Name] = values[i]
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

func (a *PostgresAdapter) Execute(ctx context.Context, query string, params map[string]interface{}) (int64, error) {
	tag, err := a.db.Exec(ctx, query, pgx.NamedArgs(params))
	if err != nil {
		return 0, fmt.Errorf("execute command: %w", err)
	}
	return tag.RowsAffected(), nil
}
