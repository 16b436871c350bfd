package database

import (
	"context"
	"fmt"

	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

// Executor runs resolved catalog queries as SQL against the local store
type Executor struct {
	db *DB
}

// NewExecutor creates a new Executor instance
func NewExecutor(db *DB) *Executor {
	return &Executor{db: db}
}

// Execute implements telemetry.Executor. Any error raised by SQLite while
// preparing or running the statement is a rejected query.
func (e *Executor) Execute(ctx context.Context, query string) ([]telemetry.Row, error) {
	rows, err := e.db.conn.QueryContext(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, telemetry.NewRejectedError(query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, telemetry.NewRejectedError(query, fmt.Errorf("failed to read columns: %w", err))
	}

	var result []telemetry.Row
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, telemetry.NewRejectedError(query, fmt.Errorf("failed to scan row: %w", err))
		}
		result = append(result, telemetry.NewRow(columns, raw...))
	}

	if err := rows.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, telemetry.NewRejectedError(query, fmt.Errorf("error iterating rows: %w", err))
	}

	return result, nil
}
