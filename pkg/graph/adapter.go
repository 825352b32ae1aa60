// Package graph exposes the narrow query/command surface of the
// underlying graph store. The adapter executes parameterized queries
// and returns typed records; it owns no business logic, connection
// lifecycle, or transaction management beyond a single statement.
package graph

import "context"

// Record is one row returned by a graph query, keyed by column name.
type Record map[string]interface{}

// Adapter executes parameterized graph queries and write commands.
type Adapter interface {
	// RunQuery executes a read query and returns its records.
	RunQuery(ctx context.Context, query string, params map[string]interface{}) ([]Record, error)

	// Execute runs a write command and returns the number of affected rows.
	Execute(ctx context.Context, query string, params map[string]interface{}) (int64, error)
}
