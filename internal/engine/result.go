package engine

import (
	"nanodb/internal/plan"
	"nanodb/internal/types"
)

// ResultSet is the "streamed tuple iterator (with column descriptors)"
// §6 describes as one of the two possible command outcomes, wrapping a
// prepared, initialized plan.Node.
type ResultSet struct {
	node plan.Node
}

// Columns returns the result's column descriptors.
func (r *ResultSet) Columns() *types.Schema { return r.node.Schema() }

// Next pulls the next tuple, returning (nil, nil) at end of results.
func (r *ResultSet) Next() (*types.Tuple, error) { return r.node.GetNextTuple() }

// Close releases the plan tree's resources. Callers must call it exactly
// once, including when Next returns an error.
func (r *ResultSet) Close() error { return r.node.Cleanup() }
