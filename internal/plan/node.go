// Package plan implements the pull-based plan-node iterators of spec.md
// §4.10: FileScan, SimpleFilter, NestedLoopsJoin, Project, Sort, Rename,
// and CSProject, each a restartable lazy sequence over types.Tuple.
//
// Grounded on the design notes' "tagged variant with an evaluation
// interface" guidance rather than tinySQL's materialization-based
// exec.go, which builds whole []Row slices per clause. The join-algorithm
// *choice* (nested loops as the baseline, as in exec.go's
// processInnerJoin/processLeftJoin/processRightJoin) carries over; the
// iteration shape does not.
package plan

import "nanodb/internal/types"

// PlanCost carries a node's estimated statistics, computed once by
// Prepare and shared (not recomputed) by every later operation that needs
// it — the planner's DP enumeration in particular.
type PlanCost struct {
	NumTuples   float64
	TupleSize   int
	CPUCost     float64
	NumBlockIOs float64
}

// Node is the pull-iterator interface every plan node implements (§4.10):
// prepare once, then initialize+getNextTuple* to completion, then clean up.
type Node interface {
	// Prepare computes the node's output schema and cost estimate,
	// recursively preparing any children first. Called exactly once,
	// before the first Initialize.
	Prepare() error

	// Initialize (re)starts iteration from the beginning. May be called
	// more than once, e.g. by NestedLoopsJoin re-scanning its right child
	// once per left tuple.
	Initialize() error

	// GetNextTuple returns the next output tuple, or (nil, nil) at
	// end-of-input.
	GetNextTuple() (*types.Tuple, error)

	// Cleanup releases any resources (open files, pinned pages) held by
	// this node and its children.
	Cleanup() error

	// Schema returns the node's output schema, valid only after Prepare.
	Schema() *types.Schema

	// Cost returns the node's estimated cost, valid only after Prepare.
	Cost() PlanCost
}
