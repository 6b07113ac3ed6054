// Package planner implements the dynamic-programming join-ordering planner
// (§4.11): it turns a hand-built SelectClause into a prepared plan.Node
// tree, choosing a cheap join order by cost and pushing predicates down as
// far as they can safely go.
//
// There is no SQL grammar here — callers build a SelectClause directly,
// naming each from-clause leaf and supplying the WHERE predicate as an
// already-parsed expr.Expr tree, exactly the way tinySQL's planner is
// handed an already-parsed Select from its own parser package.
package planner

import (
	"nanodb/internal/expr"
	"nanodb/internal/plan"
	"nanodb/internal/types"
)

// Leaf is one from-clause entry the DP enumerator treats as atomic: a base
// table scan, a subquery's root node, or an opaque outer join built by
// BuildOuterJoinLeaf. Name must be unique within a SelectClause and is used
// both as the DP leaf-set key and, implicitly, as the set of table
// qualifiers the leaf's schema resolves (so ordinary base-table leaves
// should name their table's qualifier).
//
// Opaque leaves (outer joins, and anything else a caller wants walled off
// from predicate pushdown) set Opaque so the planner never tries to push a
// WHERE conjunct into them — per §4.11, "conjuncts cannot be pushed through
// [outer joins]".
type Leaf struct {
	Name   string
	Base   plan.Node
	Opaque bool
}

// pushFilter folds predicate into node, using the node's own inline
// Predicate field when it has one (FileScan, CSProject) rather than
// wrapping it in a separate SimpleFilter — this is what makes a single
// column-store leaf collapse back to a bare (filtered) CSProject, matching
// §4.11 step 1's "emit CSProject and stop" for the single-leaf case.
func pushFilter(node plan.Node, predicate expr.Expr) plan.Node {
	switch n := node.(type) {
	case *plan.FileScan:
		n.Predicate = conjoinExisting(n.Predicate, predicate)
		return n
	case *plan.CSProject:
		n.Predicate = conjoinExisting(n.Predicate, predicate)
		return n
	default:
		return plan.NewSimpleFilter(node, predicate)
	}
}

func conjoinExisting(existing, added expr.Expr) expr.Expr {
	if existing == nil {
		return added
	}
	return &expr.Boolean{Op: expr.And, Operands: []expr.Expr{existing, added}}
}

// conjoin ANDs together two or more conjuncts, returning the single operand
// unchanged when there is only one.
func conjoin(conjuncts []expr.Expr) expr.Expr {
	if len(conjuncts) == 1 {
		return conjuncts[0]
	}
	return &expr.Boolean{Op: expr.And, Operands: append([]expr.Expr(nil), conjuncts...)}
}

// flattenAnd collects the AND-flattened conjuncts of e into out (§4.11
// step 2's "collect the conjuncts of where").
func flattenAnd(e expr.Expr, out *[]expr.Expr) {
	if e == nil {
		return
	}
	if b, ok := e.(*expr.Boolean); ok && b.Op == expr.And {
		for _, operand := range b.Operands {
			flattenAnd(operand, out)
		}
		return
	}
	*out = append(*out, e)
}

// symbolsContained reports whether every column symbol referenced by e
// resolves within schema — the soundness condition for pushing e down as a
// filter on a subplan with that schema (§8's "Predicate pushdown
// soundness").
func symbolsContained(e expr.Expr, schema *types.Schema) bool {
	var syms []string
	expr.CollectSymbols(e, &syms)
	for _, s := range syms {
		qualifier, name := splitSymbol(s)
		if _, err := schema.IndexOf(qualifier, name); err != nil {
			return false
		}
	}
	return true
}

func splitSymbol(s string) (qualifier, name string) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i], s[i+1:]
		}
	}
	return "", s
}

// BuildOuterJoinLeaf wraps left and right under an outer join, pushing
// whatever candidate conjuncts safely apply to the non-nullable side
// first (§4.11's "Predicate handling for outer joins"): LEFT OUTER pushes
// only into left, RIGHT OUTER only into right, FULL OUTER pushes nothing.
// It returns the resulting opaque Leaf along with whichever candidates
// were not consumed, for the caller to fold back into the top-level WHERE
// passed to Plan.
func BuildOuterJoinLeaf(name string, left, right plan.Node, joinType plan.JoinType, on expr.Expr, candidates []expr.Expr) (Leaf, []expr.Expr, error) {
	remaining := candidates
	switch joinType {
	case plan.LeftOuterJoin:
		left, remaining = pushCandidates(left, remaining)
	case plan.RightOuterJoin:
		right, remaining = pushCandidates(right, remaining)
	case plan.FullOuterJoin:
		// nothing pushed
	}
	if err := left.Prepare(); err != nil {
		return Leaf{}, nil, err
	}
	if err := right.Prepare(); err != nil {
		return Leaf{}, nil, err
	}
	join := plan.NewNestedLoopsJoin(left, right, joinType, on)
	return Leaf{Name: name, Base: join, Opaque: true}, remaining, nil
}

func pushCandidates(node plan.Node, candidates []expr.Expr) (plan.Node, []expr.Expr) {
	if err := node.Prepare(); err != nil {
		return node, candidates
	}
	var applicable, remaining []expr.Expr
	for _, c := range candidates {
		if symbolsContained(c, node.Schema()) {
			applicable = append(applicable, c)
		} else {
			remaining = append(remaining, c)
		}
	}
	if len(applicable) > 0 {
		node = pushFilter(node, conjoin(applicable))
	}
	return node, remaining
}
