package planner

import (
	"fmt"

	"nanodb/internal/expr"
	"nanodb/internal/plan"
	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// SelectClause is the hand-built input to the planner (§4.11's entry
// point): the caller — ultimately the command dispatcher named in §6, not
// a SQL parser — names the from-clause leaves, supplies the WHERE
// predicate as an already-parsed expr.Expr, and optionally a projection
// list and an ORDER BY.
//
// Group/Having are deliberately absent: aggregation is not one of the
// plan.Node kinds §4.10 names, so there is nothing here for the planner
// to build a node for.
type SelectClause struct {
	Leaves     []Leaf
	Where      expr.Expr
	Projection []plan.ProjectionItem
	OrderBy    []plan.SortKey
}

// Plan runs §4.11's algorithm end to end: push WHERE conjuncts into
// leaves, enumerate join orders by dynamic programming, append whatever
// conjuncts couldn't be pushed anywhere, wrap in Project/Sort as
// requested, and prepare the result.
func Plan(clause SelectClause) (plan.Node, error) {
	if len(clause.Leaves) == 0 {
		return nil, fmt.Errorf("%w: planner requires at least one from-clause leaf", storage.ErrInvalidArgument)
	}

	var conjuncts []expr.Expr
	flattenAnd(clause.Where, &conjuncts)

	used := make([]bool, len(conjuncts))
	leafComponents := make(map[string]*component, len(clause.Leaves))
	var sizeOneKeys []string

	for _, l := range clause.Leaves {
		if err := l.Base.Prepare(); err != nil {
			return nil, fmt.Errorf("preparing leaf %q: %w", l.Name, err)
		}
		node := l.Base
		if !l.Opaque {
			var applicable []expr.Expr
			for i, c := range conjuncts {
				if used[i] {
					continue
				}
				if symbolsContained(c, node.Schema()) {
					applicable = append(applicable, c)
					used[i] = true
				}
			}
			if len(applicable) > 0 {
				node = pushFilter(node, conjoin(applicable))
				if err := node.Prepare(); err != nil {
					return nil, fmt.Errorf("preparing filtered leaf %q: %w", l.Name, err)
				}
			}
		}
		leafSet := singletonLeafSet(l.Name)
		key := leafSetKey(leafSet)
		if _, dup := leafComponents[key]; dup {
			return nil, fmt.Errorf("%w: duplicate leaf name %q", storage.ErrInvalidArgument, l.Name)
		}
		leafComponents[key] = &component{leaves: leafSet, node: node}
		sizeOneKeys = append(sizeOneKeys, key)
	}

	remaining := make([]expr.Expr, 0, len(conjuncts))
	for i, c := range conjuncts {
		if !used[i] {
			remaining = append(remaining, c)
		}
	}
	for _, key := range sizeOneKeys {
		leafComponents[key].applied = make([]bool, len(remaining))
	}

	best, err := enumerateJoins(clause.Leaves, leafComponents, sizeOneKeys, remaining)
	if err != nil {
		return nil, err
	}

	node := best.node
	var leftover []expr.Expr
	for i, c := range remaining {
		if !best.applied[i] {
			leftover = append(leftover, c)
		}
	}
	if len(leftover) > 0 {
		node = pushFilter(node, conjoin(leftover))
		if err := node.Prepare(); err != nil {
			return nil, err
		}
	}

	if len(clause.Projection) > 0 {
		node = plan.NewProject(node, clause.Projection)
	}
	if len(clause.OrderBy) > 0 {
		node = plan.NewSort(node, clause.OrderBy)
	}
	if err := node.Prepare(); err != nil {
		return nil, err
	}
	return node, nil
}

// enumerateJoins runs the DP join enumeration (§4.11 "DP enumeration"):
// P maps a leaf-name set to its best known plan. Each round extends every
// component of the current smallest unextended size by one more leaf,
// keeping the cheaper candidate (by CPU cost) per resulting leaf set and
// breaking ties in favor of whichever candidate was built first.
func enumerateJoins(leaves []Leaf, P map[string]*component, sizeOneKeys []string, remaining []expr.Expr) (*component, error) {
	n := len(leaves)
	fullSet := make(map[string]bool, n)
	for _, l := range leaves {
		fullSet[l.Name] = true
	}
	fullKey := leafSetKey(fullSet)

	bySize := map[int][]string{1: sizeOneKeys}
	for size := 1; size < n; size++ {
		for _, sKey := range bySize[size] {
			sComp := P[sKey]
			for _, l := range leaves {
				if sComp.leaves[l.Name] {
					continue
				}
				lComp := P[leafSetKey(singletonLeafSet(l.Name))]
				cand, err := buildJoin(sComp, lComp, remaining)
				if err != nil {
					return nil, err
				}
				candKey := leafSetKey(cand.leaves)
				existing, ok := P[candKey]
				if !ok || cand.node.Cost().CPUCost < existing.node.Cost().CPUCost {
					P[candKey] = cand
					if !ok {
						bySize[size+1] = append(bySize[size+1], candKey)
					}
				}
			}
		}
	}

	best, ok := P[fullKey]
	if !ok {
		return nil, fmt.Errorf("%w: join enumeration did not converge to a plan covering every leaf", storage.ErrInvalidArgument)
	}
	return best, nil
}

// buildJoin forms the candidate inner join a ⋈ b, folding in every
// remaining conjunct whose columns are now fully in scope and that
// neither a nor b has already applied deeper in its own subtree.
func buildJoin(a, b *component, remaining []expr.Expr) (*component, error) {
	combinedLeaves := unionLeafSet(a.leaves, b.leaves)
	combinedSchema := types.Concat(a.node.Schema(), b.node.Schema())

	applied := make([]bool, len(remaining))
	var newConjuncts []expr.Expr
	for i, c := range remaining {
		if a.applied[i] || b.applied[i] {
			applied[i] = true
			continue
		}
		if symbolsContained(c, combinedSchema) {
			newConjuncts = append(newConjuncts, c)
			applied[i] = true
		}
	}

	var predicate expr.Expr
	if len(newConjuncts) > 0 {
		predicate = conjoin(newConjuncts)
	}
	joinNode := plan.NewNestedLoopsJoin(a.node, b.node, plan.InnerJoin, predicate)
	if err := joinNode.Prepare(); err != nil {
		return nil, err
	}
	return &component{leaves: combinedLeaves, node: joinNode, applied: applied}, nil
}
