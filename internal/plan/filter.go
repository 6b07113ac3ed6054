package plan

import (
	"nanodb/internal/expr"
	"nanodb/internal/types"
)

// SimpleFilter forwards only the child tuples satisfying Predicate (§4.10).
// Cost: childCost + childTuples CPU; output cardinality =
// childTuples × selectivity(predicate).
type SimpleFilter struct {
	Child     Node
	Predicate expr.Expr

	schema *types.Schema
	cost   PlanCost
	env    *expr.Environment
}

func NewSimpleFilter(child Node, predicate expr.Expr) *SimpleFilter {
	return &SimpleFilter{Child: child, Predicate: predicate}
}

func (f *SimpleFilter) Prepare() error {
	if err := f.Child.Prepare(); err != nil {
		return err
	}
	f.schema = f.Child.Schema()
	childCost := f.Child.Cost()
	f.cost = PlanCost{
		NumTuples:   childCost.NumTuples * selectivityOf(f.Predicate),
		TupleSize:   childCost.TupleSize,
		CPUCost:     childCost.CPUCost + childCost.NumTuples,
		NumBlockIOs: childCost.NumBlockIOs,
	}
	f.env = expr.NewEnvironment()
	return nil
}

func (f *SimpleFilter) Initialize() error { return f.Child.Initialize() }

func (f *SimpleFilter) GetNextTuple() (*types.Tuple, error) {
	for {
		tuple, err := f.Child.GetNextTuple()
		if err != nil || tuple == nil {
			return tuple, err
		}
		f.env.Push(f.schema, tuple)
		ok, err := expr.EvaluatePredicate(f.env, f.Predicate)
		f.env.Pop()
		if err != nil {
			return nil, err
		}
		if ok {
			return tuple, nil
		}
	}
}

func (f *SimpleFilter) Cleanup() error { return f.Child.Cleanup() }

func (f *SimpleFilter) Schema() *types.Schema { return f.schema }

func (f *SimpleFilter) Cost() PlanCost { return f.cost }
