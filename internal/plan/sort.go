package plan

import (
	"math"
	"sort"

	"nanodb/internal/expr"
	"nanodb/internal/types"
)

// SortKey is one `(expr, asc)` ordering term (§4.10).
type SortKey struct {
	Expr expr.Expr
	Asc  bool
}

// Sort buffers its child's tuples and sorts them by an ordered list of
// keys, using lexicographic comparison with SQL-style NULL-last semantics
// (§4.10). Grounded on exec.go's sortRows (sort.SliceStable over a
// buffered slice, comparing key by key until a tie breaks), generalized
// from tinySQL's single Row-map comparator to this module's Expr-keyed one.
type Sort struct {
	Child Node
	Keys  []SortKey

	schema *types.Schema
	cost   PlanCost
	env    *expr.Environment
	rows   []*types.Tuple
	pos    int
}

func NewSort(child Node, keys []SortKey) *Sort {
	return &Sort{Child: child, Keys: keys}
}

func (s *Sort) Prepare() error {
	if err := s.Child.Prepare(); err != nil {
		return err
	}
	s.schema = s.Child.Schema()
	childCost := s.Child.Cost()
	n := childCost.NumTuples
	cpu := childCost.CPUCost
	if n > 1 {
		cpu += n * math.Log2(n)
	}
	s.cost = PlanCost{
		NumTuples:   n,
		TupleSize:   childCost.TupleSize,
		CPUCost:     cpu,
		NumBlockIOs: childCost.NumBlockIOs,
	}
	s.env = expr.NewEnvironment()
	return nil
}

func (s *Sort) Initialize() error {
	if err := s.Child.Initialize(); err != nil {
		return err
	}
	s.rows = nil
	for {
		t, err := s.Child.GetNextTuple()
		if err != nil {
			return err
		}
		if t == nil {
			break
		}
		s.rows = append(s.rows, t)
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		return s.less(s.rows[i], s.rows[j])
	})
	s.pos = 0
	return nil
}

// less reports whether a sorts before b across every key, NULLs last
// regardless of ascending/descending direction (SQL-style NULL-last).
func (s *Sort) less(a, b *types.Tuple) bool {
	for _, k := range s.Keys {
		s.env.Push(s.schema, a)
		av, errA := expr.Evaluate(s.env, k.Expr)
		s.env.Pop()
		s.env.Push(s.schema, b)
		bv, errB := expr.Evaluate(s.env, k.Expr)
		s.env.Pop()
		if errA != nil || errB != nil {
			continue
		}
		if av.Null && bv.Null {
			continue
		}
		if av.Null {
			return false
		}
		if bv.Null {
			return true
		}
		cmp := av.Compare(bv)
		if cmp == 0 {
			continue
		}
		if k.Asc {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}

func (s *Sort) GetNextTuple() (*types.Tuple, error) {
	if s.pos >= len(s.rows) {
		return nil, nil
	}
	t := s.rows[s.pos]
	s.pos++
	return t, nil
}

func (s *Sort) Cleanup() error { return s.Child.Cleanup() }

func (s *Sort) Schema() *types.Schema { return s.schema }

func (s *Sort) Cost() PlanCost { return s.cost }
