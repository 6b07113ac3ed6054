package plan

import (
	"nanodb/internal/expr"
	"nanodb/internal/heap"
	"nanodb/internal/types"
)

// estimatedTuplesPerPage is a rough density used only for the cost
// estimate's row-count guess; exec.go's actual scans never consult it.
const estimatedTuplesPerPage = 50.0

// FileScan reads tuples from a heap table, optionally filtering with a
// predicate inline (§4.10). Grounded on heap.Table's
// GetFirstTuple/GetNextTuple restartable-cursor pair.
type FileScan struct {
	Table     *heap.Table
	Predicate expr.Expr // nil means "no filter"

	schema *types.Schema
	cost   PlanCost
	env    *expr.Environment
	cur    *types.Tuple
	done   bool
}

func NewFileScan(table *heap.Table, predicate expr.Expr) *FileScan {
	return &FileScan{Table: table, Predicate: predicate}
}

func (f *FileScan) Prepare() error {
	f.schema = f.Table.Schema()
	pages, err := f.Table.PageCount()
	if err != nil {
		return err
	}
	numTuples := float64(pages) * estimatedTuplesPerPage
	if f.Predicate != nil {
		numTuples *= selectivityOf(f.Predicate)
	}
	f.cost = PlanCost{
		NumTuples:   numTuples,
		TupleSize:   tupleByteEstimate(f.schema),
		CPUCost:     float64(pages) * estimatedTuplesPerPage,
		NumBlockIOs: float64(pages),
	}
	f.env = expr.NewEnvironment()
	return nil
}

func (f *FileScan) Initialize() error {
	f.cur = nil
	f.done = false
	return nil
}

func (f *FileScan) GetNextTuple() (*types.Tuple, error) {
	for {
		if f.done {
			return nil, nil
		}
		var tuple *types.Tuple
		var err error
		if f.cur == nil {
			tuple, err = f.Table.GetFirstTuple()
		} else {
			tuple, err = f.Table.GetNextTuple(f.cur.ID)
		}
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			f.done = true
			return nil, nil
		}
		f.cur = tuple
		if f.Predicate == nil {
			return tuple, nil
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

func (f *FileScan) Cleanup() error { return nil }

func (f *FileScan) Schema() *types.Schema { return f.schema }

func (f *FileScan) Cost() PlanCost { return f.cost }

// tupleByteEstimate sums each column's fixed width, falling back to a
// flat 32-byte guess for variable-length columns.
func tupleByteEstimate(schema *types.Schema) int {
	total := 0
	for _, c := range schema.Columns {
		if w, ok := c.Type.FixedWidth(); ok {
			total += w
			continue
		}
		if c.Length > 0 {
			total += c.Length
		} else {
			total += 32
		}
	}
	return total
}
