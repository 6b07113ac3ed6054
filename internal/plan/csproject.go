package plan

import (
	"nanodb/internal/colstore"
	"nanodb/internal/expr"
	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// CSProject is the shortcut plan for a base scan of a column-store table
// (§4.10): it streams blocks directly from the relevant column files in
// lockstep rather than going through a generic tuple-at-a-time heap scan,
// since §4.5's encodings never reorder rows within a column file. The
// planner emits this in place of a FileScan+Project pair whenever a FROM
// clause resolves to a single column-store table (§4.11 step 1).
//
// An optional Predicate is supported beyond the planner's literal "emit
// CSProject and stop": a WHERE clause over a column-store table still
// needs filtering, and there is nowhere else in that shortcut path to put
// it, so CSProject applies it the same way FileScan does for heap tables.
type CSProject struct {
	Svc       *storage.Service
	Table     string
	Columns   []string // projected column names, in output order
	Predicate expr.Expr

	schema  *types.Schema
	cost    PlanCost
	env     *expr.Environment
	descs   []types.ColumnDesc
	readers []*colstore.ColumnReader
}

func NewCSProject(svc *storage.Service, table string, columns []string, predicate expr.Expr) *CSProject {
	return &CSProject{Svc: svc, Table: table, Columns: columns, Predicate: predicate}
}

func (c *CSProject) Prepare() error {
	header, err := colstore.OpenHeader(c.Svc, c.Table)
	if err != nil {
		return err
	}

	names := c.Columns
	if len(names) == 0 {
		for _, col := range header.Columns {
			names = append(names, col.Name)
		}
	}
	descs := make([]types.ColumnDesc, len(names))
	for i, name := range names {
		idx, err := header.IndexOf("", name)
		if err != nil {
			return err
		}
		descs[i] = header.Columns[idx]
	}
	schema, err := types.NewSchema(descs)
	if err != nil {
		return err
	}
	c.schema = schema
	c.descs = descs

	var pages uint32
	if len(descs) > 0 {
		r, err := colstore.OpenColumnReader(c.Svc, c.Table, descs[0])
		if err != nil {
			return err
		}
		pages = r.PageCount()
	}
	numTuples := float64(pages) * estimatedTuplesPerPage
	if c.Predicate != nil {
		numTuples *= selectivityOf(c.Predicate)
	}
	c.cost = PlanCost{
		NumTuples:   numTuples,
		TupleSize:   tupleByteEstimate(c.schema),
		CPUCost:     float64(pages) * estimatedTuplesPerPage * float64(len(descs)),
		NumBlockIOs: float64(pages) * float64(len(descs)),
	}
	c.env = expr.NewEnvironment()
	return nil
}

func (c *CSProject) Initialize() error {
	readers := make([]*colstore.ColumnReader, len(c.descs))
	for i, desc := range c.descs {
		r, err := colstore.OpenColumnReader(c.Svc, c.Table, desc)
		if err != nil {
			return err
		}
		readers[i] = r
	}
	c.readers = readers
	return nil
}

func (c *CSProject) GetNextTuple() (*types.Tuple, error) {
	for {
		if len(c.readers) == 0 {
			return nil, nil
		}
		vals := make([]types.Value, len(c.readers))
		for i, r := range c.readers {
			v, ok, err := r.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			vals[i] = v
		}
		tuple := types.NewTuple(c.schema, vals)
		if c.Predicate == nil {
			return tuple, nil
		}
		c.env.Push(c.schema, tuple)
		ok, err := expr.EvaluatePredicate(c.env, c.Predicate)
		c.env.Pop()
		if err != nil {
			return nil, err
		}
		if ok {
			return tuple, nil
		}
	}
}

func (c *CSProject) Cleanup() error {
	c.readers = nil
	return nil
}

func (c *CSProject) Schema() *types.Schema { return c.schema }

func (c *CSProject) Cost() PlanCost { return c.cost }
