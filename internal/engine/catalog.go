package engine

import (
	"nanodb/internal/expr"
	"nanodb/internal/heap"
	"nanodb/internal/plan"
	"nanodb/internal/storage"
	"nanodb/internal/txn"
	"nanodb/internal/types"
)

// Splitting table access into capability interfaces, per §9's design note
// on heap managers that "implement a common interface but with several
// no-op methods": a column-store table can be Scanned but never takes a
// single-tuple Insert or RandomAccess Get, so it simply doesn't implement
// those interfaces rather than returning a runtime no-op error for them.

// TableHandle is the capability every registered table has in common.
type TableHandle interface {
	Name() string
	Schema() *types.Schema
}

// Scannable tables can produce a plan.Node scanning their full contents,
// optionally filtered inline.
type Scannable interface {
	TableHandle
	Scan(predicate expr.Expr) (plan.Node, error)
}

// Insertable tables accept one row at a time under an open transaction.
type Insertable interface {
	TableHandle
	Insert(state *txn.State, row []types.Value) (types.TupleID, error)
}

// RandomAccess tables can fetch a single tuple by TupleID without a scan.
type RandomAccess interface {
	TableHandle
	Get(id types.TupleID) (*types.Tuple, error)
}

// heapHandle adapts *heap.Table to every capability: the baseline table
// kind (§1: "the engine supports heap tables without indexes in its
// baseline path") supports scan, insert, and random access alike.
type heapHandle struct{ tbl *heap.Table }

func (h heapHandle) Name() string                { return h.tbl.Name() }
func (h heapHandle) Schema() *types.Schema        { return h.tbl.Schema() }
func (h heapHandle) Scan(predicate expr.Expr) (plan.Node, error) {
	return plan.NewFileScan(h.tbl, predicate), nil
}
func (h heapHandle) Insert(state *txn.State, row []types.Value) (types.TupleID, error) {
	return h.tbl.AddTuple(state, row)
}
func (h heapHandle) Get(id types.TupleID) (*types.Tuple, error) { return h.tbl.GetTuple(id) }

// columnStoreHandle adapts a column-store table (§4.5): it is Scannable
// only — it is written once in bulk by colstore.WriteTable and has no
// per-row insert or random-access lookup.
type columnStoreHandle struct {
	svc    *storage.Service
	name   string
	schema *types.Schema
}

func (c columnStoreHandle) Name() string         { return c.name }
func (c columnStoreHandle) Schema() *types.Schema { return c.schema }
func (c columnStoreHandle) Scan(predicate expr.Expr) (plan.Node, error) {
	return plan.NewCSProject(c.svc, c.name, nil, predicate), nil
}

var (
	_ Scannable   = heapHandle{}
	_ Insertable  = heapHandle{}
	_ RandomAccess = heapHandle{}
	_ Scannable   = columnStoreHandle{}
)

// Catalog tracks every table opened or created in this engine by name.
type Catalog struct {
	tables map[string]TableHandle
}

func newCatalog() *Catalog {
	return &Catalog{tables: make(map[string]TableHandle)}
}

func (c *Catalog) register(h TableHandle) { c.tables[h.Name()] = h }

// Lookup resolves a table name to its handle, for the planner's caller to
// build a Leaf from before checking which capabilities it needs.
func (c *Catalog) Lookup(name string) (TableHandle, bool) {
	h, ok := c.tables[name]
	return h, ok
}
