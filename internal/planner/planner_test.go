package planner

import (
	"testing"

	"nanodb/internal/expr"
	"nanodb/internal/heap"
	"nanodb/internal/plan"
	"nanodb/internal/storage"
	"nanodb/internal/txn"
	"nanodb/internal/types"
	"nanodb/internal/wal"
)

func newPlannerTestEnv(t *testing.T) (*storage.Service, *txn.Manager) {
	t.Helper()
	dir := t.TempDir()
	svc := storage.NewService(dir, storage.DefaultPageSize, storage.BufferPoolConfig{})
	log, err := wal.Open(dir, storage.DefaultPageSize, nil)
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	svc.Pool().SetWALForcer(log)
	mgr, err := txn.Open(svc, log, nil)
	if err != nil {
		t.Fatalf("txn.Open: %v", err)
	}
	return svc, mgr
}

func onePK(t *testing.T, svc *storage.Service, mgr *txn.Manager, name string, rows [][]types.Value) *heap.Table {
	t.Helper()
	cols := []types.ColumnDesc{{Name: "id", TableQualifier: name, Type: types.Integer}}
	schema, err := types.NewSchema(cols)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	tbl, err := heap.CreateTable(svc, mgr, name+"/"+name+".tbl", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	state := mgr.StartTransaction(true)
	for _, row := range rows {
		if _, err := tbl.AddTuple(state, row); err != nil {
			t.Fatalf("AddTuple: %v", err)
		}
	}
	if err := mgr.CommitTransaction(state); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	return tbl
}

func eqCol(leftQualifier, rightQualifier string) expr.Expr {
	return &expr.Comparison{
		Op:    expr.Eq,
		Left:  &expr.ColumnRef{Qualifier: leftQualifier, Name: "id"},
		Right: &expr.ColumnRef{Qualifier: rightQualifier, Name: "id"},
	}
}

func TestPlan_SingleLeaf(t *testing.T) {
	svc, mgr := newPlannerTestEnv(t)
	tbl := onePK(t, svc, mgr, "T", [][]types.Value{{types.IntValue(1)}, {types.IntValue(2)}})
	clause := SelectClause{Leaves: []Leaf{{Name: "T", Base: plan.NewFileScan(tbl, nil)}}}
	node, err := Plan(clause)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, ok := node.(*plan.FileScan); !ok {
		t.Fatalf("expected bare FileScan for a single leaf, got %T", node)
	}
}

func TestPlan_PushesWherePredicateIntoLeaf(t *testing.T) {
	svc, mgr := newPlannerTestEnv(t)
	tbl := onePK(t, svc, mgr, "T", [][]types.Value{{types.IntValue(1)}, {types.IntValue(2)}})
	where := &expr.Comparison{Op: expr.Gt, Left: &expr.ColumnRef{Qualifier: "T", Name: "id"}, Right: &expr.Literal{Value: types.IntValue(1)}}
	clause := SelectClause{Leaves: []Leaf{{Name: "T", Base: plan.NewFileScan(tbl, nil)}}, Where: where}
	node, err := Plan(clause)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	fs, ok := node.(*plan.FileScan)
	if !ok {
		t.Fatalf("expected FileScan, got %T", node)
	}
	if fs.Predicate == nil {
		t.Fatalf("expected WHERE predicate to be pushed into the single leaf's FileScan")
	}
}

func TestPlan_TwoLeavesInnerJoin(t *testing.T) {
	svc, mgr := newPlannerTestEnv(t)
	left := onePK(t, svc, mgr, "L", [][]types.Value{{types.IntValue(1)}, {types.IntValue(2)}})
	right := onePK(t, svc, mgr, "R", [][]types.Value{{types.IntValue(1)}, {types.IntValue(3)}})
	clause := SelectClause{
		Leaves: []Leaf{
			{Name: "L", Base: plan.NewFileScan(left, nil)},
			{Name: "R", Base: plan.NewFileScan(right, nil)},
		},
		Where: eqCol("L", "R"),
	}
	node, err := Plan(clause)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	join, ok := node.(*plan.NestedLoopsJoin)
	if !ok {
		t.Fatalf("expected NestedLoopsJoin, got %T", node)
	}
	if join.Predicate == nil {
		t.Fatalf("expected the equijoin predicate to be attached to the join")
	}
}

func TestPlan_WithProjectionAndOrderBy(t *testing.T) {
	svc, mgr := newPlannerTestEnv(t)
	tbl := onePK(t, svc, mgr, "T", [][]types.Value{{types.IntValue(2)}, {types.IntValue(1)}})
	clause := SelectClause{
		Leaves:     []Leaf{{Name: "T", Base: plan.NewFileScan(tbl, nil)}},
		Projection: []plan.ProjectionItem{{Wildcard: true}},
		OrderBy:    []plan.SortKey{{Expr: &expr.ColumnRef{Qualifier: "T", Name: "id"}, Asc: true}},
	}
	node, err := Plan(clause)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	srt, ok := node.(*plan.Sort)
	if !ok {
		t.Fatalf("expected a Sort at the root, got %T", node)
	}
	if _, ok := srt.Child.(*plan.Project); !ok {
		t.Fatalf("expected a Project beneath the Sort, got %T", srt.Child)
	}
}

// stubNode is a fixed-cost plan.Node used only to exercise the DP
// enumerator's cost comparisons without paying for a million real rows.
type stubNode struct {
	schema *types.Schema
	cost   plan.PlanCost
}

func (s *stubNode) Prepare() error                     { return nil }
func (s *stubNode) Initialize() error                  { return nil }
func (s *stubNode) GetNextTuple() (*types.Tuple, error) { return nil, nil }
func (s *stubNode) Cleanup() error                      { return nil }
func (s *stubNode) Schema() *types.Schema               { return s.schema }
func (s *stubNode) Cost() plan.PlanCost                 { return s.cost }

func stubSchema(t *testing.T, qualifier string) *types.Schema {
	t.Helper()
	s, err := types.NewSchema([]types.ColumnDesc{{Name: "id", TableQualifier: qualifier, Type: types.Integer}})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

// TestPlan_DPOrdersSmallTablesFirst reproduces §8's worked DP example:
// A(1000), B(10), C(1_000_000) with equijoins A.id=B.id and B.id=C.id. The
// optimal plan joins A and B before bringing in C; it must never ground
// out in an A⋈C cross product.
func TestPlan_DPOrdersSmallTablesFirst(t *testing.T) {
	a := &stubNode{schema: stubSchema(t, "A"), cost: plan.PlanCost{NumTuples: 1000, TupleSize: 8, CPUCost: 1000, NumBlockIOs: 20}}
	b := &stubNode{schema: stubSchema(t, "B"), cost: plan.PlanCost{NumTuples: 10, TupleSize: 8, CPUCost: 10, NumBlockIOs: 1}}
	c := &stubNode{schema: stubSchema(t, "C"), cost: plan.PlanCost{NumTuples: 1000000, TupleSize: 8, CPUCost: 1000000, NumBlockIOs: 20000}}

	where := &expr.Boolean{Op: expr.And, Operands: []expr.Expr{eqCol("A", "B"), eqCol("B", "C")}}
	clause := SelectClause{
		Leaves: []Leaf{
			{Name: "A", Base: a},
			{Name: "B", Base: b},
			{Name: "C", Base: c},
		},
		Where: where,
	}
	node, err := Plan(clause)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	join, ok := node.(*plan.NestedLoopsJoin)
	if !ok {
		t.Fatalf("expected a NestedLoopsJoin at the root, got %T", node)
	}
	oneSide, otherSide := len(join.Left.Schema().Columns), len(join.Right.Schema().Columns)
	if !(oneSide == 1 && otherSide == 2) && !(oneSide == 2 && otherSide == 1) {
		t.Fatalf("expected the top-level join to combine a 2-leaf {A,B} component with the lone C leaf, got sides of size %d and %d", oneSide, otherSide)
	}
	// The single-column side must be C: an A⋈C cross product first would
	// instead show a single-column side qualified A or the two-column
	// side missing B's qualifier entirely.
	single := join.Left
	if oneSide != 1 {
		single = join.Right
	}
	if q := single.Schema().Columns[0].TableQualifier; q != "C" {
		t.Fatalf("expected the lone leaf joined last to be C, got qualifier %q", q)
	}
}
