package plan

import (
	"testing"

	"nanodb/internal/expr"
	"nanodb/internal/heap"
	"nanodb/internal/storage"
	"nanodb/internal/txn"
	"nanodb/internal/types"
	"nanodb/internal/wal"
)

func newTestEnv(t *testing.T) (*storage.Service, *txn.Manager) {
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

func schemaOf(t *testing.T, qualifier string, cols ...types.ColumnDesc) *types.Schema {
	t.Helper()
	for i := range cols {
		cols[i].TableQualifier = qualifier
	}
	s, err := types.NewSchema(cols)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func newTable(t *testing.T, svc *storage.Service, mgr *txn.Manager, name, qualifier string, rows [][]types.Value) *heap.Table {
	t.Helper()
	schema := schemaOf(t, qualifier,
		types.ColumnDesc{Name: "a", Type: types.Integer},
		types.ColumnDesc{Name: "b", Type: types.Integer},
	)
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

func drain(t *testing.T, n Node) []*types.Tuple {
	t.Helper()
	if err := n.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := n.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	var out []*types.Tuple
	for {
		tup, err := n.GetNextTuple()
		if err != nil {
			t.Fatalf("GetNextTuple: %v", err)
		}
		if tup == nil {
			break
		}
		out = append(out, tup)
	}
	if err := n.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	return out
}

func TestFileScan_NoPredicate(t *testing.T) {
	svc, mgr := newTestEnv(t)
	tbl := newTable(t, svc, mgr, "T", "T", [][]types.Value{
		{types.IntValue(0), types.NullValue(types.Integer)},
		{types.IntValue(1), types.IntValue(10)},
		{types.IntValue(2), types.IntValue(20)},
	})
	rows := drain(t, NewFileScan(tbl, nil))
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
}

func TestFileScan_WithPredicate(t *testing.T) {
	svc, mgr := newTestEnv(t)
	tbl := newTable(t, svc, mgr, "T", "T", [][]types.Value{
		{types.IntValue(0), types.NullValue(types.Integer)},
		{types.IntValue(1), types.IntValue(10)},
		{types.IntValue(2), types.IntValue(20)},
		{types.IntValue(3), types.IntValue(30)},
		{types.IntValue(4), types.NullValue(types.Integer)},
	})
	pred := &expr.Boolean{Op: expr.And, Operands: []expr.Expr{
		&expr.Comparison{Op: expr.Gt, Left: &expr.ColumnRef{Qualifier: "T", Name: "b"}, Right: &expr.Literal{Value: types.IntValue(15)}},
		&expr.Comparison{Op: expr.Lt, Left: &expr.ColumnRef{Qualifier: "T", Name: "b"}, Right: &expr.Literal{Value: types.IntValue(25)}},
	}}
	rows := drain(t, NewFileScan(tbl, pred))
	if len(rows) != 1 || rows[0].Values[1].IVal != 20 {
		t.Fatalf("got %+v, want one row with b=20", rows)
	}
}

func TestSimpleFilter(t *testing.T) {
	svc, mgr := newTestEnv(t)
	tbl := newTable(t, svc, mgr, "T", "T", [][]types.Value{
		{types.IntValue(1), types.IntValue(10)},
		{types.IntValue(2), types.IntValue(20)},
	})
	pred := &expr.Comparison{Op: expr.Gt, Left: &expr.ColumnRef{Qualifier: "T", Name: "b"}, Right: &expr.Literal{Value: types.IntValue(15)}}
	rows := drain(t, NewSimpleFilter(NewFileScan(tbl, nil), pred))
	if len(rows) != 1 || rows[0].Values[1].IVal != 20 {
		t.Fatalf("got %+v", rows)
	}
}

func TestNestedLoopsJoin_Inner(t *testing.T) {
	svc, mgr := newTestEnv(t)
	left := newTable(t, svc, mgr, "L", "L", [][]types.Value{
		{types.IntValue(1), types.IntValue(100)},
		{types.IntValue(2), types.IntValue(200)},
	})
	right := newTable(t, svc, mgr, "R", "R", [][]types.Value{
		{types.IntValue(1), types.IntValue(1000)},
		{types.IntValue(3), types.IntValue(3000)},
	})
	pred := &expr.Comparison{Op: expr.Eq, Left: &expr.ColumnRef{Qualifier: "L", Name: "a"}, Right: &expr.ColumnRef{Qualifier: "R", Name: "a"}}
	join := NewNestedLoopsJoin(NewFileScan(left, nil), NewFileScan(right, nil), InnerJoin, pred)
	rows := drain(t, join)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Values[0].IVal != 1 || rows[0].Values[3].IVal != 1000 {
		t.Fatalf("unexpected join row: %+v", rows[0].Values)
	}
}

func TestNestedLoopsJoin_LeftOuter(t *testing.T) {
	svc, mgr := newTestEnv(t)
	left := newTable(t, svc, mgr, "L", "L", [][]types.Value{
		{types.IntValue(1), types.IntValue(100)},
		{types.IntValue(2), types.IntValue(200)},
	})
	right := newTable(t, svc, mgr, "R", "R", [][]types.Value{
		{types.IntValue(1), types.IntValue(1000)},
	})
	pred := &expr.Comparison{Op: expr.Eq, Left: &expr.ColumnRef{Qualifier: "L", Name: "a"}, Right: &expr.ColumnRef{Qualifier: "R", Name: "a"}}
	join := NewNestedLoopsJoin(NewFileScan(left, nil), NewFileScan(right, nil), LeftOuterJoin, pred)
	rows := drain(t, join)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	var sawNullPad bool
	for _, r := range rows {
		if r.Values[0].IVal == 2 && r.Values[2].Null {
			sawNullPad = true
		}
	}
	if !sawNullPad {
		t.Fatalf("expected unmatched left row padded with NULL right side, got %+v", rows)
	}
}

func TestNestedLoopsJoin_FullOuter(t *testing.T) {
	svc, mgr := newTestEnv(t)
	left := newTable(t, svc, mgr, "L", "L", [][]types.Value{
		{types.IntValue(1), types.IntValue(100)},
		{types.IntValue(2), types.IntValue(200)},
	})
	right := newTable(t, svc, mgr, "R", "R", [][]types.Value{
		{types.IntValue(2), types.IntValue(2000)},
		{types.IntValue(3), types.IntValue(3000)},
	})
	pred := &expr.Comparison{Op: expr.Eq, Left: &expr.ColumnRef{Qualifier: "L", Name: "a"}, Right: &expr.ColumnRef{Qualifier: "R", Name: "a"}}
	join := NewNestedLoopsJoin(NewFileScan(left, nil), NewFileScan(right, nil), FullOuterJoin, pred)
	rows := drain(t, join)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (1 matched + 1 left-unmatched + 1 right-unmatched): %+v", len(rows), rows)
	}
}

func TestProject_Wildcard(t *testing.T) {
	svc, mgr := newTestEnv(t)
	tbl := newTable(t, svc, mgr, "T", "T", [][]types.Value{
		{types.IntValue(1), types.IntValue(10)},
	})
	proj := NewProject(NewFileScan(tbl, nil), []ProjectionItem{{Wildcard: true}})
	rows := drain(t, proj)
	if len(rows) != 1 || len(rows[0].Values) != 2 {
		t.Fatalf("got %+v", rows)
	}
}

func TestProject_AliasedExpr(t *testing.T) {
	svc, mgr := newTestEnv(t)
	tbl := newTable(t, svc, mgr, "T", "T", [][]types.Value{
		{types.IntValue(2), types.IntValue(3)},
	})
	proj := NewProject(NewFileScan(tbl, nil), []ProjectionItem{
		{Expr: &expr.Arithmetic{Op: expr.Mul, Left: &expr.ColumnRef{Qualifier: "T", Name: "a"}, Right: &expr.ColumnRef{Qualifier: "T", Name: "b"}}, Alias: "product"},
	})
	rows := drain(t, proj)
	if len(rows) != 1 || rows[0].Values[0].IVal != 6 {
		t.Fatalf("got %+v", rows)
	}
	if proj.Schema().Columns[0].Name != "product" {
		t.Fatalf("expected alias 'product', got %q", proj.Schema().Columns[0].Name)
	}
}

func TestSort_NullsLast(t *testing.T) {
	svc, mgr := newTestEnv(t)
	tbl := newTable(t, svc, mgr, "T", "T", [][]types.Value{
		{types.IntValue(1), types.IntValue(20)},
		{types.IntValue(2), types.NullValue(types.Integer)},
		{types.IntValue(3), types.IntValue(10)},
	})
	srt := NewSort(NewFileScan(tbl, nil), []SortKey{
		{Expr: &expr.ColumnRef{Qualifier: "T", Name: "b"}, Asc: true},
	})
	rows := drain(t, srt)
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Values[1].IVal != 10 || rows[1].Values[1].IVal != 20 || !rows[2].Values[1].Null {
		t.Fatalf("expected 10, 20, NULL order, got %+v, %+v, %+v", rows[0].Values[1], rows[1].Values[1], rows[2].Values[1])
	}
}

func TestRename(t *testing.T) {
	svc, mgr := newTestEnv(t)
	tbl := newTable(t, svc, mgr, "T", "T", [][]types.Value{
		{types.IntValue(1), types.IntValue(2)},
	})
	ren := NewRename(NewFileScan(tbl, nil), "alias")
	rows := drain(t, ren)
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if ren.Schema().Columns[0].TableQualifier != "alias" {
		t.Fatalf("expected qualifier 'alias', got %q", ren.Schema().Columns[0].TableQualifier)
	}
}
