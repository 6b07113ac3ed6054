package plan

import (
	"testing"

	"nanodb/internal/colstore"
	"nanodb/internal/expr"
	"nanodb/internal/storage"
	"nanodb/internal/types"
)

func newColStoreTable(t *testing.T) (*storage.Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc := storage.NewService(dir, storage.DefaultPageSize, storage.BufferPoolConfig{})
	schema := schemaOf(t, "Reading",
		types.ColumnDesc{Name: "id", Type: types.Integer},
		types.ColumnDesc{Name: "temp", Type: types.Double},
	)
	data := colstore.TableData{
		Table:  "Reading",
		Schema: schema,
		Columns: [][]types.Value{
			{types.IntValue(1), types.IntValue(2), types.IntValue(3)},
			{types.DoubleValue(10.5), types.DoubleValue(20.5), types.DoubleValue(30.5)},
		},
	}
	if err := colstore.WriteTable(svc, colstore.HeuristicAnalyzer{}, data); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	return svc, "Reading"
}

func TestCSProject_AllColumns(t *testing.T) {
	svc, table := newColStoreTable(t)
	node := NewCSProject(svc, table, nil, nil)
	rows := drain(t, node)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[1].Values[0].IVal != 2 || rows[1].Values[1].FVal != 20.5 {
		t.Fatalf("unexpected row 1: %+v", rows[1].Values)
	}
}

func TestCSProject_PredicateAndSubsetColumns(t *testing.T) {
	svc, table := newColStoreTable(t)
	pred := &expr.Comparison{Op: expr.Gt, Left: &expr.ColumnRef{Name: "id"}, Right: &expr.Literal{Value: types.IntValue(1)}}
	node := NewCSProject(svc, table, []string{"id"}, pred)
	rows := drain(t, node)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if len(r.Values) != 1 {
			t.Fatalf("expected single projected column, got %+v", r.Values)
		}
	}
}
