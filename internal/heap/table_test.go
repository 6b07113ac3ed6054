package heap

import (
	"testing"

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

func testSchema(t *testing.T) *types.Schema {
	t.Helper()
	schema, err := types.NewSchema([]types.ColumnDesc{
		{Name: "id", TableQualifier: "Employee", Type: types.Integer},
		{Name: "name", TableQualifier: "Employee", Type: types.VarChar, Length: 64},
		{Name: "dept", TableQualifier: "Employee", Type: types.Char, Length: 8},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return schema
}

func TestTable_AddAndGetTuple(t *testing.T) {
	svc, mgr := newTestEnv(t)
	schema := testSchema(t)
	tbl, err := CreateTable(svc, mgr, "Employee/Employee.tbl", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	state := mgr.StartTransaction(true)
	fp, err := tbl.AddTuple(state, []types.Value{
		types.IntValue(1),
		types.StringValue(types.VarChar, "Ada"),
		types.StringValue(types.Char, "eng"),
	})
	if err != nil {
		t.Fatalf("AddTuple: %v", err)
	}
	if err := mgr.CommitTransaction(state); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}

	got, err := tbl.GetTuple(fp)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if got.Values[0].IVal != 1 || got.Values[1].SVal != "Ada" || got.Values[2].SVal != "eng" {
		t.Fatalf("unexpected tuple: %+v", got.Values)
	}
}

func TestTable_FullScan(t *testing.T) {
	svc, mgr := newTestEnv(t)
	schema := testSchema(t)
	tbl, err := CreateTable(svc, mgr, "Employee/Employee.tbl", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	state := mgr.StartTransaction(true)
	names := []string{"Ada", "Grace", "Alan"}
	for i, name := range names {
		if _, err := tbl.AddTuple(state, []types.Value{
			types.IntValue(int32(i)),
			types.StringValue(types.VarChar, name),
			types.StringValue(types.Char, "eng"),
		}); err != nil {
			t.Fatalf("AddTuple(%s): %v", name, err)
		}
	}
	if err := mgr.CommitTransaction(state); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}

	seen := make(map[string]bool)
	tup, err := tbl.GetFirstTuple()
	if err != nil {
		t.Fatalf("GetFirstTuple: %v", err)
	}
	for tup != nil {
		seen[tup.Values[1].SVal] = true
		tup, err = tbl.GetNextTuple(tup.ID)
		if err != nil {
			t.Fatalf("GetNextTuple: %v", err)
		}
	}
	for _, name := range names {
		if !seen[name] {
			t.Errorf("full scan missed tuple %q", name)
		}
	}
}

func TestTable_DeleteTombstonesAndReclaims(t *testing.T) {
	svc, mgr := newTestEnv(t)
	schema := testSchema(t)
	tbl, err := CreateTable(svc, mgr, "Employee/Employee.tbl", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	state := mgr.StartTransaction(true)
	fp, err := tbl.AddTuple(state, []types.Value{
		types.IntValue(1),
		types.StringValue(types.VarChar, "Ada"),
		types.StringValue(types.Char, "eng"),
	})
	if err != nil {
		t.Fatalf("AddTuple: %v", err)
	}
	if err := tbl.DeleteTuple(state, fp); err != nil {
		t.Fatalf("DeleteTuple: %v", err)
	}
	if err := mgr.CommitTransaction(state); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}

	if _, err := tbl.GetTuple(fp); err == nil {
		t.Fatal("expected error reading a deleted tuple")
	}

	got, err := tbl.GetFirstTuple()
	if err != nil {
		t.Fatalf("GetFirstTuple: %v", err)
	}
	if got != nil {
		t.Fatalf("expected empty table after deleting its only tuple, got %+v", got.Values)
	}
}

// TestTable_AddTupleSkipsLiveFreeListHead reproduces the insert/delete/
// insert churn scenario: emptying page 1 reformats it in place as the
// free-list head, and a subsequent AddTuple resuming its forward scan from
// scanCursor (still pointing at page 1) must skip that live free-list node
// rather than reinitializing it as a data page out from under the chain.
func TestTable_AddTupleSkipsLiveFreeListHead(t *testing.T) {
	svc, mgr := newTestEnv(t)
	schema := testSchema(t)
	tbl, err := CreateTable(svc, mgr, "Employee/Employee.tbl", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	state := mgr.StartTransaction(true)
	fp, err := tbl.AddTuple(state, []types.Value{
		types.IntValue(1),
		types.StringValue(types.VarChar, "Ada"),
		types.StringValue(types.Char, "eng"),
	})
	if err != nil {
		t.Fatalf("AddTuple: %v", err)
	}
	if fp.PageNo != 1 {
		t.Fatalf("expected the first tuple on page 1, got page %d", fp.PageNo)
	}
	if err := tbl.DeleteTuple(state, fp); err != nil {
		t.Fatalf("DeleteTuple: %v", err)
	}
	if err := mgr.CommitTransaction(state); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if tbl.freeListHead != 1 {
		t.Fatalf("expected emptying page 1 to reformat it as the free-list head, got freeListHead=%d", tbl.freeListHead)
	}

	// scanCursor is still 1: AddTuple must skip the live free-list head
	// page rather than reinitializing it, and allocDataPageLocked must be
	// the one to unlink it from the chain when it reuses it.
	state2 := mgr.StartTransaction(true)
	fp2, err := tbl.AddTuple(state2, []types.Value{
		types.IntValue(2),
		types.StringValue(types.VarChar, "Grace"),
		types.StringValue(types.Char, "nav"),
	})
	if err != nil {
		t.Fatalf("AddTuple after freeing page 1: %v", err)
	}
	if err := mgr.CommitTransaction(state2); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if fp2.PageNo != 1 {
		t.Fatalf("expected page 1 to be properly unlinked and reused, got page %d", fp2.PageNo)
	}
	if tbl.freeListHead != NoFreePage {
		t.Fatalf("expected the free list to be drained once its only page is reused, got freeListHead=%d (a stale head here means the chain was left corrupted)", tbl.freeListHead)
	}

	got, err := tbl.GetTuple(fp2)
	if err != nil {
		t.Fatalf("GetTuple(fp2): %v", err)
	}
	if got.Values[1].SVal != "Grace" {
		t.Fatalf("unexpected tuple after reusing the free-list head: %+v", got.Values)
	}
}

func TestTable_ReopenPreservesSchemaAndData(t *testing.T) {
	svc, mgr := newTestEnv(t)
	schema := testSchema(t)
	tbl, err := CreateTable(svc, mgr, "Employee/Employee.tbl", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	state := mgr.StartTransaction(true)
	if _, err := tbl.AddTuple(state, []types.Value{
		types.IntValue(7),
		types.StringValue(types.VarChar, "Grace"),
		types.StringValue(types.Char, "nav"),
	}); err != nil {
		t.Fatalf("AddTuple: %v", err)
	}
	if err := mgr.CommitTransaction(state); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}

	reopened, err := OpenTable(svc, mgr, "Employee/Employee.tbl")
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	if len(reopened.Schema().Columns) != len(schema.Columns) {
		t.Fatalf("schema column count mismatch after reopen: got %d want %d", len(reopened.Schema().Columns), len(schema.Columns))
	}
	tup, err := reopened.GetFirstTuple()
	if err != nil {
		t.Fatalf("GetFirstTuple after reopen: %v", err)
	}
	if tup == nil || tup.Values[1].SVal != "Grace" {
		t.Fatalf("reopened table missing expected tuple, got %+v", tup)
	}
}
