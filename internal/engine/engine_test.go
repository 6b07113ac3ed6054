package engine

import (
	"strings"
	"testing"

	"nanodb/internal/colstore"
	"nanodb/internal/planner"
	"nanodb/internal/storage"
	"nanodb/internal/types"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := Config{Transactions: true, BaseDir: t.TempDir(), PageSize: storage.DefaultPageSize}
	eng, status, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v (status %d)", err, status)
	}
	t.Cleanup(func() {
		if status := eng.Close(); status != ExitNormal {
			t.Errorf("Close: exit status %d", status)
		}
	})
	return eng
}

func employeeSchema(t *testing.T) *types.Schema {
	t.Helper()
	schema, err := types.NewSchema([]types.ColumnDesc{
		{Name: "id", TableQualifier: "employee", Type: types.Integer},
		{Name: "name", TableQualifier: "employee", Type: types.VarChar},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return schema
}

func TestSession_CreateInsertSelect(t *testing.T) {
	eng := openTestEngine(t)
	s := eng.NewSession()

	if _, err := s.CreateTable("employee", employeeSchema(t)); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	n, err := s.Insert("employee", [][]types.Value{
		{types.IntValue(1), types.StringValue(types.VarChar, "Ada")},
		{types.IntValue(2), types.StringValue(types.VarChar, "Grace")},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows inserted, got %d", n)
	}

	h, ok := eng.Catalog().Lookup("employee")
	if !ok {
		t.Fatalf("expected employee to be registered in the catalog")
	}
	scan, ok := h.(Scannable)
	if !ok {
		t.Fatalf("expected employee to be Scannable")
	}
	base, err := scan.Scan(nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	clause := planner.SelectClause{Leaves: []planner.Leaf{{Name: "employee", Base: base}}}
	rs, err := s.Select(clause)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	defer rs.Close()

	count := 0
	for {
		tup, err := rs.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 tuples back, got %d", count)
	}
}

func TestSession_InsertRejectsNonInsertableTable(t *testing.T) {
	eng := openTestEngine(t)
	s := eng.NewSession()
	schema := employeeSchema(t)
	if err := s.CreateColumnStoreTable(columnStoreTestData(schema)); err != nil {
		t.Fatalf("CreateColumnStoreTable: %v", err)
	}
	if _, err := s.Insert("employee", [][]types.Value{{types.IntValue(3), types.StringValue(types.VarChar, "Linus")}}); err == nil {
		t.Fatalf("expected Insert against a column-store table to fail")
	}
}

func TestSession_BeginCommitRollback(t *testing.T) {
	eng := openTestEngine(t)
	s := eng.NewSession()
	if _, err := s.CreateTable("employee", employeeSchema(t)); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Begin(); err == nil {
		t.Fatalf("expected a second Begin on the same session to fail")
	}
	if _, err := s.Insert("employee", [][]types.Value{{types.IntValue(1), types.StringValue(types.VarChar, "Ada")}}); err != nil {
		t.Fatalf("Insert under open transaction: %v", err)
	}
	if err := s.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := s.Rollback(); err == nil {
		t.Fatalf("expected Rollback with no open transaction to fail")
	}

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.Insert("employee", [][]types.Value{{types.IntValue(2), types.StringValue(types.VarChar, "Grace")}}); err != nil {
		t.Fatalf("Insert under open transaction: %v", err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestSession_LoadFile(t *testing.T) {
	eng := openTestEngine(t)
	s := eng.NewSession()
	if _, err := s.CreateTable("employee", employeeSchema(t)); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	csvData := "1,Ada\n2,Grace\n3,\n"
	n, err := s.LoadFile("employee", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows loaded, got %d", n)
	}
}

func TestSession_ExitRollsBackOpenTransaction(t *testing.T) {
	eng := openTestEngine(t)
	s := eng.NewSession()
	if _, err := s.CreateTable("employee", employeeSchema(t)); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if status := s.Exit(); status != ExitNormal {
		t.Fatalf("Exit: expected ExitNormal, got %d", status)
	}
}

func TestConfig_ApplyOption(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyOption("nanodb.pagesize", "4096"); err != nil {
		t.Fatalf("ApplyOption pagesize: %v", err)
	}
	if cfg.PageSize != 4096 {
		t.Fatalf("expected PageSize 4096, got %d", cfg.PageSize)
	}
	if err := cfg.ApplyOption("nanodb.transactions", "off"); err != nil {
		t.Fatalf("ApplyOption transactions: %v", err)
	}
	if cfg.Transactions {
		t.Fatalf("expected Transactions false after setting \"off\"")
	}
	if err := cfg.ApplyOption("nanodb.bogus", "x"); err == nil {
		t.Fatalf("expected an unrecognized key to error")
	}
}

func columnStoreTestData(schema *types.Schema) colstore.TableData {
	return colstore.TableData{
		Table:  "employee",
		Schema: schema,
		Columns: [][]types.Value{
			{types.IntValue(1)},
			{types.StringValue(types.VarChar, "Ada")},
		},
	}
}
