package colstore

import (
	"testing"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

func newTestService(t *testing.T) *storage.Service {
	t.Helper()
	dir := t.TempDir()
	return storage.NewService(dir, storage.DefaultPageSize, storage.BufferPoolConfig{})
}

func testSchema(t *testing.T) *types.Schema {
	t.Helper()
	schema, err := types.NewSchema([]types.ColumnDesc{
		{Name: "id", TableQualifier: "Reading", Type: types.Integer},
		{Name: "city", TableQualifier: "Reading", Type: types.VarChar, Length: 32},
		{Name: "temp", TableQualifier: "Reading", Type: types.Double},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return schema
}

func TestWriteTable_HeaderRoundTrips(t *testing.T) {
	svc := newTestService(t)
	schema := testSchema(t)
	data := TableData{
		Table:  "Reading",
		Schema: schema,
		Columns: [][]types.Value{
			{types.IntValue(1), types.IntValue(2), types.IntValue(3)},
			{types.StringValue(types.VarChar, "nyc"), types.StringValue(types.VarChar, "nyc"), types.StringValue(types.VarChar, "sf")},
			{types.DoubleValue(70.1), types.DoubleValue(70.1), types.DoubleValue(61.4)},
		},
	}
	if err := WriteTable(svc, HeuristicAnalyzer{}, data); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	got, err := OpenHeader(svc, "Reading")
	if err != nil {
		t.Fatalf("OpenHeader: %v", err)
	}
	if len(got.Columns) != len(schema.Columns) {
		t.Fatalf("schema column count mismatch: got %d want %d", len(got.Columns), len(schema.Columns))
	}
}

func readAllColumn(t *testing.T, svc *storage.Service, table string, col types.ColumnDesc) []types.Value {
	t.Helper()
	r, err := OpenColumnReader(svc, table, col)
	if err != nil {
		t.Fatalf("OpenColumnReader(%s): %v", col.Name, err)
	}
	var values []types.Value
	for {
		v, ok, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		values = append(values, v)
	}
	return values
}

func TestWriteTable_UncompressedRoundTrips(t *testing.T) {
	svc := newTestService(t)
	schema := testSchema(t)
	ids := []types.Value{types.IntValue(10), types.IntValue(20), types.IntValue(30), types.NullValue(types.Integer)}
	data := TableData{
		Table:  "Reading",
		Schema: schema,
		Columns: [][]types.Value{
			ids,
			{types.StringValue(types.VarChar, "a"), types.StringValue(types.VarChar, "b"), types.StringValue(types.VarChar, "c"), types.StringValue(types.VarChar, "d")},
			{types.DoubleValue(1), types.DoubleValue(2), types.DoubleValue(3), types.DoubleValue(4)},
		},
	}
	analyzer := HeuristicAnalyzer{DictionaryMaxRatio: 0, RunLengthMinAvgRun: 1000}
	if err := WriteTable(svc, analyzer, data); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	got := readAllColumn(t, svc, "Reading", schema.Columns[0])
	if len(got) != len(ids) {
		t.Fatalf("got %d values, want %d", len(got), len(ids))
	}
	for i, v := range got {
		if v.Null != ids[i].Null || (!v.Null && v.IVal != ids[i].IVal) {
			t.Errorf("value %d: got %+v want %+v", i, v, ids[i])
		}
	}
}

func TestWriteTable_RunLengthRoundTrips(t *testing.T) {
	svc := newTestService(t)
	schema := testSchema(t)
	cities := []types.Value{
		types.StringValue(types.VarChar, "nyc"), types.StringValue(types.VarChar, "nyc"),
		types.StringValue(types.VarChar, "nyc"), types.StringValue(types.VarChar, "sf"),
		types.StringValue(types.VarChar, "sf"),
	}
	data := TableData{
		Table:  "Reading",
		Schema: schema,
		Columns: [][]types.Value{
			{types.IntValue(1), types.IntValue(2), types.IntValue(3), types.IntValue(4), types.IntValue(5)},
			cities,
			{types.DoubleValue(1), types.DoubleValue(2), types.DoubleValue(3), types.DoubleValue(4), types.DoubleValue(5)},
		},
	}
	analyzer := HeuristicAnalyzer{RunLengthMinAvgRun: 2}
	if err := WriteTable(svc, analyzer, data); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	got := readAllColumn(t, svc, "Reading", schema.Columns[1])
	if len(got) != len(cities) {
		t.Fatalf("got %d values, want %d", len(got), len(cities))
	}
	for i, v := range got {
		if v.SVal != cities[i].SVal {
			t.Errorf("value %d: got %q want %q", i, v.SVal, cities[i].SVal)
		}
	}
}

func TestWriteTable_DictionaryRoundTrips(t *testing.T) {
	svc := newTestService(t)
	schema := testSchema(t)
	cities := make([]types.Value, 0, 9)
	names := []string{"nyc", "sf", "la"}
	for i := 0; i < 9; i++ {
		cities = append(cities, types.StringValue(types.VarChar, names[i%3]))
	}
	data := TableData{
		Table:  "Reading",
		Schema: schema,
		Columns: [][]types.Value{
			make([]types.Value, 9),
			cities,
			make([]types.Value, 9),
		},
	}
	for i := range data.Columns[0] {
		data.Columns[0][i] = types.IntValue(int32(i))
		data.Columns[2][i] = types.DoubleValue(float64(i))
	}
	analyzer := HeuristicAnalyzer{DictionaryMaxRatio: 0.5, RunLengthMinAvgRun: 1000}
	if err := WriteTable(svc, analyzer, data); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	got := readAllColumn(t, svc, "Reading", schema.Columns[1])
	if len(got) != len(cities) {
		t.Fatalf("got %d values, want %d", len(got), len(cities))
	}
	for i, v := range got {
		if v.SVal != cities[i].SVal {
			t.Errorf("value %d: got %q want %q", i, v.SVal, cities[i].SVal)
		}
	}
}
