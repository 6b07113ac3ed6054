package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// LoadFile bulk-inserts CSV rows into an existing table (§6's LoadFile
// command), grounded on tinySQL's importer.ImportCSV but scoped down to
// this module's closed, pre-declared schema model: there is no header-row
// sniffing or type inference here, since the target table's schema
// already says what every column's type is. An empty field is NULL.
func (s *Session) LoadFile(table string, r io.Reader) (int, error) {
	h, ok := s.eng.catalog.Lookup(table)
	if !ok {
		return 0, fmt.Errorf("%w: table %q not found", storage.ErrSchema, table)
	}
	schema := h.Schema()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows := make([][]types.Value, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: reading CSV row: %v", storage.ErrIO, err)
		}
		if len(record) != len(schema.Columns) {
			return 0, fmt.Errorf("%w: row has %d fields, table %q has %d columns", storage.ErrSchema, len(record), table, len(schema.Columns))
		}
		row := make([]types.Value, len(record))
		for i, field := range record {
			v, err := parseField(schema.Columns[i].Type, field)
			if err != nil {
				return 0, fmt.Errorf("%w: column %q: %v", storage.ErrSchema, schema.Columns[i].Name, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return s.Insert(table, rows)
}

func parseField(t types.SQLType, field string) (types.Value, error) {
	if strings.TrimSpace(field) == "" {
		return types.NullValue(t), nil
	}
	switch t {
	case types.Integer:
		n, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return types.Value{}, err
		}
		return types.IntValue(int32(n)), nil
	case types.BigInt:
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.BigIntValue(n), nil
	case types.Float:
		f, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return types.Value{}, err
		}
		return types.FloatValue(float32(f)), nil
	case types.Double:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.DoubleValue(f), nil
	case types.Char, types.VarChar:
		return types.StringValue(t, field), nil
	default:
		return types.Value{}, fmt.Errorf("unsupported column type for CSV load: %v", t)
	}
}
