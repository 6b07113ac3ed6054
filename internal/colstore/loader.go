package colstore

import (
	"fmt"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// TableData is the bulk-load input §4.5 names "tableInfo": a schema plus,
// for every column, the full column of values to load (column-major, the
// natural shape for a column store's loader).
type TableData struct {
	Table   string
	Schema  *types.Schema
	Columns [][]types.Value // Columns[i] holds schema.Columns[i]'s values
}

// WriteTable bulk-loads data into a new column-store table: it creates the
// table-level schema header file, then for each column chooses an encoding
// via analyzer and writes that column's own file (§4.5's writeTable entry
// point).
func WriteTable(svc *storage.Service, analyzer Analyzer, data TableData) error {
	if len(data.Columns) != len(data.Schema.Columns) {
		return fmt.Errorf("%w: tableInfo has %d column value-lists for a %d-column schema",
			storage.ErrInvalidArgument, len(data.Columns), len(data.Schema.Columns))
	}
	if err := CreateHeader(svc, data.Table, data.Schema); err != nil {
		return err
	}

	for i, col := range data.Schema.Columns {
		values := data.Columns[i]
		encoding := analyzer.ChooseEncoding(col, values)
		if err := writeColumn(svc, data.Table, col, encoding, values); err != nil {
			return err
		}
	}
	return nil
}

// writeColumn creates column's own file, writes its page-0 metadata, and
// dispatches to the encoding-specific block writer.
func writeColumn(svc *storage.Service, table string, col types.ColumnDesc, encoding Encoding, values []types.Value) error {
	name := ColumnFileName(table, col.Name)
	if _, err := svc.CreateDBFile(name, storage.FileTypeColStoreData); err != nil {
		return fmt.Errorf("create column file %s: %w", name, err)
	}

	meta := columnMeta{col: col, encoding: encoding}
	if encoding == Dictionary {
		meta.dictionary = buildDictionary(values)
		meta.bitWidth = codeBitWidth(len(meta.dictionary))
	}

	page, err := svc.LoadDBPage(name, 0, true)
	if err != nil {
		return err
	}
	if err := encodeColumnMeta(page.Data, meta); err != nil {
		svc.UnpinDBPage(page, false)
		return err
	}
	svc.UnpinDBPage(page, true)

	switch encoding {
	case Uncompressed:
		if err := writeUncompressed(svc, name, col, values); err != nil {
			return err
		}
	case RunLength:
		if err := writeRunLength(svc, name, col, values); err != nil {
			return err
		}
	case Dictionary:
		if err := writeDictionary(svc, name, meta, values); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown column encoding %v", storage.ErrInvalidArgument, encoding)
	}

	file, ok := svc.GetOpenDBFile(name)
	if !ok {
		return fmt.Errorf("%w: column file %s is not open", storage.ErrInvalidArgument, name)
	}
	pc, err := file.PageCount()
	if err != nil {
		return err
	}
	return svc.WriteDBFile(name, 0, pc, true)
}
