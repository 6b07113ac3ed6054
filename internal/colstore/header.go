package colstore

import (
	"fmt"

	"nanodb/internal/heap"
	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// HeaderFileName returns the table-level header file's logical name,
// "<table>/<table>.tbl" (§6's naming convention) — the same file a heap
// table would use for its single page-0+data file, here holding only the
// schema (§4.5: "a header page encodes the full table schema, same layout
// as §4.4").
func HeaderFileName(table string) string {
	return table + "/" + table + ".tbl"
}

// ColumnFileName returns a column's per-file name, "<table>/<table>.<col>.tbl".
func ColumnFileName(table, column string) string {
	return table + "/" + table + "." + column + ".tbl"
}

// CreateHeader writes the table-level schema header file, reusing §4.4's
// schema-page encoding verbatim (the free-page-chain head field is unused
// here and always written as heap.NoFreePage).
func CreateHeader(svc *storage.Service, table string, schema *types.Schema) error {
	name := HeaderFileName(table)
	if _, err := svc.CreateDBFile(name, storage.FileTypeColStoreData); err != nil {
		return fmt.Errorf("create column-store header %s: %w", name, err)
	}
	page, err := svc.LoadDBPage(name, 0, true)
	if err != nil {
		return err
	}
	if err := heap.EncodeSchemaPage(page.Data, heap.NoFreePage, schema); err != nil {
		svc.UnpinDBPage(page, false)
		return err
	}
	svc.UnpinDBPage(page, true)
	return svc.WriteDBFile(name, 0, 1, true)
}

// OpenHeader opens an existing table-level header file and returns its
// schema.
func OpenHeader(svc *storage.Service, table string) (*types.Schema, error) {
	name := HeaderFileName(table)
	if _, err := svc.OpenDBFile(name); err != nil {
		return nil, fmt.Errorf("open column-store header %s: %w", name, err)
	}
	page, err := svc.LoadDBPage(name, 0, true)
	if err != nil {
		return nil, err
	}
	_, schema, err := heap.DecodeSchemaPage(page.Data)
	svc.UnpinDBPage(page, false)
	return schema, err
}
