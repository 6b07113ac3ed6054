// Package heap implements the heap table manager described in spec.md
// §4.4: slotted data pages holding variable-length tuples, a schema header
// on page 0, and the addTuple/getTuple/getFirstTuple/getNextTuple/
// deleteTuple scan operations.
//
// Grounded on tinySQL's internal/storage/pager/slotted_page.go (slot
// directory growing forward from the page header, tuple bodies growing
// backward from the page end, tombstone deletes, in-place-or-relocate
// updates, Compact) and pager/freelist.go (the free-page chain reused here
// per spec.md's §4.4 "may compact" reuse of emptied pages), adapted to
// big-endian encoding (§6) and to storing an explicit relational Schema
// instead of tinySQL's JSON-encoded catalog row.
package heap

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// Page-0 layout, immediately after storage.Page0HeaderSize:
//
//	[0:4)   freeListHead (uint32 page number, 0 = none — page 0 is always
//	        the schema page, so 0 doubles safely as the "no free page" value)
//	[4:6)   column count (uint16)
//	per column: typeID(1) length(uint16) qualifierLen(1) qualifier
//	            nameLen(1) name
//	[..:..+2) key count (uint16)
//	per key: columnIndex(uint16) kind(1) hasRef(1) [refTableLen(1) refTable
//	         refColumnLen(1) refColumn]
const (
	offFreeListHead = storage.Page0HeaderSize
	offColumnCount  = offFreeListHead + 4
	schemaBodyStart = offColumnCount + 2
)

// NoFreePage is the "end of free-page chain" sentinel: page 0 is always the
// schema page and can therefore never itself be a free data page.
const NoFreePage uint32 = 0

// EncodeSchemaPage writes freeListHead and schema into buf (a full
// page-sized buffer), leaving the generic DBFile page-0 header and CRC
// trailer untouched around it.
func EncodeSchemaPage(buf []byte, freeListHead uint32, schema *types.Schema) error {
	binary.BigEndian.PutUint32(buf[offFreeListHead:], freeListHead)
	binary.BigEndian.PutUint16(buf[offColumnCount:], uint16(len(schema.Columns)))

	off := schemaBodyStart
	put := func(s string) error {
		if len(s) > 255 {
			return fmt.Errorf("%w: %q exceeds 255 bytes", storage.ErrInvalidArgument, s)
		}
		if off+1+len(s) > storage.UsableSize(len(buf)) {
			return fmt.Errorf("%w: schema too large for page 0", storage.ErrInvalidArgument)
		}
		buf[off] = byte(len(s))
		off++
		copy(buf[off:], s)
		off += len(s)
		return nil
	}
	for _, c := range schema.Columns {
		if off+4 > storage.UsableSize(len(buf)) {
			return fmt.Errorf("%w: schema too large for page 0", storage.ErrInvalidArgument)
		}
		buf[off] = byte(c.Type)
		binary.BigEndian.PutUint16(buf[off+1:], uint16(c.Length))
		off += 3
		if err := put(c.TableQualifier); err != nil {
			return err
		}
		if err := put(c.Name); err != nil {
			return err
		}
	}

	if off+2 > storage.UsableSize(len(buf)) {
		return fmt.Errorf("%w: schema too large for page 0", storage.ErrInvalidArgument)
	}
	binary.BigEndian.PutUint16(buf[off:], uint16(len(schema.Keys)))
	off += 2
	for _, k := range schema.Keys {
		if off+4 > storage.UsableSize(len(buf)) {
			return fmt.Errorf("%w: schema too large for page 0", storage.ErrInvalidArgument)
		}
		binary.BigEndian.PutUint16(buf[off:], uint16(k.ColumnIndex))
		off += 2
		buf[off] = byte(k.Kind)
		off++
		if k.References == nil {
			buf[off] = 0
			off++
			continue
		}
		buf[off] = 1
		off++
		if err := put(k.References.Table); err != nil {
			return err
		}
		if err := put(k.References.Column); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSchemaPage reads the schema page back out of a page-0 buffer.
func DecodeSchemaPage(buf []byte) (freeListHead uint32, schema *types.Schema, err error) {
	if len(buf) < schemaBodyStart {
		return 0, nil, fmt.Errorf("%w: schema page too small", storage.ErrCorruption)
	}
	freeListHead = binary.BigEndian.Uint32(buf[offFreeListHead:])
	ncols := int(binary.BigEndian.Uint16(buf[offColumnCount:]))

	off := schemaBodyStart
	usable := storage.UsableSize(len(buf))
	get := func() (string, error) {
		if off+1 > usable {
			return "", fmt.Errorf("%w: truncated schema page", storage.ErrCorruption)
		}
		n := int(buf[off])
		off++
		if off+n > usable {
			return "", fmt.Errorf("%w: truncated schema page", storage.ErrCorruption)
		}
		s := string(buf[off : off+n])
		off += n
		return s, nil
	}

	cols := make([]types.ColumnDesc, ncols)
	for i := 0; i < ncols; i++ {
		if off+3 > usable {
			return 0, nil, fmt.Errorf("%w: truncated schema page", storage.ErrCorruption)
		}
		typeID := types.SQLType(buf[off])
		length := int(binary.BigEndian.Uint16(buf[off+1:]))
		off += 3
		qualifier, err := get()
		if err != nil {
			return 0, nil, err
		}
		name, err := get()
		if err != nil {
			return 0, nil, err
		}
		cols[i] = types.ColumnDesc{Name: name, TableQualifier: qualifier, Type: typeID, Length: length}
	}

	if off+2 > usable {
		return 0, nil, fmt.Errorf("%w: truncated schema page", storage.ErrCorruption)
	}
	nkeys := int(binary.BigEndian.Uint16(buf[off:]))
	off += 2
	keys := make([]types.KeyInfo, nkeys)
	for i := 0; i < nkeys; i++ {
		if off+3 > usable {
			return 0, nil, fmt.Errorf("%w: truncated schema page", storage.ErrCorruption)
		}
		colIdx := int(binary.BigEndian.Uint16(buf[off:]))
		kind := types.KeyKind(buf[off+2])
		off += 3
		hasRef := buf[off]
		off++
		var ref *types.ForeignKeyRef
		if hasRef == 1 {
			table, err := get()
			if err != nil {
				return 0, nil, err
			}
			column, err := get()
			if err != nil {
				return 0, nil, err
			}
			ref = &types.ForeignKeyRef{Table: table, Column: column}
		}
		keys[i] = types.KeyInfo{ColumnIndex: colIdx, Kind: kind, References: ref}
	}

	return freeListHead, &types.Schema{Columns: cols, Keys: keys}, nil
}
