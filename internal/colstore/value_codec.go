// Package colstore implements the column-store table manager described in
// spec.md §4.5: one file per column, a shared table-level header page
// reusing §4.4's schema layout, three per-column encodings chosen by a
// bulk-loading analyzer, and a block reader that yields column values one
// at a time.
//
// Grounded on tinySQL's row_codec.go encoding style (length-prefixed
// VARCHAR, fixed-width numerics, encoding/binary throughout) for the
// per-value wire format, and on pager/freelist.go's page-chaining idiom
// for how data pages of a column file are filled block-by-block. No single
// pack example implements a column store; the block/encoding layout below
// is built directly from spec.md §4.5's three encodings.
package colstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// scalarWireSize returns the number of bytes a single column value occupies
// on its own (no NULL bitmap — RLE and dictionary blocks carry nullness
// out of band), given the column's declared type/length.
func scalarWireSize(c types.ColumnDesc, v types.Value) int {
	if width, ok := c.Type.FixedWidth(); ok {
		return width
	}
	switch c.Type {
	case types.Char:
		return c.Length
	case types.VarChar:
		if v.Null {
			return 2
		}
		return 2 + len(v.SVal)
	default:
		return 0
	}
}

// encodeScalar writes v into dst (which must be at least scalarWireSize(c,
// v) bytes) and returns the number of bytes written.
func encodeScalar(dst []byte, c types.ColumnDesc, v types.Value) (int, error) {
	switch c.Type {
	case types.Integer:
		binary.BigEndian.PutUint32(dst, uint32(int32(v.IVal)))
		return 4, nil
	case types.BigInt:
		binary.BigEndian.PutUint64(dst, uint64(v.IVal))
		return 8, nil
	case types.Float:
		binary.BigEndian.PutUint32(dst, math.Float32bits(float32(v.FVal)))
		return 4, nil
	case types.Double:
		binary.BigEndian.PutUint64(dst, math.Float64bits(v.FVal))
		return 8, nil
	case types.UUID:
		copy(dst[:16], v.UVal[:])
		return 16, nil
	case types.Char:
		for i := range dst[:c.Length] {
			dst[i] = 0
		}
		copy(dst[:c.Length], v.SVal)
		return c.Length, nil
	case types.VarChar:
		if v.Null {
			binary.BigEndian.PutUint16(dst, 0)
			return 2, nil
		}
		binary.BigEndian.PutUint16(dst, uint16(len(v.SVal)))
		copy(dst[2:], v.SVal)
		return 2 + len(v.SVal), nil
	default:
		return 0, fmt.Errorf("%w: unsupported column type %s", storage.ErrSchema, c.Type)
	}
}

// decodeScalar is the inverse of encodeScalar; isNull comes from whatever
// out-of-band nullness marker the enclosing block format uses.
func decodeScalar(src []byte, c types.ColumnDesc, isNull bool) (types.Value, int, error) {
	switch c.Type {
	case types.Integer:
		if len(src) < 4 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated INTEGER value", storage.ErrCorruption)
		}
		return types.Value{Type: types.Integer, Null: isNull, IVal: int64(int32(binary.BigEndian.Uint32(src)))}, 4, nil
	case types.BigInt:
		if len(src) < 8 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated BIGINT value", storage.ErrCorruption)
		}
		return types.Value{Type: types.BigInt, Null: isNull, IVal: int64(binary.BigEndian.Uint64(src))}, 8, nil
	case types.Float:
		if len(src) < 4 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated FLOAT value", storage.ErrCorruption)
		}
		return types.Value{Type: types.Float, Null: isNull, FVal: float64(math.Float32frombits(binary.BigEndian.Uint32(src)))}, 4, nil
	case types.Double:
		if len(src) < 8 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated DOUBLE value", storage.ErrCorruption)
		}
		return types.Value{Type: types.Double, Null: isNull, FVal: math.Float64frombits(binary.BigEndian.Uint64(src))}, 8, nil
	case types.UUID:
		if len(src) < 16 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated UUID value", storage.ErrCorruption)
		}
		var u types.Value
		u.Type, u.Null = types.UUID, isNull
		copy(u.UVal[:], src[:16])
		return u, 16, nil
	case types.Char:
		if len(src) < c.Length {
			return types.Value{}, 0, fmt.Errorf("%w: truncated CHAR value", storage.ErrCorruption)
		}
		end := 0
		for end < c.Length && src[end] != 0 {
			end++
		}
		return types.Value{Type: types.Char, Null: isNull, SVal: string(src[:end])}, c.Length, nil
	case types.VarChar:
		if len(src) < 2 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated VARCHAR value", storage.ErrCorruption)
		}
		n := int(binary.BigEndian.Uint16(src))
		if len(src) < 2+n {
			return types.Value{}, 0, fmt.Errorf("%w: truncated VARCHAR value", storage.ErrCorruption)
		}
		return types.Value{Type: types.VarChar, Null: isNull, SVal: string(src[2 : 2+n])}, 2 + n, nil
	default:
		return types.Value{}, 0, fmt.Errorf("%w: unsupported column type %s", storage.ErrSchema, c.Type)
	}
}
