package heap

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// EncodeTuple serializes values against schema into the bytes insertRecord
// stores in a slot: a NULL bitmap prefix (ceil(ncols/8) bytes, bit i set
// when column i is NULL, per §4.4), followed by each non-bitmap column's
// value in schema order. Fixed-width types (Integer/BigInt/Float/Double/
// UUID) always occupy their full width, NULL or not; CHAR pads with zero
// bytes to its declared length; VARCHAR is a 2-byte big-endian length
// prefix followed by its bytes (0 bytes when NULL).
func EncodeTuple(schema *types.Schema, values []types.Value) ([]byte, error) {
	if len(values) != len(schema.Columns) {
		return nil, fmt.Errorf("%w: tuple has %d values, schema has %d columns", storage.ErrInvalidArgument, len(values), len(schema.Columns))
	}
	bitmapLen := (len(schema.Columns) + 7) / 8
	size := bitmapLen
	for i, c := range schema.Columns {
		size += columnWireSize(c, values[i])
	}
	buf := make([]byte, size)
	bitmap := buf[:bitmapLen]
	off := bitmapLen
	for i, c := range schema.Columns {
		v := values[i]
		if v.Null {
			bitmap[i/8] |= 1 << uint(i%8)
		}
		n, err := encodeColumn(buf[off:], c, v)
		if err != nil {
			return nil, err
		}
		off += n
	}
	return buf, nil
}

// columnWireSize returns the number of bytes a column's value occupies,
// including a NULL one (fixed-width columns still reserve their full
// width; VARCHAR reserves just its 2-byte length prefix when NULL).
func columnWireSize(c types.ColumnDesc, v types.Value) int {
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

func encodeColumn(dst []byte, c types.ColumnDesc, v types.Value) (int, error) {
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

// DecodeTuple is the inverse of EncodeTuple.
func DecodeTuple(schema *types.Schema, raw []byte) ([]types.Value, error) {
	bitmapLen := (len(schema.Columns) + 7) / 8
	if len(raw) < bitmapLen {
		return nil, fmt.Errorf("%w: tuple shorter than its NULL bitmap", storage.ErrCorruption)
	}
	bitmap := raw[:bitmapLen]
	off := bitmapLen
	values := make([]types.Value, len(schema.Columns))
	for i, c := range schema.Columns {
		isNull := bitmap[i/8]&(1<<uint(i%8)) != 0
		v, n, err := decodeColumn(raw[off:], c, isNull)
		if err != nil {
			return nil, err
		}
		values[i] = v
		off += n
	}
	return values, nil
}

func decodeColumn(src []byte, c types.ColumnDesc, isNull bool) (types.Value, int, error) {
	switch c.Type {
	case types.Integer:
		if len(src) < 4 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated INTEGER column", storage.ErrCorruption)
		}
		v := types.Value{Type: types.Integer, Null: isNull, IVal: int64(int32(binary.BigEndian.Uint32(src)))}
		return v, 4, nil
	case types.BigInt:
		if len(src) < 8 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated BIGINT column", storage.ErrCorruption)
		}
		v := types.Value{Type: types.BigInt, Null: isNull, IVal: int64(binary.BigEndian.Uint64(src))}
		return v, 8, nil
	case types.Float:
		if len(src) < 4 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated FLOAT column", storage.ErrCorruption)
		}
		v := types.Value{Type: types.Float, Null: isNull, FVal: float64(math.Float32frombits(binary.BigEndian.Uint32(src)))}
		return v, 4, nil
	case types.Double:
		if len(src) < 8 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated DOUBLE column", storage.ErrCorruption)
		}
		v := types.Value{Type: types.Double, Null: isNull, FVal: math.Float64frombits(binary.BigEndian.Uint64(src))}
		return v, 8, nil
	case types.UUID:
		if len(src) < 16 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated UUID column", storage.ErrCorruption)
		}
		var u uuid.UUID
		copy(u[:], src[:16])
		v := types.Value{Type: types.UUID, Null: isNull, UVal: u}
		return v, 16, nil
	case types.Char:
		if len(src) < c.Length {
			return types.Value{}, 0, fmt.Errorf("%w: truncated CHAR column", storage.ErrCorruption)
		}
		end := 0
		for end < c.Length && src[end] != 0 {
			end++
		}
		v := types.Value{Type: types.Char, Null: isNull, SVal: string(src[:end])}
		return v, c.Length, nil
	case types.VarChar:
		if len(src) < 2 {
			return types.Value{}, 0, fmt.Errorf("%w: truncated VARCHAR column", storage.ErrCorruption)
		}
		n := int(binary.BigEndian.Uint16(src))
		if len(src) < 2+n {
			return types.Value{}, 0, fmt.Errorf("%w: truncated VARCHAR column", storage.ErrCorruption)
		}
		v := types.Value{Type: types.VarChar, Null: isNull, SVal: string(src[2 : 2+n])}
		return v, 2 + n, nil
	default:
		return types.Value{}, 0, fmt.Errorf("%w: unsupported column type %s", storage.ErrSchema, c.Type)
	}
}
