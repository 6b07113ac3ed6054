package colstore

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// Encoding names the per-column value encoding chosen for a column file
// (§4.5): Uncompressed stores values back-to-back, RunLength stores
// (value, startRow, runLength) triples, and Dictionary stores small
// bit-packed integer codes naming entries in a page-0 dictionary.
type Encoding byte

const (
	Uncompressed Encoding = 0
	RunLength    Encoding = 1
	Dictionary   Encoding = 2
)

func (e Encoding) String() string {
	switch e {
	case Uncompressed:
		return "UNCOMPRESSED"
	case RunLength:
		return "RUN_LENGTH"
	case Dictionary:
		return "DICTIONARY"
	default:
		return "UNKNOWN"
	}
}

// columnMeta is a column file's page-0 header: its value type, the chosen
// encoding, and (for Dictionary) the code bit width and the dictionary
// itself.
type columnMeta struct {
	col        types.ColumnDesc
	encoding   Encoding
	bitWidth   int
	dictionary []string // dictionary[code-1] is the value named by code
}

// Page-0 layout, starting right after storage.Page0HeaderSize:
//
//	[0:1)  encoding byte
//	[1:2)  dictionary bit width (Dictionary only, else 0)
//	[2:4)  dictionary entry count (uint16, Dictionary only, else 0)
//	        then, for Dictionary: dictSize entries of (1-byte length, bytes)
const (
	metaOffEncoding = storage.Page0HeaderSize
	metaOffBitWidth = metaOffEncoding + 1
	metaOffDictSize = metaOffBitWidth + 1
	metaBodyStart   = metaOffDictSize + 2
)

// encodeColumnMeta writes meta's page-0 header into buf.
func encodeColumnMeta(buf []byte, meta columnMeta) error {
	usable := storage.UsableSize(len(buf))
	buf[metaOffEncoding] = byte(meta.encoding)
	buf[metaOffBitWidth] = byte(meta.bitWidth)
	binary.BigEndian.PutUint16(buf[metaOffDictSize:], uint16(len(meta.dictionary)))

	off := metaBodyStart
	if meta.encoding == Dictionary {
		for _, s := range meta.dictionary {
			if len(s) > 255 {
				return fmt.Errorf("%w: dictionary entry %q exceeds 255 bytes", storage.ErrInvalidArgument, s)
			}
			if off+1+len(s) > usable {
				return fmt.Errorf("%w: dictionary too large for page 0", storage.ErrInvalidArgument)
			}
			buf[off] = byte(len(s))
			off++
			copy(buf[off:], s)
			off += len(s)
		}
	}
	return nil
}

// decodeColumnMeta is the inverse of encodeColumnMeta. col must be supplied
// by the caller (from the table-level schema header) since the column file
// itself does not repeat the column's name/type/length.
func decodeColumnMeta(buf []byte, col types.ColumnDesc) (columnMeta, error) {
	if len(buf) < metaBodyStart {
		return columnMeta{}, fmt.Errorf("%w: truncated column metadata page", storage.ErrCorruption)
	}
	meta := columnMeta{
		col:      col,
		encoding: Encoding(buf[metaOffEncoding]),
		bitWidth: int(buf[metaOffBitWidth]),
	}
	dictSize := int(binary.BigEndian.Uint16(buf[metaOffDictSize:]))
	if meta.encoding != Dictionary {
		return meta, nil
	}
	off := metaBodyStart
	meta.dictionary = make([]string, 0, dictSize)
	for i := 0; i < dictSize; i++ {
		if off >= len(buf) {
			return columnMeta{}, fmt.Errorf("%w: truncated dictionary entry", storage.ErrCorruption)
		}
		n := int(buf[off])
		off++
		if off+n > len(buf) {
			return columnMeta{}, fmt.Errorf("%w: truncated dictionary entry", storage.ErrCorruption)
		}
		meta.dictionary = append(meta.dictionary, string(buf[off:off+n]))
		off += n
	}
	return meta, nil
}

// codeOf returns the dictionary code (1-based) for s, or 0 if s is not in
// the dictionary (callers build the dictionary from the same data being
// encoded, so this should not happen for non-NULL values).
func (m columnMeta) codeOf(s string) uint16 {
	for i, d := range m.dictionary {
		if d == s {
			return uint16(i + 1)
		}
	}
	return 0
}
