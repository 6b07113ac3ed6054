package colstore

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// ColStoreBlock holds one data page's worth of already-decoded values
// (§4.5: "reading is via a block reader that yields ColStoreBlock objects
// producing values one at a time").
type ColStoreBlock struct {
	values []types.Value
	pos    int
}

// Next returns the block's next value, or ok=false once the block is
// exhausted.
func (b *ColStoreBlock) Next() (types.Value, bool) {
	if b.pos >= len(b.values) {
		return types.Value{}, false
	}
	v := b.values[b.pos]
	b.pos++
	return v, true
}

// ColumnReader reads one column file block by block, decoding each data
// page according to the encoding recorded in its page-0 metadata.
type ColumnReader struct {
	svc  *storage.Service
	name string
	meta columnMeta

	nextPage uint32
	pageCnt  uint32
	block    *ColStoreBlock
}

// OpenColumnReader opens table's column file for col and reads its page-0
// metadata.
func OpenColumnReader(svc *storage.Service, table string, col types.ColumnDesc) (*ColumnReader, error) {
	name := ColumnFileName(table, col.Name)
	file, err := svc.OpenDBFile(name)
	if err != nil {
		return nil, fmt.Errorf("open column file %s: %w", name, err)
	}
	page, err := svc.LoadDBPage(name, 0, true)
	if err != nil {
		return nil, err
	}
	meta, err := decodeColumnMeta(page.Data, col)
	svc.UnpinDBPage(page, false)
	if err != nil {
		return nil, err
	}
	pc, err := file.PageCount()
	if err != nil {
		return nil, err
	}
	return &ColumnReader{svc: svc, name: name, meta: meta, nextPage: 1, pageCnt: pc}, nil
}

// PageCount returns the column file's total page count, including page 0
// — a cost-estimation input for CSProject (§4.11).
func (r *ColumnReader) PageCount() uint32 { return r.pageCnt }

// NextBlock decodes and returns the next data page's block, or nil once the
// file is exhausted.
func (r *ColumnReader) NextBlock() (*ColStoreBlock, error) {
	if r.nextPage >= r.pageCnt {
		return nil, nil
	}
	page, err := r.svc.LoadDBPage(r.name, r.nextPage, false)
	if err != nil {
		return nil, err
	}
	r.nextPage++
	values, err := decodeBlock(r.meta, page.Data)
	r.svc.UnpinDBPage(page, false)
	if err != nil {
		return nil, err
	}
	return &ColStoreBlock{values: values}, nil
}

// Next returns the reader's next value across all blocks, or ok=false once
// every data page has been consumed.
func (r *ColumnReader) Next() (types.Value, bool, error) {
	for {
		if r.block != nil {
			if v, ok := r.block.Next(); ok {
				return v, true, nil
			}
			r.block = nil
		}
		blk, err := r.NextBlock()
		if err != nil {
			return types.Value{}, false, err
		}
		if blk == nil {
			return types.Value{}, false, nil
		}
		r.block = blk
	}
}

// decodeBlock decodes one data page's bytes into values, per meta.encoding.
func decodeBlock(meta columnMeta, buf []byte) ([]types.Value, error) {
	switch meta.encoding {
	case Uncompressed:
		return decodeUncompressedBlock(meta, buf)
	case RunLength:
		return decodeRunLengthBlock(meta, buf)
	case Dictionary:
		return decodeDictionaryBlock(meta, buf)
	default:
		return nil, fmt.Errorf("%w: unknown column encoding %v", storage.ErrCorruption, meta.encoding)
	}
}

func decodeUncompressedBlock(meta columnMeta, buf []byte) ([]types.Value, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: truncated uncompressed block", storage.ErrCorruption)
	}
	count := int(binary.BigEndian.Uint16(buf))
	bitmapLen := (count + 7) / 8
	bitmapOff := 2
	dataOff := bitmapOff + bitmapLen
	if dataOff > len(buf) {
		return nil, fmt.Errorf("%w: truncated uncompressed block bitmap", storage.ErrCorruption)
	}
	values := make([]types.Value, count)
	for i := 0; i < count; i++ {
		isNull := buf[bitmapOff+i/8]&(1<<uint(i%8)) != 0
		v, n, err := decodeScalar(buf[dataOff:], meta.col, isNull)
		if err != nil {
			return nil, err
		}
		values[i] = v
		dataOff += n
	}
	return values, nil
}

func decodeRunLengthBlock(meta columnMeta, buf []byte) ([]types.Value, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: truncated run-length block", storage.ErrCorruption)
	}
	runCount := int(binary.BigEndian.Uint16(buf))
	off := 2
	var values []types.Value
	for i := 0; i < runCount; i++ {
		if off+9 > len(buf) {
			return nil, fmt.Errorf("%w: truncated run-length run header", storage.ErrCorruption)
		}
		runLength := int(binary.BigEndian.Uint32(buf[off+4:]))
		isNull := buf[off+8] != 0
		v, n, err := decodeScalar(buf[off+9:], meta.col, isNull)
		if err != nil {
			return nil, err
		}
		off += 9 + n
		for j := 0; j < runLength; j++ {
			values = append(values, v)
		}
	}
	return values, nil
}

func decodeDictionaryBlock(meta columnMeta, buf []byte) ([]types.Value, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: truncated dictionary block", storage.ErrCorruption)
	}
	count := int(binary.BigEndian.Uint16(buf))
	packed := buf[2:]
	values := make([]types.Value, count)
	for i := 0; i < count; i++ {
		code := readBits(packed, i*meta.bitWidth, meta.bitWidth)
		if code == 0 {
			values[i] = types.Value{Type: meta.col.Type, Null: true}
			continue
		}
		if int(code) > len(meta.dictionary) {
			return nil, fmt.Errorf("%w: dictionary code %d out of range", storage.ErrCorruption, code)
		}
		values[i] = types.Value{Type: meta.col.Type, SVal: meta.dictionary[code-1]}
	}
	return values, nil
}
