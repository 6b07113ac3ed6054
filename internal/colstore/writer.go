package colstore

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// Block header layouts, each starting a data page (page 1+) of a column
// file. A column file's data pages hold exactly one block each — the
// simplest reading of §4.5's "data pages hold encoded blocks of that
// column's values."
//
// Uncompressed: [0:2) value count, [2:2+ceil(count/8)) NULL bitmap, then
// count scalar values back to back.
//
// RunLength: [0:2) run count, then each run as
// startRow(uint32) runLength(uint32) null(1 byte) value(scalar).
//
// Dictionary: [0:2) code count, then the codes bit-packed at the column's
// bitWidth, code 0 meaning NULL.

// writeUncompressed bulk-writes col's values into one or more Uncompressed
// data pages of the column file named name, appended after its already-
// created page 0.
func writeUncompressed(svc *storage.Service, name string, col types.ColumnDesc, values []types.Value) error {
	usable := storage.UsableSize(svc.PageSize())
	pageNo := uint32(1)

	flush := func(vals []types.Value) error {
		if len(vals) == 0 {
			return nil
		}
		page, err := svc.LoadDBPage(name, pageNo, true)
		if err != nil {
			return err
		}
		buf := page.Data
		binary.BigEndian.PutUint16(buf, uint16(len(vals)))
		bitmapLen := (len(vals) + 7) / 8
		bitmapOff := 2
		dataOff := bitmapOff + bitmapLen
		for i := range buf[bitmapOff:dataOff] {
			buf[bitmapOff+i] = 0
		}
		for i, v := range vals {
			if v.Null {
				buf[bitmapOff+i/8] |= 1 << uint(i%8)
			}
			n, err := encodeScalar(buf[dataOff:], col, v)
			if err != nil {
				svc.UnpinDBPage(page, false)
				return err
			}
			dataOff += n
		}
		svc.UnpinDBPage(page, true)
		pageNo++
		return nil
	}

	var batch []types.Value
	dataLen := 0
	for _, v := range values {
		prospectiveCount := len(batch) + 1
		prospectiveBitmap := (prospectiveCount + 7) / 8
		prospectiveData := dataLen + scalarWireSize(col, v)
		if 2+prospectiveBitmap+prospectiveData > usable && len(batch) > 0 {
			if err := flush(batch); err != nil {
				return err
			}
			batch = nil
			dataLen = 0
		}
		batch = append(batch, v)
		dataLen += scalarWireSize(col, v)
	}
	return flush(batch)
}

type run struct {
	startRow  int
	runLength int
	value     types.Value
}

func buildRuns(values []types.Value) []run {
	var runs []run
	for i, v := range values {
		if len(runs) > 0 {
			last := &runs[len(runs)-1]
			if last.value.Equal(v) {
				last.runLength++
				continue
			}
		}
		runs = append(runs, run{startRow: i, runLength: 1, value: v})
	}
	return runs
}

func runWireSize(col types.ColumnDesc, r run) int {
	return 4 + 4 + 1 + scalarWireSize(col, r.value)
}

// writeRunLength run-length-encodes values and writes the resulting runs
// into one or more RunLength data pages.
func writeRunLength(svc *storage.Service, name string, col types.ColumnDesc, values []types.Value) error {
	usable := storage.UsableSize(svc.PageSize())
	runs := buildRuns(values)
	pageNo := uint32(1)

	flush := func(rs []run) error {
		if len(rs) == 0 {
			return nil
		}
		page, err := svc.LoadDBPage(name, pageNo, true)
		if err != nil {
			return err
		}
		buf := page.Data
		binary.BigEndian.PutUint16(buf, uint16(len(rs)))
		off := 2
		for _, r := range rs {
			binary.BigEndian.PutUint32(buf[off:], uint32(r.startRow))
			binary.BigEndian.PutUint32(buf[off+4:], uint32(r.runLength))
			if r.value.Null {
				buf[off+8] = 1
			} else {
				buf[off+8] = 0
			}
			n, err := encodeScalar(buf[off+9:], col, r.value)
			if err != nil {
				svc.UnpinDBPage(page, false)
				return err
			}
			off += 9 + n
		}
		svc.UnpinDBPage(page, true)
		pageNo++
		return nil
	}

	var batch []run
	size := 2
	for _, r := range runs {
		rs := runWireSize(col, r)
		if size+rs > usable && len(batch) > 0 {
			if err := flush(batch); err != nil {
				return err
			}
			batch = nil
			size = 2
		}
		batch = append(batch, r)
		size += rs
	}
	return flush(batch)
}

// buildDictionary returns the distinct non-NULL string values of values, in
// first-seen order.
func buildDictionary(values []types.Value) []string {
	seen := make(map[string]struct{})
	var dict []string
	for _, v := range values {
		if v.Null {
			continue
		}
		if _, ok := seen[v.SVal]; ok {
			continue
		}
		seen[v.SVal] = struct{}{}
		dict = append(dict, v.SVal)
	}
	return dict
}

// writeDictionary writes values as a bit-packed code stream into one or more
// Dictionary data pages, coding each value against meta's dictionary and bit
// width; the caller (writeColumn) builds that dictionary and persists meta
// to page 0.
func writeDictionary(svc *storage.Service, name string, meta columnMeta, values []types.Value) error {
	usable := storage.UsableSize(svc.PageSize())
	bitWidth := meta.bitWidth
	pageNo := uint32(1)

	codes := make([]uint16, len(values))
	for i, v := range values {
		if v.Null {
			codes[i] = 0
		} else {
			codes[i] = meta.codeOf(v.SVal)
		}
	}

	maxCodesPerPage := ((usable - 2) * 8) / bitWidth
	if maxCodesPerPage < 1 {
		return fmt.Errorf("%w: page size too small for dictionary code width %d", storage.ErrInvalidArgument, bitWidth)
	}

	for start := 0; start < len(codes); start += maxCodesPerPage {
		end := start + maxCodesPerPage
		if end > len(codes) {
			end = len(codes)
		}
		batch := codes[start:end]

		page, err := svc.LoadDBPage(name, pageNo, true)
		if err != nil {
			return err
		}
		buf := page.Data
		binary.BigEndian.PutUint16(buf, uint16(len(batch)))
		packed := buf[2:]
		for i, c := range batch {
			writeBits(packed, i*bitWidth, bitWidth, c)
		}
		svc.UnpinDBPage(page, true)
		pageNo++
	}
	if len(codes) == 0 {
		// Still materialize an (empty) first data page so readers see a
		// well-formed, if zero-length, block.
		page, err := svc.LoadDBPage(name, 1, true)
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint16(page.Data, 0)
		svc.UnpinDBPage(page, true)
	}
	return nil
}
