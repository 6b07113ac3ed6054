// Package wal implements the write-ahead log described in spec.md §4.7:
// rolling wal-NNNNN.log files carrying byte-diff UPDATE_PAGE records, plus
// the two-pass ARIES-style redo/undo recovery algorithm and the
// forceWAL/rollback operations the transaction manager and buffer pool
// depend on.
//
// Grounded on tinySQL's internal/storage/pager/wal.go and recovery.go for
// the overall shape (append-only record stream, forward replay driven by a
// txn classification pass) but diverges where spec.md is explicit: physical
// full-page images become byte-diff segments with run merging, single-pass
// redo becomes two-pass redo+undo, and encoding is big-endian throughout
// (spec.md §6), not the teacher's little-endian.
package wal

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
)

// RecordType identifies a WAL record kind (§4.7).
type RecordType uint8

const (
	StartTxn           RecordType = 1
	CommitTxn          RecordType = 2
	AbortTxn           RecordType = 3
	UpdatePage         RecordType = 4
	UpdatePageRedoOnly RecordType = 5
)

func (t RecordType) String() string {
	switch t {
	case StartTxn:
		return "START_TXN"
	case CommitTxn:
		return "COMMIT_TXN"
	case AbortTxn:
		return "ABORT_TXN"
	case UpdatePage:
		return "UPDATE_PAGE"
	case UpdatePageRedoOnly:
		return "UPDATE_PAGE_REDO_ONLY"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Segment is one contiguous run of differing bytes within a page, as
// emitted by Diff (§4.7 "Diff computation"). OldBytes is nil on a
// UPDATE_PAGE_REDO_ONLY record, whose segments only ever carry the redo
// payload.
type Segment struct {
	Index    uint16
	OldBytes []byte
	NewBytes []byte
}

// RunMergeGap is the maximum run of equal bytes a diff will bridge rather
// than emit as two separate segments (§4.7, §9 "a deliberate implementation
// choice").
const RunMergeGap = 4

// Diff compares old and cur (must be the same length, one page) and returns
// the minimal set of segments such that applying them to a copy of old
// reproduces cur byte-for-byte (the "diff round-trip" property, §8).
func Diff(old, cur []byte) []Segment {
	var segs []Segment
	n := len(cur)
	i := 0
	for i < n {
		if old[i] == cur[i] {
			i++
			continue
		}
		start := i
		end := i
		for end < n {
			if old[end] != cur[end] {
				end++
				continue
			}
			gapEnd := end
			for gapEnd < n && gapEnd-end < RunMergeGap && old[gapEnd] == cur[gapEnd] {
				gapEnd++
			}
			if gapEnd < n && old[gapEnd] != cur[gapEnd] {
				// The equal run is short enough to bridge; fold it into
				// the segment and keep extending.
				end = gapEnd
				continue
			}
			break
		}
		segs = append(segs, Segment{
			Index:    uint16(start),
			OldBytes: append([]byte(nil), old[start:end]...),
			NewBytes: append([]byte(nil), cur[start:end]...),
		})
		i = end
	}
	return segs
}

// ApplyNew writes each segment's NewBytes into page at Index. Used by the redo
// pass and when replaying a committed UPDATE_PAGE/UPDATE_PAGE_REDO_ONLY
// record.
func ApplyNew(page []byte, segs []Segment) {
	for _, s := range segs {
		copy(page[s.Index:], s.NewBytes)
	}
}

// ApplyOld writes each segment's OldBytes into page at Index. Used by the
// undo pass to reverse an UPDATE_PAGE record.
func ApplyOld(page []byte, segs []Segment) {
	for _, s := range segs {
		copy(page[s.Index:], s.OldBytes)
	}
}

// Record is the decoded, in-memory form of one WAL record.
type Record struct {
	Type     RecordType
	LSN      storage.LSN
	TxnID    uint32
	PrevLSN  storage.LSN // COMMIT_TXN, ABORT_TXN, UPDATE_PAGE*
	Filename string      // UPDATE_PAGE*
	PageNo   uint16      // UPDATE_PAGE*
	Segments []Segment   // UPDATE_PAGE*
	StartOff uint32      // UPDATE_PAGE*: this record's own starting file offset
}

// encodeBody serializes rec's body (without the leading/trailing type bytes,
// which the caller — which knows the final file offset — affixes) using
// big-endian encoding throughout (§6).
func encodeBody(rec *Record, startOff uint32) []byte {
	switch rec.Type {
	case StartTxn:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, rec.TxnID)
		return buf
	case CommitTxn, AbortTxn:
		buf := make([]byte, 10)
		binary.BigEndian.PutUint32(buf[0:4], rec.TxnID)
		binary.BigEndian.PutUint16(buf[4:6], rec.PrevLSN.FileNo)
		binary.BigEndian.PutUint32(buf[6:10], rec.PrevLSN.Offset)
		return buf
	case UpdatePage, UpdatePageRedoOnly:
		redoOnly := rec.Type == UpdatePageRedoOnly
		nameBytes := []byte(rec.Filename)
		size := 4 + 6 + 1 + len(nameBytes) + 2 + 2
		for _, s := range rec.Segments {
			size += 2 + 2 + len(s.NewBytes)
			if !redoOnly {
				size += len(s.OldBytes)
			}
		}
		size += 4 // startOff
		buf := make([]byte, size)
		off := 0
		binary.BigEndian.PutUint32(buf[off:], rec.TxnID)
		off += 4
		binary.BigEndian.PutUint16(buf[off:], rec.PrevLSN.FileNo)
		off += 2
		binary.BigEndian.PutUint32(buf[off:], rec.PrevLSN.Offset)
		off += 4
		buf[off] = byte(len(nameBytes))
		off++
		copy(buf[off:], nameBytes)
		off += len(nameBytes)
		binary.BigEndian.PutUint16(buf[off:], rec.PageNo)
		off += 2
		binary.BigEndian.PutUint16(buf[off:], uint16(len(rec.Segments)))
		off += 2
		for _, s := range rec.Segments {
			binary.BigEndian.PutUint16(buf[off:], s.Index)
			off += 2
			binary.BigEndian.PutUint16(buf[off:], uint16(len(s.NewBytes)))
			off += 2
			if !redoOnly {
				copy(buf[off:], s.OldBytes)
				off += len(s.OldBytes)
			}
			copy(buf[off:], s.NewBytes)
			off += len(s.NewBytes)
		}
		binary.BigEndian.PutUint32(buf[off:], startOff)
		off += 4
		return buf[:off]
	default:
		panic(fmt.Sprintf("wal: unknown record type %d", rec.Type))
	}
}

// decodeBody parses a record body of the given type, given the raw bytes
// between the two framing type bytes.
func decodeBody(t RecordType, body []byte) (*Record, error) {
	rec := &Record{Type: t}
	switch t {
	case StartTxn:
		if len(body) != 4 {
			return nil, fmt.Errorf("%w: START_TXN body length %d", storage.ErrCorruption, len(body))
		}
		rec.TxnID = binary.BigEndian.Uint32(body)
	case CommitTxn, AbortTxn:
		if len(body) != 10 {
			return nil, fmt.Errorf("%w: %s body length %d", storage.ErrCorruption, t, len(body))
		}
		rec.TxnID = binary.BigEndian.Uint32(body[0:4])
		rec.PrevLSN = storage.LSN{FileNo: binary.BigEndian.Uint16(body[4:6]), Offset: binary.BigEndian.Uint32(body[6:10])}
	case UpdatePage, UpdatePageRedoOnly:
		redoOnly := t == UpdatePageRedoOnly
		off := 0
		if len(body) < 4+6+1 {
			return nil, fmt.Errorf("%w: %s body too short", storage.ErrCorruption, t)
		}
		rec.TxnID = binary.BigEndian.Uint32(body[off:])
		off += 4
		rec.PrevLSN = storage.LSN{FileNo: binary.BigEndian.Uint16(body[off:]), Offset: binary.BigEndian.Uint32(body[off+2:])}
		off += 6
		nameLen := int(body[off])
		off++
		if off+nameLen+4 > len(body) {
			return nil, fmt.Errorf("%w: %s filename overruns body", storage.ErrCorruption, t)
		}
		rec.Filename = string(body[off : off+nameLen])
		off += nameLen
		rec.PageNo = binary.BigEndian.Uint16(body[off:])
		off += 2
		nSeg := int(binary.BigEndian.Uint16(body[off:]))
		off += 2
		segs := make([]Segment, 0, nSeg)
		for i := 0; i < nSeg; i++ {
			if off+4 > len(body) {
				return nil, fmt.Errorf("%w: %s segment header overruns body", storage.ErrCorruption, t)
			}
			idx := binary.BigEndian.Uint16(body[off:])
			ln := int(binary.BigEndian.Uint16(body[off+2:]))
			off += 4
			var oldB []byte
			if !redoOnly {
				if off+ln > len(body) {
					return nil, fmt.Errorf("%w: %s segment old bytes overrun body", storage.ErrCorruption, t)
				}
				oldB = append([]byte(nil), body[off:off+ln]...)
				off += ln
			}
			if off+ln > len(body) {
				return nil, fmt.Errorf("%w: %s segment new bytes overrun body", storage.ErrCorruption, t)
			}
			newB := append([]byte(nil), body[off:off+ln]...)
			off += ln
			segs = append(segs, Segment{Index: idx, OldBytes: oldB, NewBytes: newB})
		}
		rec.Segments = segs
		if off+4 > len(body) {
			return nil, fmt.Errorf("%w: %s missing startOff", storage.ErrCorruption, t)
		}
		rec.StartOff = binary.BigEndian.Uint32(body[off:])
		off += 4
	default:
		return nil, fmt.Errorf("%w: unknown record type %d", storage.ErrCorruption, t)
	}
	return rec, nil
}

// fixedTotalSize returns the total on-disk size (including both framing
// type bytes) of a fixed-length record type, or 0 for the variable-length
// UPDATE_PAGE*/UPDATE_PAGE_REDO_ONLY types.
func fixedTotalSize(t RecordType) uint32 {
	switch t {
	case StartTxn:
		return 6
	case CommitTxn, AbortTxn:
		return 12
	default:
		return 0
	}
}
