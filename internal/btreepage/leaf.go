package btreepage

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// Leaf page layout:
//
//	[0:1)  kind = pageKindLeaf
//	[1:3)  entryCount (u16)
//	[3:7)  prevLeaf (u32, NoPage if none)
//	[7:11) nextLeaf (u32, NoPage if none)
//	then entryCount entries: keyLen(u16) key pageNo(u32) slot(u16)
//
// Leaf entries map an index key to the heap row it names (a types.TupleID),
// sorted by key — the row payload itself lives in the table's heap file;
// the leaf only ever stores a pointer to it (grounded on tinySQL's leaf
// sibling-chain idiom, simplified from its slotted per-record format to a
// single-block sorted array since split/insert here always rebuilds the
// whole page).
const (
	leafOffEntryCount = 1
	leafOffPrevLeaf   = 3
	leafOffNextLeaf   = 7
	leafBodyStart     = 11
)

// LeafEntry is one (key, row) pair in a leaf page.
type LeafEntry struct {
	Key []byte
	Row types.TupleID
}

// InitLeafPage formats buf as an empty leaf page with no siblings.
func InitLeafPage(buf []byte) {
	buf[0] = byte(pageKindLeaf)
	putUint16(buf, leafOffEntryCount, 0)
	binary.BigEndian.PutUint32(buf[leafOffPrevLeaf:], NoPage)
	binary.BigEndian.PutUint32(buf[leafOffNextLeaf:], NoPage)
}

// IsLeafPage reports whether buf holds a leaf page.
func IsLeafPage(buf []byte) bool { return kindOf(buf) == pageKindLeaf }

// PrevLeaf/NextLeaf/SetPrevLeaf/SetNextLeaf manage the sibling chain used
// for ordered range scans across leaves.
func PrevLeaf(buf []byte) uint32 { return binary.BigEndian.Uint32(buf[leafOffPrevLeaf:]) }
func NextLeaf(buf []byte) uint32 { return binary.BigEndian.Uint32(buf[leafOffNextLeaf:]) }
func SetPrevLeaf(buf []byte, p uint32) { binary.BigEndian.PutUint32(buf[leafOffPrevLeaf:], p) }
func SetNextLeaf(buf []byte, p uint32) { binary.BigEndian.PutUint32(buf[leafOffNextLeaf:], p) }

// ReadLeafPage decodes buf's sorted entry list.
func ReadLeafPage(buf []byte) ([]LeafEntry, error) {
	if !IsLeafPage(buf) {
		return nil, fmt.Errorf("%w: not a leaf page", storage.ErrCorruption)
	}
	count := getUint16(buf, leafOffEntryCount)
	entries := make([]LeafEntry, 0, count)
	off := leafBodyStart
	for i := 0; i < count; i++ {
		if off+2 > len(buf) {
			return nil, fmt.Errorf("%w: truncated leaf entry key length", storage.ErrCorruption)
		}
		klen := getUint16(buf, off)
		off += 2
		if off+klen+6 > len(buf) {
			return nil, fmt.Errorf("%w: truncated leaf entry", storage.ErrCorruption)
		}
		key := make([]byte, klen)
		copy(key, buf[off:off+klen])
		off += klen
		pageNo := binary.BigEndian.Uint32(buf[off:])
		off += 4
		slot := binary.BigEndian.Uint16(buf[off:])
		off += 2
		entries = append(entries, LeafEntry{Key: key, Row: types.TupleID{PageNo: pageNo, Slot: slot}})
	}
	return entries, nil
}

func leafEncodedSize(entries []LeafEntry) int {
	size := leafBodyStart
	for _, e := range entries {
		size += 2 + len(e.Key) + 4 + 2
	}
	return size
}

// WriteLeafPage rebuilds buf's entry list from entries (assumed already
// sorted by key), preserving whatever sibling pointers are currently set.
func WriteLeafPage(buf []byte, entries []LeafEntry) error {
	if leafEncodedSize(entries) > usable(buf) {
		return errPageFull
	}
	prev, next := PrevLeaf(buf), NextLeaf(buf)
	buf[0] = byte(pageKindLeaf)
	putUint16(buf, leafOffEntryCount, len(entries))
	binary.BigEndian.PutUint32(buf[leafOffPrevLeaf:], prev)
	binary.BigEndian.PutUint32(buf[leafOffNextLeaf:], next)
	off := leafBodyStart
	for _, e := range entries {
		putUint16(buf, off, len(e.Key))
		off += 2
		copy(buf[off:], e.Key)
		off += len(e.Key)
		binary.BigEndian.PutUint32(buf[off:], e.Row.PageNo)
		off += 4
		binary.BigEndian.PutUint16(buf[off:], e.Row.Slot)
		off += 2
	}
	return nil
}

// FindLeafEntry returns the exact-match entry for key, or ok=false.
func FindLeafEntry(entries []LeafEntry, key []byte, cmp func(a, b []byte) int) (types.TupleID, bool) {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(entries[mid].Key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(entries) && cmp(entries[lo].Key, key) == 0 {
		return entries[lo].Row, true
	}
	return types.TupleID{}, false
}

// InsertSorted returns entries with e inserted (or, if its key already
// exists, replaced) at the correct sorted position.
func InsertSorted(entries []LeafEntry, e LeafEntry, cmp func(a, b []byte) int) []LeafEntry {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(entries[mid].Key, e.Key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(entries) && cmp(entries[lo].Key, e.Key) == 0 {
		out := append([]LeafEntry(nil), entries...)
		out[lo] = e
		return out
	}
	out := make([]LeafEntry, 0, len(entries)+1)
	out = append(out, entries[:lo]...)
	out = append(out, e)
	out = append(out, entries[lo:]...)
	return out
}
