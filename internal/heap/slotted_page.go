package heap

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
)

// Every page of a heap table file beyond page 0 (the schema page) carries a
// 1-byte kind tag at offset 0, distinguishing a slotted data page from a
// free-list node (§4.4 free-page reuse) so a full scan can skip the latter.
type pageKind byte

const (
	pageKindData     pageKind = 0
	pageKindFreeList pageKind = 1
)

func kindOf(buf []byte) pageKind { return pageKind(buf[0]) }

// Slotted data page layout (kind == pageKindData), grounded on tinySQL's
// pager/slotted_page.go:
//
//	[0:1)  kind (pageKindData)
//	[1:3)  slotCount     (uint16)
//	[3:5)  freeSpaceEnd  (uint16) — offset where the next tuple body starts
//	[5:5+4*slotCount) slot directory, 4 bytes per slot:
//	       [0:2) offset (uint16)  [2:4) length (uint16)
//	       a slot with offset==0 and length==0 is a tombstone.
//	... free space ...
//	[freeSpaceEnd:usableSize) tuple bodies, growing backward from the end
//	of the usable region (the CRC trailer occupies the last
//	storage.PageTrailerSize bytes and is never touched here).
const (
	slotDirOff    = 5
	slotEntrySize = 4
)

// slottedPage wraps one data page's buffer and implements the slot
// directory mechanics. It holds no reference to the pin; callers own the
// DBPage and must mark it dirty/unpin it themselves.
type slottedPage struct {
	buf    []byte
	usable int // storage.UsableSize(len(buf))
}

func wrapSlottedPage(buf []byte) *slottedPage {
	return &slottedPage{buf: buf, usable: storage.UsableSize(len(buf))}
}

// initSlottedPage formats buf as a fresh, empty data page.
func initSlottedPage(buf []byte) *slottedPage {
	sp := &slottedPage{buf: buf, usable: storage.UsableSize(len(buf))}
	sp.buf[0] = byte(pageKindData)
	sp.setSlotCount(0)
	sp.setFreeSpaceEnd(sp.usable)
	return sp
}

func (sp *slottedPage) slotCount() int {
	return int(binary.BigEndian.Uint16(sp.buf[1:3]))
}

func (sp *slottedPage) setSlotCount(n int) {
	binary.BigEndian.PutUint16(sp.buf[1:3], uint16(n))
}

func (sp *slottedPage) freeSpaceEnd() int {
	return int(binary.BigEndian.Uint16(sp.buf[3:5]))
}

func (sp *slottedPage) setFreeSpaceEnd(off int) {
	binary.BigEndian.PutUint16(sp.buf[3:5], uint16(off))
}

func (sp *slottedPage) slotOff(i int) int { return slotDirOff + i*slotEntrySize }

func (sp *slottedPage) slotDirEnd() int { return slotDirOff + sp.slotCount()*slotEntrySize }

type slotEntry struct {
	offset uint16
	length uint16
}

func (sp *slottedPage) getSlot(i int) slotEntry {
	off := sp.slotOff(i)
	return slotEntry{
		offset: binary.BigEndian.Uint16(sp.buf[off : off+2]),
		length: binary.BigEndian.Uint16(sp.buf[off+2 : off+4]),
	}
}

func (sp *slottedPage) setSlot(i int, e slotEntry) {
	off := sp.slotOff(i)
	binary.BigEndian.PutUint16(sp.buf[off:off+2], e.offset)
	binary.BigEndian.PutUint16(sp.buf[off+2:off+4], e.length)
}

func (sp *slottedPage) isTombstone(i int) bool {
	e := sp.getSlot(i)
	return e.offset == 0 && e.length == 0
}

// freeSpace is the number of bytes available for a new record plus its slot
// directory entry.
func (sp *slottedPage) freeSpace() int {
	return sp.freeSpaceEnd() - sp.slotDirEnd() - slotEntrySize
}

// getRecord returns the raw bytes of slot i, or nil if it is a tombstone.
func (sp *slottedPage) getRecord(i int) []byte {
	e := sp.getSlot(i)
	if e.offset == 0 && e.length == 0 {
		return nil
	}
	return sp.buf[e.offset : e.offset+e.length]
}

// insertRecord appends data to the page, reusing a tombstoned slot when
// one exists, and returns the slot index.
func (sp *slottedPage) insertRecord(data []byte) (int, error) {
	needed := len(data)
	if sp.freeSpace() < needed {
		return -1, fmt.Errorf("%w: page full (need %d, have %d)", storage.ErrInvalidArgument, needed, sp.freeSpace())
	}
	newEnd := sp.freeSpaceEnd() - needed
	copy(sp.buf[newEnd:], data)
	sp.setFreeSpaceEnd(newEnd)

	sc := sp.slotCount()
	for i := 0; i < sc; i++ {
		if sp.isTombstone(i) {
			sp.setSlot(i, slotEntry{offset: uint16(newEnd), length: uint16(needed)})
			return i, nil
		}
	}
	sp.setSlot(sc, slotEntry{offset: uint16(newEnd), length: uint16(needed)})
	sp.setSlotCount(sc + 1)
	return sc, nil
}

// deleteRecord tombstones slot i.
func (sp *slottedPage) deleteRecord(i int) error {
	if i < 0 || i >= sp.slotCount() {
		return fmt.Errorf("%w: slot %d out of range [0,%d)", storage.ErrInvalidArgument, i, sp.slotCount())
	}
	sp.setSlot(i, slotEntry{})
	return nil
}

// liveRecords counts non-tombstone slots.
func (sp *slottedPage) liveRecords() int {
	n := 0
	for i, sc := 0, sp.slotCount(); i < sc; i++ {
		if !sp.isTombstone(i) {
			n++
		}
	}
	return n
}

// compact reclaims space left by deletions, preserving slot indices (so
// existing TupleIDs stay valid) by rewriting record bodies back-to-front in
// slot order.
func (sp *slottedPage) compact() {
	sc := sp.slotCount()
	type live struct {
		slot int
		data []byte
	}
	var recs []live
	for i := 0; i < sc; i++ {
		if !sp.isTombstone(i) {
			recs = append(recs, live{slot: i, data: append([]byte(nil), sp.getRecord(i)...)})
		}
	}
	sp.setFreeSpaceEnd(sp.usable)
	for _, r := range recs {
		newEnd := sp.freeSpaceEnd() - len(r.data)
		copy(sp.buf[newEnd:], r.data)
		sp.setFreeSpaceEnd(newEnd)
		sp.setSlot(r.slot, slotEntry{offset: uint16(newEnd), length: uint16(len(r.data))})
	}
}
