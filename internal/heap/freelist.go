package heap

import (
	"encoding/binary"

	"nanodb/internal/storage"
)

// Free-page pages: a singly-linked chain of pages holding no tuples, each
// storing an array of page numbers that are empty and available for reuse
// (the "may compact" / page-reuse behavior spec.md §4.4 allows, grounded
// 1:1 on tinySQL's pager/freelist.go FreeListPage/FreeManager, adapted to
// big-endian and to this package's own page numbering).
//
//	[0:1)  kind (pageKindFreeList)
//	[1:5)  next free-list page number (uint32, NoFreePage = end of chain)
//	[5:7)  entry count (uint16)
//	[7:7+4*count) page numbers (uint32 each)
const (
	flNextOff  = 1
	flCountOff = 5
	flDataOff  = 7
)

func freeListCapacity(usable int) int { return (usable - flDataOff) / 4 }

type freeListPage struct {
	buf    []byte
	usable int
}

func wrapFreeListPage(buf []byte) *freeListPage {
	return &freeListPage{buf: buf, usable: storage.UsableSize(len(buf))}
}

func initFreeListPage(buf []byte) *freeListPage {
	fl := &freeListPage{buf: buf, usable: storage.UsableSize(len(buf))}
	fl.buf[0] = byte(pageKindFreeList)
	fl.setNext(NoFreePage)
	fl.setCount(0)
	return fl
}

func (fl *freeListPage) next() uint32 { return binary.BigEndian.Uint32(fl.buf[flNextOff:]) }
func (fl *freeListPage) setNext(p uint32) {
	binary.BigEndian.PutUint32(fl.buf[flNextOff:], p)
}
func (fl *freeListPage) count() int {
	return int(binary.BigEndian.Uint16(fl.buf[flCountOff:]))
}
func (fl *freeListPage) setCount(n int) {
	binary.BigEndian.PutUint16(fl.buf[flCountOff:], uint16(n))
}
func (fl *freeListPage) entry(i int) uint32 {
	return binary.BigEndian.Uint32(fl.buf[flDataOff+4*i:])
}

// push appends a page number; returns false if this free-list page is full.
func (fl *freeListPage) push(pageNo uint32) bool {
	c := fl.count()
	if c >= freeListCapacity(fl.usable) {
		return false
	}
	binary.BigEndian.PutUint32(fl.buf[flDataOff+4*c:], pageNo)
	fl.setCount(c + 1)
	return true
}

// pop removes and returns the last page number, or (0, false) if empty.
func (fl *freeListPage) pop() (uint32, bool) {
	c := fl.count()
	if c == 0 {
		return 0, false
	}
	p := fl.entry(c - 1)
	fl.setCount(c - 1)
	return p, true
}
