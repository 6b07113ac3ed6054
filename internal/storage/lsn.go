package storage

import "fmt"

// LSN is a Log Sequence Number: a (logFileNumber, fileOffset) pair with a
// transient RecordSize populated after the record has been written (§3).
// Total order is lexicographic on (FileNo, Offset).
type LSN struct {
	FileNo     uint16
	Offset     uint32
	RecordSize uint32
}

// ZeroLSN is the sentinel "no LSN yet" value; a page that has never been
// touched by the WAL has PageLSN == ZeroLSN.
var ZeroLSN = LSN{}

// Less reports whether lsn sorts strictly before o.
func (lsn LSN) Less(o LSN) bool {
	if lsn.FileNo != o.FileNo {
		return lsn.FileNo < o.FileNo
	}
	return lsn.Offset < o.Offset
}

// LessEq reports lsn <= o.
func (lsn LSN) LessEq(o LSN) bool {
	return lsn == o || lsn.Less(o)
}

// End returns the LSN of the byte immediately following this record, i.e.
// the offset forceWAL must flush through.
func (lsn LSN) End() LSN {
	return LSN{FileNo: lsn.FileNo, Offset: lsn.Offset + lsn.RecordSize}
}

func (lsn LSN) String() string {
	return fmt.Sprintf("(%d,%d)", lsn.FileNo, lsn.Offset)
}
