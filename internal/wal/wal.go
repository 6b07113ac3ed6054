package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"nanodb/internal/storage"
)

// WAL is the rolling, append-only write-ahead log described in §4.7. It
// owns its own raw file I/O rather than going through storage.DBFile: its
// on-disk layout (a 6-byte header followed by a flat, self-describing
// record stream) is not the fixed-page layout the rest of the storage
// layer uses.
type WAL struct {
	mu       sync.Mutex
	dir      string
	pageSize int

	curFileNo uint16
	cur       *os.File
	// writeOffset is the absolute offset in cur at which the next record
	// will be written.
	writeOffset uint32
	// lastRecordOffset is the start offset, within cur, of the most
	// recently appended record — what gets stamped into the next file's
	// header when rolling.
	lastRecordOffset uint32

	// syncedThrough is the highest LSN.End() known fsynced; ForceWAL is a
	// no-op once the target falls at or below it (§4.7 "idempotent and
	// monotonic").
	syncedThrough storage.LSN

	progress func(string)
}

func noopProgress(string) {}

// Open opens the WAL directory, creating it and the first rolling file if
// none exists, or resuming at the newest existing wal-NNNNN.log file.
func Open(dir string, pageSize int, progress func(string)) (*WAL, error) {
	if progress == nil {
		progress = noopProgress
	}
	if pageSize == 0 {
		pageSize = storage.DefaultPageSize
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create WAL dir %s: %v", storage.ErrIO, dir, err)
	}
	nums, err := listWALFiles(dir)
	if err != nil {
		return nil, err
	}
	w := &WAL{dir: dir, pageSize: pageSize, progress: progress}
	if len(nums) == 0 {
		f, err := os.OpenFile(filepath.Join(dir, walFileName(0)), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", storage.ErrIO, walFileName(0), err)
		}
		if err := writeWALHeader(f, pageSize, 0); err != nil {
			f.Close()
			return nil, err
		}
		w.cur = f
		w.curFileNo = 0
		w.writeOffset = walHeaderSize
		progress(fmt.Sprintf("wal: created %s", walFileName(0)))
		return w, nil
	}

	latest := nums[len(nums)-1]
	path := filepath.Join(dir, walFileName(latest))
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", storage.ErrIO, path, err)
	}
	if _, err := readWALHeader(f, pageSize); err != nil {
		f.Close()
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", storage.ErrIO, path, err)
	}
	w.cur = f
	w.curFileNo = latest
	w.writeOffset = uint32(fi.Size())
	if w.writeOffset < walHeaderSize {
		w.writeOffset = walHeaderSize
	}
	progress(fmt.Sprintf("wal: resuming at %s offset %d", walFileName(latest), w.writeOffset))
	return w, nil
}

// CurrentLSN returns the LSN the next appended record will receive.
func (w *WAL) CurrentLSN() storage.LSN {
	w.mu.Lock()
	defer w.mu.Unlock()
	return storage.LSN{FileNo: w.curFileNo, Offset: w.writeOffset}
}

// Close fsyncs and closes the active WAL file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.cur.Sync(); err != nil {
		return fmt.Errorf("%w: sync WAL: %v", storage.ErrIO, err)
	}
	return w.cur.Close()
}

// WriteStartTxn appends a START_TXN record (§4.7).
func (w *WAL) WriteStartTxn(txnID uint32) (storage.LSN, error) {
	return w.append(&Record{Type: StartTxn, TxnID: txnID})
}

// WriteCommitTxn appends a COMMIT_TXN record chained after prevLSN.
func (w *WAL) WriteCommitTxn(txnID uint32, prevLSN storage.LSN) (storage.LSN, error) {
	return w.append(&Record{Type: CommitTxn, TxnID: txnID, PrevLSN: prevLSN})
}

// WriteAbortTxn appends an ABORT_TXN record chained after prevLSN.
func (w *WAL) WriteAbortTxn(txnID uint32, prevLSN storage.LSN) (storage.LSN, error) {
	return w.append(&Record{Type: AbortTxn, TxnID: txnID, PrevLSN: prevLSN})
}

// WriteUpdatePage diffs old against cur (§4.7 "Diff computation") and
// appends the resulting UPDATE_PAGE record.
func (w *WAL) WriteUpdatePage(txnID uint32, prevLSN storage.LSN, filename string, pageNo uint16, old, cur []byte) (storage.LSN, error) {
	segs := Diff(old, cur)
	return w.append(&Record{Type: UpdatePage, TxnID: txnID, PrevLSN: prevLSN, Filename: filename, PageNo: pageNo, Segments: segs})
}

// writeUpdatePageRedoOnly appends an UPDATE_PAGE_REDO_ONLY record, used by
// the undo pass and by transaction rollback to record that a page has been
// reverted (§4.7).
func (w *WAL) writeUpdatePageRedoOnly(txnID uint32, prevLSN storage.LSN, filename string, pageNo uint16, segs []Segment) (storage.LSN, error) {
	return w.append(&Record{Type: UpdatePageRedoOnly, TxnID: txnID, PrevLSN: prevLSN, Filename: filename, PageNo: pageNo, Segments: segs})
}

// append frames rec with its leading/trailing type bytes, rolling to a new
// file first if the write would cross MaxWALFileSize, and writes it at the
// current tail of the active file.
func (w *WAL) append(rec *Record) (storage.LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	probe := encodeBody(rec, 0)
	frameSize := uint32(1 + len(probe) + 1)

	if w.writeOffset > walHeaderSize && w.writeOffset+frameSize > MaxWALFileSize {
		if err := w.rollLocked(); err != nil {
			return storage.LSN{}, err
		}
	}

	startOff := w.writeOffset
	body := probe
	if rec.Type == UpdatePage || rec.Type == UpdatePageRedoOnly {
		body = encodeBody(rec, startOff)
	}
	frame := make([]byte, len(body)+2)
	frame[0] = byte(rec.Type)
	copy(frame[1:], body)
	frame[len(frame)-1] = byte(rec.Type)

	if _, err := w.cur.WriteAt(frame, int64(startOff)); err != nil {
		return storage.LSN{}, fmt.Errorf("%w: append %s record: %v", storage.ErrIO, rec.Type, err)
	}
	w.writeOffset += uint32(len(frame))
	w.lastRecordOffset = startOff

	lsn := storage.LSN{FileNo: w.curFileNo, Offset: startOff, RecordSize: uint32(len(frame))}
	rec.LSN = lsn
	return lsn, nil
}

// rollLocked seals the active file and starts a new one, per §4.7 "Rolling
// files". Caller holds w.mu.
func (w *WAL) rollLocked() error {
	if err := w.cur.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s before roll: %v", storage.ErrIO, walFileName(w.curFileNo), err)
	}
	if err := w.cur.Close(); err != nil {
		return fmt.Errorf("%w: close %s before roll: %v", storage.ErrIO, walFileName(w.curFileNo), err)
	}
	newFileNo := w.curFileNo + 1 // wraps mod 65536 via uint16 overflow
	path := filepath.Join(w.dir, walFileName(newFileNo))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", storage.ErrIO, path, err)
	}
	if err := writeWALHeader(f, w.pageSize, w.lastRecordOffset); err != nil {
		f.Close()
		return err
	}
	w.cur = f
	w.curFileNo = newFileNo
	w.writeOffset = walHeaderSize
	w.lastRecordOffset = 0
	w.progress(fmt.Sprintf("wal: rolled to %s", walFileName(newFileNo)))
	return nil
}

// ForceWAL flushes the log through target (§4.7 "forceWAL(targetLSN)").
// Idempotent and monotonic.
func (w *WAL) ForceWAL(target storage.LSN) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	end := target.End()
	if end.LessEq(w.syncedThrough) {
		return nil
	}
	if target.FileNo == w.curFileNo {
		if err := w.cur.Sync(); err != nil {
			return fmt.Errorf("%w: forceWAL sync %s: %v", storage.ErrIO, walFileName(w.curFileNo), err)
		}
	} else if target.FileNo < w.curFileNo {
		path := filepath.Join(w.dir, walFileName(target.FileNo))
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: forceWAL open %s: %v", storage.ErrIO, path, err)
		}
		err = f.Sync()
		f.Close()
		if err != nil {
			return fmt.Errorf("%w: forceWAL sync %s: %v", storage.ErrIO, path, err)
		}
	}
	w.syncedThrough = end
	return nil
}

func (w *WAL) openForRead(fileNo uint16) (*os.File, bool, error) {
	if fileNo == w.curFileNo {
		return w.cur, false, nil
	}
	path := filepath.Join(w.dir, walFileName(fileNo))
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: open %s: %v", storage.ErrIO, path, err)
	}
	return f, true, nil
}

func (w *WAL) fileExists(fileNo uint16) bool {
	_, err := os.Stat(filepath.Join(w.dir, walFileName(fileNo)))
	return err == nil
}

// readRecordForward reads the record starting at (fileNo, offset) and
// returns it along with its total on-disk size. Returns io.EOF if there is
// no data at that position.
func (w *WAL) readRecordForward(fileNo uint16, offset uint32) (*Record, uint32, error) {
	f, owned, err := w.openForRead(fileNo)
	if err != nil {
		return nil, 0, err
	}
	if owned {
		defer f.Close()
	}
	cur := &cursorReader{f: f, pos: int64(offset)}

	tb, err := cur.byte()
	if err != nil {
		return nil, 0, io.EOF
	}
	t := RecordType(tb)
	rec := &Record{Type: t}

	switch t {
	case StartTxn:
		v, err := cur.u32()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: truncated START_TXN at (%d,%d)", storage.ErrCorruption, fileNo, offset)
		}
		rec.TxnID = v
	case CommitTxn, AbortTxn:
		txnID, err1 := cur.u32()
		fn, err2 := cur.u16()
		fo, err3 := cur.u32()
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, 0, fmt.Errorf("%w: truncated %s at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
		}
		rec.TxnID = txnID
		rec.PrevLSN = storage.LSN{FileNo: fn, Offset: fo}
	case UpdatePage, UpdatePageRedoOnly:
		redoOnly := t == UpdatePageRedoOnly
		txnID, e1 := cur.u32()
		fn, e2 := cur.u16()
		fo, e3 := cur.u32()
		nameLen, e4 := cur.byte()
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			return nil, 0, fmt.Errorf("%w: truncated %s header at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
		}
		nameBytes, e5 := cur.readN(int(nameLen))
		pageNo, e6 := cur.u16()
		nSeg, e7 := cur.u16()
		if e5 != nil || e6 != nil || e7 != nil {
			return nil, 0, fmt.Errorf("%w: truncated %s body at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
		}
		segs := make([]Segment, 0, nSeg)
		for i := 0; i < int(nSeg); i++ {
			idx, ei1 := cur.u16()
			ln, ei2 := cur.u16()
			if ei1 != nil || ei2 != nil {
				return nil, 0, fmt.Errorf("%w: truncated %s segment header at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
			}
			var oldB []byte
			if !redoOnly {
				oldB, err = cur.readN(int(ln))
				if err != nil {
					return nil, 0, fmt.Errorf("%w: truncated %s segment old bytes at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
				}
			}
			newB, err := cur.readN(int(ln))
			if err != nil {
				return nil, 0, fmt.Errorf("%w: truncated %s segment new bytes at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
			}
			segs = append(segs, Segment{Index: idx, OldBytes: oldB, NewBytes: newB})
		}
		startOff, e8 := cur.u32()
		if e8 != nil {
			return nil, 0, fmt.Errorf("%w: truncated %s startOff at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
		}
		rec.TxnID = txnID
		rec.PrevLSN = storage.LSN{FileNo: fn, Offset: fo}
		rec.Filename = string(nameBytes)
		rec.PageNo = pageNo
		rec.Segments = segs
		rec.StartOff = startOff
	default:
		return nil, 0, fmt.Errorf("%w: unknown record type %d at (%d,%d)", storage.ErrCorruption, tb, fileNo, offset)
	}

	tb2, err := cur.byte()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: truncated %s trailer at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
	}
	if RecordType(tb2) != t {
		return nil, 0, fmt.Errorf("%w: %s frame mismatch at (%d,%d)", storage.ErrCorruption, t, fileNo, offset)
	}
	size := uint32(cur.n)
	rec.LSN = storage.LSN{FileNo: fileNo, Offset: offset, RecordSize: size}
	return rec, size, nil
}

// prevRecordStart implements the backward traversal described in §4.7:
// read the terminator byte just before curStart; fixed-size types subtract
// their known size, UPDATE_PAGE* types carry their own startOff just before
// the terminator. Crossing below a file's header jumps to the previous
// file using the offset stored in its own header. Returns ok=false once the
// very first record of the very first WAL file is reached.
func (w *WAL) prevRecordStart(fileNo uint16, curStart uint32) (prevFileNo uint16, prevStart uint32, ok bool, err error) {
	if curStart <= walHeaderSize {
		f, owned, err := w.openForRead(fileNo)
		if err != nil {
			return 0, 0, false, err
		}
		if owned {
			defer f.Close()
		}
		prevOff, err := readWALHeader(f, w.pageSize)
		if err != nil {
			return 0, 0, false, err
		}
		if prevOff == 0 {
			return 0, 0, false, nil
		}
		return fileNo - 1, prevOff, true, nil
	}
	f, owned, err := w.openForRead(fileNo)
	if err != nil {
		return 0, 0, false, err
	}
	if owned {
		defer f.Close()
	}
	termBuf := make([]byte, 1)
	if _, err := f.ReadAt(termBuf, int64(curStart-1)); err != nil {
		return 0, 0, false, fmt.Errorf("%w: read terminator before offset %d of %s: %v", storage.ErrCorruption, curStart, walFileName(fileNo), err)
	}
	t := RecordType(termBuf[0])
	if sz := fixedTotalSize(t); sz != 0 {
		return fileNo, curStart - sz, true, nil
	}
	if t == UpdatePage || t == UpdatePageRedoOnly {
		so := make([]byte, 4)
		if _, err := f.ReadAt(so, int64(curStart-1-4)); err != nil {
			return 0, 0, false, fmt.Errorf("%w: read startOff before offset %d of %s: %v", storage.ErrCorruption, curStart, walFileName(fileNo), err)
		}
		return fileNo, binary.BigEndian.Uint32(so), true, nil
	}
	return 0, 0, false, fmt.Errorf("%w: unknown terminator type %d before offset %d of %s", storage.ErrCorruption, termBuf[0], curStart, walFileName(fileNo))
}

// cursorReader sequentially consumes big-endian fields from f starting at
// pos, tracking total bytes read.
type cursorReader struct {
	f   *os.File
	pos int64
	n   int
}

func (c *cursorReader) readN(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := c.f.ReadAt(buf, c.pos)
	if read < n {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	c.pos += int64(n)
	c.n += n
	return buf, nil
}

func (c *cursorReader) byte() (byte, error) {
	b, err := c.readN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursorReader) u16() (uint16, error) {
	b, err := c.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursorReader) u32() (uint32, error) {
	b, err := c.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

var errWALNotFound = errors.New("wal: record not found")
