package wal

import (
	"errors"
	"fmt"
	"io"

	"nanodb/internal/storage"
)

// Recover implements the two-pass ARIES-style redo/undo recovery described
// in §4.7. firstLSN and expectedNextLSN come from the persisted txn-state
// page (§4.8); the caller has already checked firstLSN != expectedNextLSN
// before calling (equality means no recovery is needed).
//
// It returns the nextLSN to persist back into the txn-state page once
// recovery completes — the WAL's live write cursor after the undo pass has
// appended its ABORT_TXN/UPDATE_PAGE_REDO_ONLY records.
func (w *WAL) Recover(svc *storage.Service, firstLSN, expectedNextLSN storage.LSN) (storage.LSN, error) {
	incomplete := make(map[uint32]storage.LSN)
	completed := make(map[uint32]bool)

	cur := firstLSN
	for {
		rec, size, err := w.readRecordForward(cur.FileNo, cur.Offset)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if w.fileExists(cur.FileNo + 1) {
					cur = storage.LSN{FileNo: cur.FileNo + 1, Offset: walHeaderSize}
					continue
				}
				break
			}
			return storage.LSN{}, fmt.Errorf("recovery redo pass: %w", err)
		}
		rec.LSN = storage.LSN{FileNo: cur.FileNo, Offset: cur.Offset, RecordSize: size}

		switch rec.Type {
		case StartTxn:
			incomplete[rec.TxnID] = rec.LSN
		case CommitTxn, AbortTxn:
			delete(incomplete, rec.TxnID)
			completed[rec.TxnID] = true
		case UpdatePage, UpdatePageRedoOnly:
			if err := applyRedo(svc, rec); err != nil {
				return storage.LSN{}, fmt.Errorf("recovery redo pass: %w", err)
			}
			incomplete[rec.TxnID] = rec.LSN
		}

		cur = storage.LSN{FileNo: cur.FileNo, Offset: cur.Offset + size}
	}

	if cur != expectedNextLSN {
		return storage.LSN{}, fmt.Errorf("%w: redo pass ended at %s but txn-state nextLSN is %s", storage.ErrCorruption, cur, expectedNextLSN)
	}
	w.progress(fmt.Sprintf("wal: redo pass replayed through %s, %d incomplete txn(s)", cur, len(incomplete)))

	pos := cur
	for len(incomplete) > 0 && pos != firstLSN {
		prevFileNo, prevOff, ok, err := w.prevRecordStart(pos.FileNo, pos.Offset)
		if err != nil {
			return storage.LSN{}, fmt.Errorf("recovery undo pass: %w", err)
		}
		if !ok {
			break
		}
		rec, size, err := w.readRecordForward(prevFileNo, prevOff)
		if err != nil {
			return storage.LSN{}, fmt.Errorf("recovery undo pass: %w", err)
		}
		rec.LSN = storage.LSN{FileNo: prevFileNo, Offset: prevOff, RecordSize: size}

		if lastLSN, isIncomplete := incomplete[rec.TxnID]; isIncomplete {
			switch rec.Type {
			case StartTxn:
				abortLSN, err := w.WriteAbortTxn(rec.TxnID, lastLSN)
				if err != nil {
					return storage.LSN{}, fmt.Errorf("recovery undo pass: append ABORT_TXN: %w", err)
				}
				delete(incomplete, rec.TxnID)
				completed[rec.TxnID] = true
				w.progress(fmt.Sprintf("wal: aborted incomplete txn %d at %s", rec.TxnID, abortLSN))
			case UpdatePage:
				if err := applyUndo(svc, rec); err != nil {
					return storage.LSN{}, fmt.Errorf("recovery undo pass: %w", err)
				}
				redoLSN, err := w.writeUpdatePageRedoOnly(rec.TxnID, lastLSN, rec.Filename, rec.PageNo, toRedoOnlySegments(rec.Segments))
				if err != nil {
					return storage.LSN{}, fmt.Errorf("recovery undo pass: append UPDATE_PAGE_REDO_ONLY: %w", err)
				}
				incomplete[rec.TxnID] = redoLSN
			case UpdatePageRedoOnly:
				// already a redo-only record from an earlier undo; nothing to do.
			}
		}
		pos = storage.LSN{FileNo: prevFileNo, Offset: prevOff}
	}

	if len(incomplete) > 0 {
		return storage.LSN{}, fmt.Errorf("%w: recovery undo pass ended with %d incomplete txn(s)", storage.ErrCorruption, len(incomplete))
	}

	if err := svc.WriteAll(true); err != nil {
		return storage.LSN{}, fmt.Errorf("recovery: flush data files: %w", err)
	}
	return w.CurrentLSN(), nil
}

// RollbackTransaction implements §4.7 "Rollback of an in-flight
// transaction": walk prevLSN backwards from lastLSN until START_TXN,
// undoing each UPDATE_PAGE record encountered, then append ABORT_TXN.
// Returns the LSN of the ABORT_TXN record.
func (w *WAL) RollbackTransaction(svc *storage.Service, lastLSN storage.LSN) (storage.LSN, error) {
	cur := lastLSN
	for {
		rec, _, err := w.readRecordForward(cur.FileNo, cur.Offset)
		if err != nil {
			return storage.LSN{}, fmt.Errorf("rollback: %w", err)
		}
		switch rec.Type {
		case UpdatePage:
			if err := applyUndo(svc, rec); err != nil {
				return storage.LSN{}, fmt.Errorf("rollback: %w", err)
			}
			redoLSN, err := w.writeUpdatePageRedoOnly(rec.TxnID, cur, rec.Filename, rec.PageNo, toRedoOnlySegments(rec.Segments))
			if err != nil {
				return storage.LSN{}, fmt.Errorf("rollback: append UPDATE_PAGE_REDO_ONLY: %w", err)
			}
			cur = rec.PrevLSN
			_ = redoLSN
		case StartTxn:
			return w.WriteAbortTxn(rec.TxnID, cur)
		default:
			w.progress(fmt.Sprintf("wal: rollback skipping unexpected record type %s at %s", rec.Type, cur))
			cur = rec.PrevLSN
		}
	}
}

// toRedoOnlySegments converts UPDATE_PAGE segments into the form an
// UPDATE_PAGE_REDO_ONLY record carries: the value the page now holds after
// undo (the original's OldBytes) becomes the redo-only record's NewBytes.
func toRedoOnlySegments(segs []Segment) []Segment {
	out := make([]Segment, len(segs))
	for i, s := range segs {
		out[i] = Segment{Index: s.Index, NewBytes: s.OldBytes}
	}
	return out
}

func applyRedo(svc *storage.Service, rec *Record) error {
	if _, err := svc.OpenDBFile(rec.Filename); err != nil {
		return err
	}
	page, err := svc.LoadDBPage(rec.Filename, uint32(rec.PageNo), true)
	if err != nil {
		return err
	}
	ApplyNew(page.Data, rec.Segments)
	page.PageLSN = rec.LSN
	svc.UnpinDBPage(page, true)
	return nil
}

func applyUndo(svc *storage.Service, rec *Record) error {
	if _, err := svc.OpenDBFile(rec.Filename); err != nil {
		return err
	}
	page, err := svc.LoadDBPage(rec.Filename, uint32(rec.PageNo), true)
	if err != nil {
		return err
	}
	ApplyOld(page.Data, rec.Segments)
	svc.UnpinDBPage(page, true)
	return nil
}
