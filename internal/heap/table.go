package heap

import (
	"fmt"
	"sync"

	"nanodb/internal/storage"
	"nanodb/internal/txn"
	"nanodb/internal/types"
)

// Table is a heap table manager (§4.4): a DBFile whose page 0 holds the
// schema and free-page-chain head, and whose remaining pages are slotted
// data pages (or free-list nodes) holding the table's tuples.
type Table struct {
	svc    *storage.Service
	txns   *txn.Manager
	name   string
	schema *types.Schema

	mu           sync.Mutex
	freeListHead uint32
	scanCursor   uint32 // in-memory hint: last data page addTuple wrote to
}

// CreateTable creates a new, empty heap table file named name and writes
// schema into its page-0 header.
func CreateTable(svc *storage.Service, txns *txn.Manager, name string, schema *types.Schema) (*Table, error) {
	if _, err := svc.CreateDBFile(name, storage.FileTypeHeapData); err != nil {
		return nil, fmt.Errorf("create heap table %s: %w", name, err)
	}
	page, err := svc.LoadDBPage(name, 0, true)
	if err != nil {
		return nil, err
	}
	if err := EncodeSchemaPage(page.Data, NoFreePage, schema); err != nil {
		svc.UnpinDBPage(page, false)
		return nil, err
	}
	svc.UnpinDBPage(page, true)
	if err := svc.WriteDBFile(name, 0, 1, true); err != nil {
		return nil, fmt.Errorf("persist schema page of %s: %w", name, err)
	}
	return &Table{svc: svc, txns: txns, name: name, schema: schema, freeListHead: NoFreePage, scanCursor: 1}, nil
}

// OpenTable opens an existing heap table file and reads its schema page.
func OpenTable(svc *storage.Service, txns *txn.Manager, name string) (*Table, error) {
	if _, err := svc.OpenDBFile(name); err != nil {
		return nil, fmt.Errorf("open heap table %s: %w", name, err)
	}
	page, err := svc.LoadDBPage(name, 0, true)
	if err != nil {
		return nil, err
	}
	head, schema, err := DecodeSchemaPage(page.Data)
	svc.UnpinDBPage(page, false)
	if err != nil {
		return nil, err
	}
	return &Table{svc: svc, txns: txns, name: name, schema: schema, freeListHead: head, scanCursor: 1}, nil
}

// Schema returns the table's column schema.
func (t *Table) Schema() *types.Schema { return t.schema }

// Name returns the table file's logical name.
func (t *Table) Name() string { return t.name }

// PageCount returns the table file's current page count, including page 0
// and any free-list nodes — a cost-estimation input for FileScan (§4.11).
func (t *Table) PageCount() (uint32, error) {
	file, ok := t.svc.GetOpenDBFile(t.name)
	if !ok {
		return 0, fmt.Errorf("%w: heap table %s is not open", storage.ErrInvalidArgument, t.name)
	}
	return file.PageCount()
}

func (t *Table) persistSchemaPageLocked(state *txn.State) error {
	page, err := t.svc.LoadDBPage(t.name, 0, false)
	if err != nil {
		return err
	}
	if err := EncodeSchemaPage(page.Data, t.freeListHead, t.schema); err != nil {
		t.svc.UnpinDBPage(page, false)
		return err
	}
	if err := t.txns.RecordPageUpdate(state, page); err != nil {
		t.svc.UnpinDBPage(page, false)
		return err
	}
	t.svc.UnpinDBPage(page, false)
	return nil
}

// AddTuple encodes values against the table's schema and appends them to a
// data page with sufficient free space, allocating one (from the free-page
// chain first, then by extending the file) if none is found (§4.4).
func (t *Table) AddTuple(state *txn.State, values []types.Value) (types.TupleID, error) {
	body, err := EncodeTuple(t.schema, values)
	if err != nil {
		return types.TupleID{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	file, ok := t.svc.GetOpenDBFile(t.name)
	if !ok {
		return types.TupleID{}, fmt.Errorf("%w: heap table %s is not open", storage.ErrInvalidArgument, t.name)
	}

	pageNo := t.scanCursor
	if pageNo == 0 {
		pageNo = 1
	}
	for {
		pc, err := file.PageCount()
		if err != nil {
			return types.TupleID{}, err
		}
		fresh := false
		if pageNo >= pc {
			newPage, err := t.allocDataPageLocked(state)
			if err != nil {
				return types.TupleID{}, err
			}
			pageNo = newPage
			fresh = true
		}

		page, err := t.svc.LoadDBPage(t.name, pageNo, true)
		if err != nil {
			return types.TupleID{}, err
		}
		if !fresh && kindOf(page.Data) == pageKindFreeList {
			// A live free-list node (the chain head, or one on its way to
			// becoming it) encountered while scanning forward from
			// scanCursor: allocDataPageLocked owns this page's format and
			// the schema page's freeListHead still points at it, so skip
			// over it rather than reinitializing it as a data page.
			t.svc.UnpinDBPage(page, false)
			pageNo++
			continue
		}
		var sp *slottedPage
		if fresh {
			// Either genuinely virgin (beyond the file's previous extent,
			// so still zero-filled) or a free-list node allocDataPageLocked
			// just unlinked for reuse: either way it is ours to format as
			// a new, empty data page.
			sp = initSlottedPage(page.Data)
		} else {
			sp = wrapSlottedPage(page.Data)
		}
		if sp.freeSpace() >= len(body) {
			slot, err := sp.insertRecord(body)
			if err != nil {
				t.svc.UnpinDBPage(page, false)
				return types.TupleID{}, err
			}
			if err := t.txns.RecordPageUpdate(state, page); err != nil {
				t.svc.UnpinDBPage(page, false)
				return types.TupleID{}, err
			}
			t.svc.UnpinDBPage(page, false)
			t.scanCursor = pageNo
			return types.TupleID{PageNo: pageNo, Slot: uint16(slot)}, nil
		}
		t.svc.UnpinDBPage(page, false)
		pageNo++
	}
}

// allocDataPageLocked returns a fresh data page number, preferring a reused
// page from the free-page chain over extending the file. Caller holds t.mu.
func (t *Table) allocDataPageLocked(state *txn.State) (uint32, error) {
	if t.freeListHead != NoFreePage {
		headPage, err := t.svc.LoadDBPage(t.name, t.freeListHead, false)
		if err != nil {
			return 0, err
		}
		fl := wrapFreeListPage(headPage.Data)
		if pageNo, ok := fl.pop(); ok {
			if err := t.txns.RecordPageUpdate(state, headPage); err != nil {
				t.svc.UnpinDBPage(headPage, false)
				return 0, err
			}
			t.svc.UnpinDBPage(headPage, false)
			return pageNo, nil
		}
		// Empty list node: unlink it and reuse it as the allocated page.
		nextHead := fl.next()
		emptiedPageNo := t.freeListHead
		t.freeListHead = nextHead
		if err := t.persistSchemaPageLocked(state); err != nil {
			t.svc.UnpinDBPage(headPage, false)
			return 0, err
		}
		t.svc.UnpinDBPage(headPage, false)
		return emptiedPageNo, nil
	}

	file, ok := t.svc.GetOpenDBFile(t.name)
	if !ok {
		return 0, fmt.Errorf("%w: heap table %s is not open", storage.ErrInvalidArgument, t.name)
	}
	pc, err := file.PageCount()
	if err != nil {
		return 0, err
	}
	return pc, nil
}

// GetTuple loads the tuple at fp, returning an error if its slot is a
// tombstone.
func (t *Table) GetTuple(fp types.TupleID) (*types.Tuple, error) {
	page, err := t.svc.LoadDBPage(t.name, fp.PageNo, false)
	if err != nil {
		return nil, err
	}
	defer t.svc.UnpinDBPage(page, false)

	sp := wrapSlottedPage(page.Data)
	raw := sp.getRecord(int(fp.Slot))
	if raw == nil {
		return nil, fmt.Errorf("%w: tuple %v is deleted", storage.ErrInvalidArgument, fp)
	}
	values, err := DecodeTuple(t.schema, raw)
	if err != nil {
		return nil, err
	}
	return &types.Tuple{Schema: t.schema, Values: values, ID: fp}, nil
}

// GetFirstTuple starts a full scan, returning the first live tuple found
// from page 1 onward (free-list node pages are skipped), or nil if the
// table is empty.
func (t *Table) GetFirstTuple() (*types.Tuple, error) {
	return t.scanFrom(1, 0)
}

// GetNextTuple continues a full scan from the tuple following cur.
func (t *Table) GetNextTuple(cur types.TupleID) (*types.Tuple, error) {
	return t.scanFrom(cur.PageNo, int(cur.Slot)+1)
}

// scanFrom walks forward from (pageNo, startSlot) over every data page,
// returning the first live tuple found.
func (t *Table) scanFrom(pageNo uint32, startSlot int) (*types.Tuple, error) {
	file, ok := t.svc.GetOpenDBFile(t.name)
	if !ok {
		return nil, fmt.Errorf("%w: heap table %s is not open", storage.ErrInvalidArgument, t.name)
	}
	pc, err := file.PageCount()
	if err != nil {
		return nil, err
	}
	slot := startSlot
	for ; pageNo < pc; pageNo++ {
		page, err := t.svc.LoadDBPage(t.name, pageNo, false)
		if err != nil {
			return nil, err
		}
		if kindOf(page.Data) != pageKindData {
			t.svc.UnpinDBPage(page, false)
			slot = 0
			continue
		}
		sp := wrapSlottedPage(page.Data)
		for ; slot < sp.slotCount(); slot++ {
			if sp.isTombstone(slot) {
				continue
			}
			raw := sp.getRecord(slot)
			values, err := DecodeTuple(t.schema, raw)
			t.svc.UnpinDBPage(page, false)
			if err != nil {
				return nil, err
			}
			return &types.Tuple{Schema: t.schema, Values: values, ID: types.TupleID{PageNo: pageNo, Slot: uint16(slot)}}, nil
		}
		t.svc.UnpinDBPage(page, false)
		slot = 0
	}
	return nil, nil
}

// DeleteTuple tombstones fp's slot, compacts the page to reclaim space, and
// returns the whole page to the free-page chain if it is now empty (§4.4).
func (t *Table) DeleteTuple(state *txn.State, fp types.TupleID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	page, err := t.svc.LoadDBPage(t.name, fp.PageNo, false)
	if err != nil {
		return err
	}
	sp := wrapSlottedPage(page.Data)
	if err := sp.deleteRecord(int(fp.Slot)); err != nil {
		t.svc.UnpinDBPage(page, false)
		return err
	}
	sp.compact()
	empty := sp.liveRecords() == 0

	if err := t.txns.RecordPageUpdate(state, page); err != nil {
		t.svc.UnpinDBPage(page, false)
		return err
	}
	t.svc.UnpinDBPage(page, false)

	if !empty {
		return nil
	}
	return t.freeDataPageLocked(state, fp.PageNo)
}

// freeDataPageLocked returns an emptied data page to the free-page chain,
// reformatting it as a free-list node when it becomes the new head (or when
// the current head page is full). Caller holds t.mu.
func (t *Table) freeDataPageLocked(state *txn.State, pageNo uint32) error {
	if t.freeListHead != NoFreePage {
		headPage, err := t.svc.LoadDBPage(t.name, t.freeListHead, false)
		if err != nil {
			return err
		}
		fl := wrapFreeListPage(headPage.Data)
		if fl.push(pageNo) {
			err := t.txns.RecordPageUpdate(state, headPage)
			t.svc.UnpinDBPage(headPage, false)
			return err
		}
		t.svc.UnpinDBPage(headPage, false)
	}

	// Reformat the freed page itself as the new free-list head.
	newHead, err := t.svc.LoadDBPage(t.name, pageNo, false)
	if err != nil {
		return err
	}
	fl := initFreeListPage(newHead.Data)
	fl.setNext(t.freeListHead)
	if err := t.txns.RecordPageUpdate(state, newHead); err != nil {
		t.svc.UnpinDBPage(newHead, false)
		return err
	}
	t.svc.UnpinDBPage(newHead, false)
	t.freeListHead = pageNo
	return t.persistSchemaPageLocked(state)
}
