package txn

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"nanodb/internal/storage"
	"nanodb/internal/wal"
)

// State is session-scoped transaction state (§4.8, §9 "replace
// thread-local session state with an explicit parameter"). Callers thread
// a *State through every operation that touches the WAL or a transaction.
type State struct {
	TxnID       uint32
	UserStarted bool
	started     bool // true once START_TXN has actually been written
	LastLSN     storage.LSN
	SessionID   uuid.UUID
}

// Manager is the transaction manager (§4.8): an atomic transaction-id
// counter plus the in-memory firstLSN/nextLSN cursors that mirror the
// persistent txn-state page, and the four operations table managers and
// the executor call into.
type Manager struct {
	mu       sync.Mutex
	svc      *storage.Service
	log      *wal.WAL
	nextTxn  atomic.Uint32
	cur      StatePage
	progress func(string)
}

func noopProgress(string) {}

// Open opens (creating if necessary) the txn-state file, runs recovery if
// the persisted firstLSN and nextLSN differ (§4.7), and returns a ready
// Manager.
func Open(svc *storage.Service, log *wal.WAL, progress func(string)) (*Manager, error) {
	if progress == nil {
		progress = noopProgress
	}
	m := &Manager{svc: svc, log: log, progress: progress}

	created := false
	if _, err := svc.OpenDBFile(TxnStateFileName); err != nil {
		if _, cerr := svc.CreateDBFile(TxnStateFileName, storage.FileTypeTxnState); cerr != nil {
			return nil, fmt.Errorf("open txn-state file: %w", cerr)
		}
		created = true
	}

	page, err := svc.LoadDBPage(TxnStateFileName, 0, true)
	if err != nil {
		return nil, fmt.Errorf("load txn-state page: %w", err)
	}
	if created {
		now := log.CurrentLSN()
		m.cur = StatePage{NextTransactionID: 1, FirstLSN: now, NextLSN: now}
		if err := m.cur.Encode(page.Data); err != nil {
			svc.UnpinDBPage(page, false)
			return nil, err
		}
		svc.UnpinDBPage(page, true)
		if err := svc.WriteDBFile(TxnStateFileName, 0, 1, true); err != nil {
			return nil, fmt.Errorf("persist new txn-state page: %w", err)
		}
	} else {
		sp, err := DecodeStatePage(page.Data)
		svc.UnpinDBPage(page, false)
		if err != nil {
			return nil, err
		}
		m.cur = sp
	}
	// nextTxn holds the last-allocated id; StartTransaction's Add(1) must
	// therefore yield NextTransactionID (the next id to hand out) on its
	// first call.
	m.nextTxn.Store(m.cur.NextTransactionID - 1)

	if m.cur.FirstLSN != m.cur.NextLSN {
		progress(fmt.Sprintf("txn: recovering from %s to %s", m.cur.FirstLSN, m.cur.NextLSN))
		newNextLSN, err := log.Recover(svc, m.cur.FirstLSN, m.cur.NextLSN)
		if err != nil {
			return nil, fmt.Errorf("recovery: %w", err)
		}
		m.cur.NextLSN = newNextLSN
		if err := m.persistLocked(true); err != nil {
			return nil, fmt.Errorf("persist post-recovery txn-state: %w", err)
		}
		progress("txn: recovery complete")
	}

	return m, nil
}

// persistLocked writes the in-memory StatePage to disk, optionally
// fsyncing. Caller holds m.mu (or is Open, before any concurrent access is
// possible).
func (m *Manager) persistLocked(sync bool) error {
	page, err := m.svc.LoadDBPage(TxnStateFileName, 0, false)
	if err != nil {
		return err
	}
	if err := m.cur.Encode(page.Data); err != nil {
		m.svc.UnpinDBPage(page, false)
		return err
	}
	m.svc.UnpinDBPage(page, true)
	return m.svc.WriteDBFile(TxnStateFileName, 0, 1, sync)
}

// StartTransaction allocates a transaction id and attaches it to a new
// session State. Per §4.8, it does NOT write a START_TXN record yet — that
// happens lazily on the transaction's first page update.
func (m *Manager) StartTransaction(userStarted bool) *State {
	id := m.nextTxn.Add(1)
	m.mu.Lock()
	m.cur.NextTransactionID = m.nextTxn.Load() + 1
	m.mu.Unlock()
	return &State{TxnID: id, UserStarted: userStarted, SessionID: uuid.New()}
}

// RecordPageUpdate is called by table managers after mutating page (§4.8).
// On the transaction's first call it emits START_TXN; it always calls
// WAL.writeUpdatePage, marks the page dirty with its new pageLSN, and
// refreshes the page's diff snapshot for the next call.
func (m *Manager) RecordPageUpdate(state *State, page *storage.DBPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !state.started {
		lsn, err := m.log.WriteStartTxn(state.TxnID)
		if err != nil {
			return fmt.Errorf("%w: start txn %d: %v", storage.ErrTransaction, state.TxnID, err)
		}
		state.LastLSN = lsn
		state.started = true
		m.cur.NextLSN = m.log.CurrentLSN()
	}

	lsn, err := m.log.WriteUpdatePage(state.TxnID, state.LastLSN, page.File.Name(), uint16(page.PageNo), page.OldBytes(), page.Data)
	if err != nil {
		return fmt.Errorf("%w: record page update for txn %d: %v", storage.ErrTransaction, state.TxnID, err)
	}
	state.LastLSN = lsn
	page.PageLSN = lsn
	m.svc.Pool().MarkDirty(page)
	page.RefreshSnapshot()
	m.cur.NextLSN = m.log.CurrentLSN()
	return m.persistLocked(false)
}

// CommitTransaction appends COMMIT_TXN and forces the WAL through it, then
// clears session state. A read-only transaction (one that never wrote
// anything) commits silently. Per §4.8's failure model, an I/O error here
// leaves state unmodified so the caller can retry or abort.
func (m *Manager) CommitTransaction(state *State) error {
	if !state.started {
		*state = State{}
		return nil
	}
	m.mu.Lock()
	lsn, err := m.log.WriteCommitTxn(state.TxnID, state.LastLSN)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: commit txn %d: %v", storage.ErrTransaction, state.TxnID, err)
	}
	m.cur.NextLSN = m.log.CurrentLSN()
	if err := m.log.ForceWAL(lsn); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: force WAL for commit of txn %d: %v", storage.ErrTransaction, state.TxnID, err)
	}
	perr := m.persistLocked(true)
	m.mu.Unlock()
	if perr != nil {
		return fmt.Errorf("%w: persist txn-state after commit of txn %d: %v", storage.ErrTransaction, state.TxnID, perr)
	}
	*state = State{}
	return nil
}

// RollbackTransaction delegates to the WAL's in-flight rollback algorithm
// (§4.7) and clears session state.
func (m *Manager) RollbackTransaction(state *State) error {
	if !state.started {
		*state = State{}
		return nil
	}
	m.mu.Lock()
	_, err := m.log.RollbackTransaction(m.svc, state.LastLSN)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: rollback txn %d: %v", storage.ErrTransaction, state.TxnID, err)
	}
	m.cur.NextLSN = m.log.CurrentLSN()
	perr := m.persistLocked(true)
	m.mu.Unlock()
	if perr != nil {
		return fmt.Errorf("%w: persist txn-state after rollback of txn %d: %v", storage.ErrTransaction, state.TxnID, perr)
	}
	*state = State{}
	return nil
}

// Checkpoint flushes every dirty buffer to disk and advances firstLSN to
// the current nextLSN. This is the only operation that moves firstLSN
// forward (the resolution to SPEC_FULL.md's open question on this point):
// recovery never advances it implicitly, only an explicit checkpoint,
// taken once every page dirtied before it is known to be safely on disk.
func (m *Manager) Checkpoint() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.svc.WriteAll(true); err != nil {
		return fmt.Errorf("checkpoint: flush data files: %w", err)
	}
	m.cur.FirstLSN = m.cur.NextLSN
	if err := m.persistLocked(true); err != nil {
		return fmt.Errorf("checkpoint: persist txn-state: %w", err)
	}
	m.progress(fmt.Sprintf("txn: checkpoint at %s", m.cur.FirstLSN))
	return nil
}
