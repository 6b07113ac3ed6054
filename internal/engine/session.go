package engine

import (
	"fmt"

	"nanodb/internal/colstore"
	"nanodb/internal/heap"
	"nanodb/internal/planner"
	"nanodb/internal/storage"
	"nanodb/internal/txn"
	"nanodb/internal/types"
)

// Session is one client's view of an Engine: the explicit transaction
// handle §9 asks for in place of thread-local session state. A Session is
// not safe for concurrent use by multiple goroutines, matching §5's
// single-consumer pull model.
type Session struct {
	eng   *Engine
	state *txn.State // non-nil only while an explicit Begin...Commit/Rollback is open
}

// Begin starts an explicit transaction (§6's Begin command).
func (s *Session) Begin() error {
	if s.state != nil {
		return fmt.Errorf("%w: a transaction is already open on this session", storage.ErrTransaction)
	}
	s.state = s.eng.txns.StartTransaction(true)
	return nil
}

// Commit ends the session's explicit transaction, forcing its COMMIT_TXN
// record to disk before returning (§5's durability boundary).
func (s *Session) Commit() error {
	if s.state == nil {
		return fmt.Errorf("%w: no transaction is open on this session", storage.ErrTransaction)
	}
	state := s.state
	s.state = nil
	return s.eng.txns.CommitTransaction(state)
}

// Rollback undoes the session's explicit transaction (§6's Rollback
// command). A rolled-back transaction is indistinguishable from a
// completed one afterward, per §5's "Cancellation and timeouts" note.
func (s *Session) Rollback() error {
	if s.state == nil {
		return fmt.Errorf("%w: no transaction is open on this session", storage.ErrTransaction)
	}
	state := s.state
	s.state = nil
	return s.eng.txns.RollbackTransaction(state)
}

// withTxn runs fn under the session's explicit transaction if one is
// open, or an auto-committed one-shot transaction otherwise, rolling
// back on error the way §7's propagation policy asks: "the transaction
// manager converts I/O errors during a write into an ExecutionError that
// also marks the transaction for rollback."
func (s *Session) withTxn(fn func(*txn.State) error) error {
	if s.state != nil {
		return fn(s.state)
	}
	state := s.eng.txns.StartTransaction(false)
	if err := fn(state); err != nil {
		if rbErr := s.eng.txns.RollbackTransaction(state); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return s.eng.txns.CommitTransaction(state)
}

// CreateTable creates a new heap table (§6's CreateTable command; §1's
// baseline path) and registers it in the engine's catalog.
func (s *Session) CreateTable(name string, schema *types.Schema) (*heap.Table, error) {
	tbl, err := heap.CreateTable(s.eng.svc, s.eng.txns, name, schema)
	if err != nil {
		return nil, err
	}
	s.eng.catalog.register(heapHandle{tbl: tbl})
	return tbl, nil
}

// CreateColumnStoreTable bulk-writes a column-store table (§4.5) and
// registers it Scannable-only in the catalog. Unlike CreateTable, the
// full set of rows must be supplied up front: colstore.WriteTable chooses
// each column's encoding from the complete value set.
func (s *Session) CreateColumnStoreTable(data colstore.TableData) error {
	if err := colstore.WriteTable(s.eng.svc, colstore.HeuristicAnalyzer{}, data); err != nil {
		return err
	}
	s.eng.catalog.register(columnStoreHandle{svc: s.eng.svc, name: data.Table, schema: data.Schema})
	return nil
}

// Insert adds rows to an existing table one at a time (§6's Insert
// command). The table must be Insertable — a column-store table, having
// no per-row insert path, is rejected with InvalidArgument.
func (s *Session) Insert(table string, rows [][]types.Value) (int, error) {
	h, ok := s.eng.catalog.Lookup(table)
	if !ok {
		return 0, fmt.Errorf("%w: table %q not found", storage.ErrSchema, table)
	}
	ins, ok := h.(Insertable)
	if !ok {
		return 0, fmt.Errorf("%w: table %q does not support row-at-a-time insert", storage.ErrInvalidArgument, table)
	}
	n := 0
	err := s.withTxn(func(state *txn.State) error {
		for _, row := range rows {
			if _, err := ins.Insert(state, row); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// Select plans and prepares clause (§6's Select command), returning a
// streamed tuple iterator with column descriptors — never materializing
// the result, per §4.10's pull-iterator design.
func (s *Session) Select(clause planner.SelectClause) (*ResultSet, error) {
	node, err := planner.Plan(clause)
	if err != nil {
		return nil, err
	}
	if err := node.Initialize(); err != nil {
		return nil, err
	}
	return &ResultSet{node: node}, nil
}

// Exit rolls back any transaction the session left open and reports a
// status, per §6's "Exit" command and exit codes. A session holds no
// resources of its own to release — those belong to the Engine.
func (s *Session) Exit() int {
	if s.state != nil {
		if err := s.eng.txns.RollbackTransaction(s.state); err != nil {
			s.state = nil
			return ExitShutdownFailure
		}
		s.state = nil
	}
	return ExitNormal
}
