package engine

import (
	"nanodb/internal/storage"
	"nanodb/internal/txn"
	"nanodb/internal/wal"
)

// Exit codes from §6's command surface.
const (
	ExitNormal          = 0
	ExitStartupFailure  = 1
	ExitShutdownFailure = 2
)

// Engine owns the shared, per-process resources named in §5's "Shared
// resources": the buffer pool, the open file table, and the WAL writer.
// It replaces tinySQL's process-wide singletons (§9's "Singletons" note)
// with an explicit handle passed into every Session.
type Engine struct {
	cfg     Config
	svc     *storage.Service
	log     *wal.WAL
	txns    *txn.Manager
	catalog *Catalog
}

// Open starts an Engine over cfg.BaseDir. Per §5's single-writer model,
// callers are expected to serialize write transactions across the
// Sessions they create from the returned Engine.
//
// cfg.Transactions selects only whether nanodb.transactions was
// configured "on" or "off" for the caller's own bookkeeping: WAL +
// recovery are always engaged here, because heap.Table and txn.Manager —
// unlike tinySQL, which has a separate non-transactional execution path —
// were built with no direct-write mode to duplicate. See DESIGN.md.
func Open(cfg Config) (*Engine, int, error) {
	svc := storage.NewService(cfg.BaseDir, cfg.PageSize, storage.BufferPoolConfig{MaxBytes: cfg.BufferSize})

	log, err := wal.Open(cfg.BaseDir, cfg.PageSize, nil)
	if err != nil {
		return nil, ExitStartupFailure, err
	}
	svc.Pool().SetWALForcer(log)

	txns, err := txn.Open(svc, log, nil)
	if err != nil {
		return nil, ExitStartupFailure, err
	}

	return &Engine{cfg: cfg, svc: svc, log: log, txns: txns, catalog: newCatalog()}, ExitNormal, nil
}

// NewSession opens a new session over the engine's shared resources
// (§9's "Singletons" note: session state is an explicit value here, not
// thread-local).
func (e *Engine) NewSession() *Session {
	return &Session{eng: e}
}

// Catalog exposes the engine's table registry, e.g. so a caller can check
// capabilities (Scannable, Insertable, RandomAccess) before building a
// planner.Leaf.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Close checkpoints the transaction manager's state page and returns the
// exit status named in §6 (0 normal shutdown, 2 shutdown failure).
func (e *Engine) Close() int {
	if err := e.txns.Checkpoint(); err != nil {
		return ExitShutdownFailure
	}
	return ExitNormal
}
