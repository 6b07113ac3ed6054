package storage

import "errors"

// Error kinds from spec.md §7. These are sentinels wrapped with fmt.Errorf's
// %w at every layer boundary (the teacher's idiom throughout
// internal/storage/pager) rather than a custom struct hierarchy; callers
// that need to branch on kind use errors.Is against these values.
var (
	// ErrIO: underlying file I/O failed. Never recovered locally; fatal for
	// the current operation, surfaced to the caller.
	ErrIO = errors.New("io error")

	// ErrCorruption: a page or WAL record did not match its declared
	// layout. Recovery aborts; the engine refuses to open.
	ErrCorruption = errors.New("corruption error")

	// ErrTransaction: user-level transaction failure (commit couldn't force
	// WAL, rollback saw an unexpected record). Txn state is preserved for
	// inspection.
	ErrTransaction = errors.New("transaction error")

	// ErrSchema: duplicate column, unresolved reference, type mismatch.
	ErrSchema = errors.New("schema error")

	// ErrExecution: runtime failure during evaluation (division by zero,
	// NULL where disallowed). Aborts the current query but not the
	// transaction.
	ErrExecution = errors.New("execution error")

	// ErrInvalidArgument: programmer error (bad page number, negative
	// size). Never recovered.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEOF: readPage went past end of file without create=true (§4.1).
	ErrEOF = errors.New("EOF")
)
