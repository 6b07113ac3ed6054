// Package txn implements the transaction manager described in spec.md
// §4.8: the persistent txn-state page (nextTransactionId, firstLSN,
// nextLSN), per-session transaction state, and the startTransaction /
// recordPageUpdate / commitTransaction / rollbackTransaction operations
// table managers and the executor call into.
//
// Grounded on tinySQL's pager.Pager transaction methods (BeginTx/WritePage/
// CommitTx/AbortTx, internal/storage/pager/pager.go) for the overall shape
// — an atomic transaction-id counter plus WAL-record bookkeeping around
// every write — generalized to the two-LSN-cursor (firstLSN/nextLSN)
// bookkeeping and session-scoped state spec.md §4.8 and §9 ("singletons")
// call for.
package txn

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
)

// TxnStateFileName is the logical name the storage service caches the
// persistent txn-state file under.
const TxnStateFileName = "txnstate.dat"

// Byte layout of the txn-state page's fields, written
// immediately after storage.Page0HeaderSize: nextTransactionId (u32),
// firstLSN (u16,u32), nextLSN (u16,u32).
const (
	offNextTxnID   = storage.Page0HeaderSize
	offFirstLSNFN  = offNextTxnID + 4
	offFirstLSNOff = offFirstLSNFN + 2
	offNextLSNFN   = offFirstLSNOff + 4
	offNextLSNOff  = offNextLSNFN + 2
	statePageEnd   = offNextLSNOff + 4
)

// StatePage is the persistent page 0 of txnstate.dat (§4.8): the next
// transaction id to allocate, and the firstLSN/nextLSN cursors the
// recovery algorithm (§4.7) reads at startup.
type StatePage struct {
	NextTransactionID uint32
	FirstLSN          storage.LSN
	NextLSN           storage.LSN
}

// Encode writes the state page's fields into buf (a full page-sized
// buffer); it leaves everything outside [Page0HeaderSize, statePageEnd)
// untouched so the generic DBFile page-0 header and CRC trailer remain
// valid.
func (s StatePage) Encode(buf []byte) error {
	if len(buf) < statePageEnd {
		return fmt.Errorf("%w: txn-state page too small for its fields", storage.ErrInvalidArgument)
	}
	binary.BigEndian.PutUint32(buf[offNextTxnID:], s.NextTransactionID)
	binary.BigEndian.PutUint16(buf[offFirstLSNFN:], s.FirstLSN.FileNo)
	binary.BigEndian.PutUint32(buf[offFirstLSNOff:], s.FirstLSN.Offset)
	binary.BigEndian.PutUint16(buf[offNextLSNFN:], s.NextLSN.FileNo)
	binary.BigEndian.PutUint32(buf[offNextLSNOff:], s.NextLSN.Offset)
	return nil
}

// DecodeStatePage reads the txn-state fields back out of a page buffer.
func DecodeStatePage(buf []byte) (StatePage, error) {
	if len(buf) < statePageEnd {
		return StatePage{}, fmt.Errorf("%w: txn-state page too small for its fields", storage.ErrCorruption)
	}
	return StatePage{
		NextTransactionID: binary.BigEndian.Uint32(buf[offNextTxnID:]),
		FirstLSN: storage.LSN{
			FileNo: binary.BigEndian.Uint16(buf[offFirstLSNFN:]),
			Offset: binary.BigEndian.Uint32(buf[offFirstLSNOff:]),
		},
		NextLSN: storage.LSN{
			FileNo: binary.BigEndian.Uint16(buf[offNextLSNFN:]),
			Offset: binary.BigEndian.Uint32(buf[offNextLSNOff:]),
		},
	}, nil
}
