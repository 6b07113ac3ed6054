// Package btreepage implements the B+-tree page sketch described in
// spec.md §4.6: inner pages holding sorted (pointer, key) sequences and
// leaf pages holding sorted (key, row) entries, plus the split helpers a
// unique-index insert path needs. It stops at the page level — there is no
// tree/index manager here, matching spec.md's "sketch" framing.
//
// Grounded on tinySQL's pager/btree_page.go (shared page-type byte,
// sorted-key invariant, leaf sibling chaining) and pager/btree.go's
// insertWithSplit/insertIntoParent (move-k-entries-to-a-sibling,
// promote-the-separator algorithm), adapted from tinySQL's per-slot
// internal/leaf record format to the single-block inner-page layout
// spec.md §4.6 gives explicitly.
package btreepage

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
)

// pageKind tags every btreepage page at offset 0, the way internal/heap
// tags its pages, so a page read off disk can be dispatched to the right
// decoder without external bookkeeping.
type pageKind byte

const (
	pageKindInner pageKind = 0
	pageKindLeaf  pageKind = 1
)

func kindOf(buf []byte) pageKind { return pageKind(buf[0]) }

// NoPage is the null child/sibling pointer sentinel (page 0 is always a
// schema/header page in every file type this module knows of, so it is
// safe to repurpose as "no page").
const NoPage uint32 = 0

func usable(buf []byte) int { return storage.UsableSize(len(buf)) }

func putUint16(buf []byte, off int, v int) { binary.BigEndian.PutUint16(buf[off:], uint16(v)) }
func getUint16(buf []byte, off int) int    { return int(binary.BigEndian.Uint16(buf[off:])) }

var errPageFull = fmt.Errorf("%w: btree page has no room for the requested entries", storage.ErrInvalidArgument)
