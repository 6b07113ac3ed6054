package btreepage

import "fmt"

// Split helpers move the leftmost or rightmost k pointers (inner pages) or
// entries (leaf pages) from a full page to an initialized sibling page,
// returning the separator key to promote into the parent (§4.6). An
// empty-sibling split — k==0 — is a legal no-op returning a nil separator;
// callers use it when growing the tree's height, where a new root is
// created around an existing single child with nothing yet to move.

// SplitInnerRight moves the rightmost k (pointer, key) pairs out of src into
// the empty sibling dst. The separator returned is the key immediately to
// the left of the moved range — it is removed from src (promoted, not
// duplicated, as is standard for inner pages) and becomes the parent's new
// separator between src and dst.
func SplitInnerRight(srcBuf, dstBuf []byte, k int) ([]byte, error) {
	ptrs, keys, err := ReadInnerPage(srcBuf)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		return nil, nil
	}
	if k < 0 || k >= len(keys) {
		return nil, fmt.Errorf("SplitInnerRight: k=%d out of range for %d keys", k, len(keys))
	}

	// ptrs[len(ptrs)-1-k:] and keys[len(keys)-k:] move to dst, along with
	// the separating pointer ptrs[len(ptrs)-1-k].
	splitPtrIdx := len(ptrs) - 1 - k
	sep := keys[len(keys)-k-1]
	dstPtrs := append([]uint32(nil), ptrs[splitPtrIdx:]...)
	dstKeys := append([][]byte(nil), keys[len(keys)-k:]...)
	srcPtrs := append([]uint32(nil), ptrs[:splitPtrIdx]...)
	srcKeys := append([][]byte(nil), keys[:len(keys)-k-1]...)

	if err := WriteInnerPage(dstBuf, dstPtrs, dstKeys); err != nil {
		return nil, err
	}
	if err := WriteInnerPage(srcBuf, srcPtrs, srcKeys); err != nil {
		return nil, err
	}
	return sep, nil
}

// SplitInnerLeft moves the leftmost k (pointer, key) pairs out of src into
// the empty sibling dst, analogous to SplitInnerRight but from the left
// edge (used when rebalancing toward a left sibling rather than growing a
// new right page).
func SplitInnerLeft(srcBuf, dstBuf []byte, k int) ([]byte, error) {
	ptrs, keys, err := ReadInnerPage(srcBuf)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		return nil, nil
	}
	if k < 0 || k >= len(keys) {
		return nil, fmt.Errorf("SplitInnerLeft: k=%d out of range for %d keys", k, len(keys))
	}

	sep := keys[k]
	dstPtrs := append([]uint32(nil), ptrs[:k+1]...)
	dstKeys := append([][]byte(nil), keys[:k]...)
	srcPtrs := append([]uint32(nil), ptrs[k+1:]...)
	srcKeys := append([][]byte(nil), keys[k+1:]...)

	if err := WriteInnerPage(dstBuf, dstPtrs, dstKeys); err != nil {
		return nil, err
	}
	if err := WriteInnerPage(srcBuf, srcPtrs, srcKeys); err != nil {
		return nil, err
	}
	return sep, nil
}

// SplitLeafRight moves the rightmost k entries out of src into the empty
// sibling dst, gives dst src's old next-leaf pointer, and returns the
// separator key — the first moved key, which (unlike the inner-page case)
// remains present in dst, since leaf pages hold every real key. The link
// between the two pages (src's next and dst's prev) is left as NoPage for
// the caller, which knows both page numbers, to fill in.
func SplitLeafRight(srcBuf, dstBuf []byte, k int) ([]byte, error) {
	entries, err := ReadLeafPage(srcBuf)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		return nil, nil
	}
	if k < 0 || k > len(entries) {
		return nil, fmt.Errorf("SplitLeafRight: k=%d out of range for %d entries", k, len(entries))
	}

	split := len(entries) - k
	moved := entries[split:]
	kept := entries[:split]
	sep := append([]byte(nil), moved[0].Key...)

	oldNext := NextLeaf(srcBuf)
	SetNextLeaf(dstBuf, oldNext)
	SetPrevLeaf(dstBuf, 0) // caller fixes to src's own page number
	SetNextLeaf(srcBuf, 0) // caller fixes to dst's own page number

	if err := WriteLeafPage(dstBuf, append([]LeafEntry(nil), moved...)); err != nil {
		return nil, err
	}
	if err := WriteLeafPage(srcBuf, append([]LeafEntry(nil), kept...)); err != nil {
		return nil, err
	}
	return sep, nil
}

// SplitLeafLeft moves the leftmost k entries out of src into the empty
// sibling dst, analogous to SplitLeafRight but from the left edge: dst gets
// src's old prev-leaf pointer, the separator is the first key kept in src,
// and the link between the two pages (dst's next and src's prev) is left as
// NoPage for the caller to fill in.
func SplitLeafLeft(srcBuf, dstBuf []byte, k int) ([]byte, error) {
	entries, err := ReadLeafPage(srcBuf)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		return nil, nil
	}
	if k < 0 || k > len(entries) {
		return nil, fmt.Errorf("SplitLeafLeft: k=%d out of range for %d entries", k, len(entries))
	}

	moved := entries[:k]
	kept := entries[k:]
	sep := append([]byte(nil), kept[0].Key...)

	oldPrev := PrevLeaf(srcBuf)
	SetPrevLeaf(dstBuf, oldPrev)
	SetNextLeaf(dstBuf, 0) // caller fixes to src's own page number
	SetPrevLeaf(srcBuf, 0) // caller fixes to dst's own page number

	if err := WriteLeafPage(dstBuf, append([]LeafEntry(nil), moved...)); err != nil {
		return nil, err
	}
	if err := WriteLeafPage(srcBuf, append([]LeafEntry(nil), kept...)); err != nil {
		return nil, err
	}
	return sep, nil
}
