package btreepage

import (
	"encoding/binary"
	"fmt"

	"nanodb/internal/storage"
)

// Inner page layout (§4.6, literal):
//
//	[0:1)  kind = pageKindInner
//	[1:3)  pointerCount (u16)
//	then pointerCount+1 (ptr, key) runs: ptr₀ [keyLen key]₀ ptr₁ [keyLen key]₁ ... ptrₙ
//
// keyᵢ lies between the key ranges pointed to by ptrᵢ and ptrᵢ₊₁. Keys carry
// a 2-byte length prefix since they are serialized tuples of arbitrary
// width — spec.md's literal byte table abstracts over key representation,
// but concrete bytes need a length to parse back out.
const (
	innerOffPointerCount = 1
	innerBodyStart       = 3
)

// InitInnerPage formats buf as an empty inner page.
func InitInnerPage(buf []byte) {
	buf[0] = byte(pageKindInner)
	putUint16(buf, innerOffPointerCount, 0)
}

// IsInnerPage reports whether buf holds an inner page.
func IsInnerPage(buf []byte) bool { return kindOf(buf) == pageKindInner }

// ReadInnerPage decodes buf into its pointer and key sequences. len(ptrs)
// == len(keys)+1.
func ReadInnerPage(buf []byte) (ptrs []uint32, keys [][]byte, err error) {
	if !IsInnerPage(buf) {
		return nil, nil, fmt.Errorf("%w: not an inner page", storage.ErrCorruption)
	}
	count := getUint16(buf, innerOffPointerCount)
	ptrs = make([]uint32, 0, count+1)
	keys = make([][]byte, 0, count)
	off := innerBodyStart
	for i := 0; i < count+1; i++ {
		if off+4 > len(buf) {
			return nil, nil, fmt.Errorf("%w: truncated inner page pointer", storage.ErrCorruption)
		}
		ptrs = append(ptrs, binary.BigEndian.Uint32(buf[off:]))
		off += 4
		if i == count {
			break
		}
		if off+2 > len(buf) {
			return nil, nil, fmt.Errorf("%w: truncated inner page key length", storage.ErrCorruption)
		}
		klen := getUint16(buf, off)
		off += 2
		if off+klen > len(buf) {
			return nil, nil, fmt.Errorf("%w: truncated inner page key", storage.ErrCorruption)
		}
		key := make([]byte, klen)
		copy(key, buf[off:off+klen])
		keys = append(keys, key)
		off += klen
	}
	return ptrs, keys, nil
}

// innerEncodedSize returns the number of bytes WriteInnerPage would need for
// the given pointers/keys.
func innerEncodedSize(ptrs []uint32, keys [][]byte) int {
	size := innerBodyStart + 4*len(ptrs)
	for _, k := range keys {
		size += 2 + len(k)
	}
	return size
}

// WriteInnerPage rebuilds buf's inner-page contents from ptrs/keys
// (len(ptrs) must be len(keys)+1).
func WriteInnerPage(buf []byte, ptrs []uint32, keys [][]byte) error {
	if len(ptrs) != len(keys)+1 {
		return fmt.Errorf("%w: inner page needs len(ptrs) == len(keys)+1, got %d/%d",
			storage.ErrInvalidArgument, len(ptrs), len(keys))
	}
	if innerEncodedSize(ptrs, keys) > usable(buf) {
		return errPageFull
	}
	buf[0] = byte(pageKindInner)
	putUint16(buf, innerOffPointerCount, len(keys))
	off := innerBodyStart
	for i, k := range keys {
		binary.BigEndian.PutUint32(buf[off:], ptrs[i])
		off += 4
		putUint16(buf, off, len(k))
		off += 2
		copy(buf[off:], k)
		off += len(k)
	}
	binary.BigEndian.PutUint32(buf[off:], ptrs[len(ptrs)-1])
	return nil
}

// FindChild returns the child pointer to follow for key, given a
// three-way comparator over serialized keys: the largest ptrᵢ such that
// key >= keyᵢ₋₁ (ptr₀ if key is smaller than every separator).
func FindChild(ptrs []uint32, keys [][]byte, key []byte, cmp func(a, b []byte) int) uint32 {
	child := ptrs[0]
	for i, k := range keys {
		if cmp(key, k) < 0 {
			break
		}
		child = ptrs[i+1]
	}
	return child
}
