package btreepage

import (
	"bytes"
	"testing"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

func newPage(t *testing.T) []byte {
	t.Helper()
	return make([]byte, storage.DefaultPageSize)
}

func TestInnerPage_RoundTrip(t *testing.T) {
	buf := newPage(t)
	InitInnerPage(buf)

	ptrs := []uint32{1, 2, 3, 4}
	keys := [][]byte{[]byte("b"), []byte("d"), []byte("f")}
	if err := WriteInnerPage(buf, ptrs, keys); err != nil {
		t.Fatalf("WriteInnerPage: %v", err)
	}

	gotPtrs, gotKeys, err := ReadInnerPage(buf)
	if err != nil {
		t.Fatalf("ReadInnerPage: %v", err)
	}
	if len(gotPtrs) != len(ptrs) {
		t.Fatalf("pointer count mismatch: got %d want %d", len(gotPtrs), len(ptrs))
	}
	for i := range ptrs {
		if gotPtrs[i] != ptrs[i] {
			t.Errorf("ptr[%d]: got %d want %d", i, gotPtrs[i], ptrs[i])
		}
	}
	for i := range keys {
		if !bytes.Equal(gotKeys[i], keys[i]) {
			t.Errorf("key[%d]: got %q want %q", i, gotKeys[i], keys[i])
		}
	}
}

func TestFindChild(t *testing.T) {
	ptrs := []uint32{10, 20, 30, 40}
	keys := [][]byte{[]byte("b"), []byte("d"), []byte("f")}
	cmp := bytes.Compare

	cases := []struct {
		key  string
		want uint32
	}{
		{"a", 10}, {"b", 20}, {"c", 20}, {"d", 30}, {"e", 30}, {"f", 40}, {"z", 40},
	}
	for _, c := range cases {
		got := FindChild(ptrs, keys, []byte(c.key), cmp)
		if got != c.want {
			t.Errorf("FindChild(%q) = %d, want %d", c.key, got, c.want)
		}
	}
}

func TestLeafPage_InsertFindRoundTrip(t *testing.T) {
	buf := newPage(t)
	InitLeafPage(buf)

	var entries []LeafEntry
	add := func(k string, pageNo uint32, slot uint16) {
		entries = InsertSorted(entries, LeafEntry{Key: []byte(k), Row: types.TupleID{PageNo: pageNo, Slot: slot}}, bytes.Compare)
	}
	add("banana", 1, 0)
	add("apple", 1, 1)
	add("cherry", 2, 0)

	if err := WriteLeafPage(buf, entries); err != nil {
		t.Fatalf("WriteLeafPage: %v", err)
	}
	got, err := ReadLeafPage(buf)
	if err != nil {
		t.Fatalf("ReadLeafPage: %v", err)
	}
	want := []string{"apple", "banana", "cherry"}
	for i, w := range want {
		if string(got[i].Key) != w {
			t.Errorf("entry %d: got %q want %q", i, got[i].Key, w)
		}
	}

	row, ok := FindLeafEntry(got, []byte("banana"), bytes.Compare)
	if !ok || row.PageNo != 1 || row.Slot != 0 {
		t.Fatalf("FindLeafEntry(banana) = %+v, %v", row, ok)
	}
	if _, ok := FindLeafEntry(got, []byte("durian"), bytes.Compare); ok {
		t.Fatal("FindLeafEntry(durian) should not be found")
	}
}

func TestSplitInnerRight(t *testing.T) {
	src := newPage(t)
	dst := newPage(t)
	InitInnerPage(src)
	InitInnerPage(dst)

	ptrs := []uint32{1, 2, 3, 4, 5}
	keys := [][]byte{[]byte("b"), []byte("d"), []byte("f"), []byte("h")}
	if err := WriteInnerPage(src, ptrs, keys); err != nil {
		t.Fatalf("WriteInnerPage: %v", err)
	}

	sep, err := SplitInnerRight(src, dst, 2)
	if err != nil {
		t.Fatalf("SplitInnerRight: %v", err)
	}
	if string(sep) != "d" {
		t.Fatalf("separator = %q, want %q", sep, "d")
	}

	srcPtrs, srcKeys, err := ReadInnerPage(src)
	if err != nil {
		t.Fatalf("ReadInnerPage(src): %v", err)
	}
	if len(srcPtrs) != 2 || len(srcKeys) != 1 || string(srcKeys[0]) != "b" {
		t.Fatalf("src after split: ptrs=%v keys=%v", srcPtrs, srcKeys)
	}

	dstPtrs, dstKeys, err := ReadInnerPage(dst)
	if err != nil {
		t.Fatalf("ReadInnerPage(dst): %v", err)
	}
	if len(dstPtrs) != 3 || len(dstKeys) != 2 || string(dstKeys[0]) != "f" || string(dstKeys[1]) != "h" {
		t.Fatalf("dst after split: ptrs=%v keys=%v", dstPtrs, dstKeys)
	}
}

func TestSplitLeafRight(t *testing.T) {
	src := newPage(t)
	dst := newPage(t)
	InitLeafPage(src)
	InitLeafPage(dst)

	var entries []LeafEntry
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		entries = InsertSorted(entries, LeafEntry{Key: []byte(k), Row: types.TupleID{PageNo: 1}}, bytes.Compare)
	}
	if err := WriteLeafPage(src, entries); err != nil {
		t.Fatalf("WriteLeafPage: %v", err)
	}

	sep, err := SplitLeafRight(src, dst, 2)
	if err != nil {
		t.Fatalf("SplitLeafRight: %v", err)
	}
	if string(sep) != "d" {
		t.Fatalf("separator = %q, want %q", sep, "d")
	}
	SetNextLeaf(src, 99) // caller assigns dst's real page number
	SetPrevLeaf(dst, 7)  // caller assigns src's real page number

	srcEntries, err := ReadLeafPage(src)
	if err != nil {
		t.Fatalf("ReadLeafPage(src): %v", err)
	}
	if len(srcEntries) != 3 || string(srcEntries[2].Key) != "c" {
		t.Fatalf("src after split: %+v", srcEntries)
	}
	dstEntries, err := ReadLeafPage(dst)
	if err != nil {
		t.Fatalf("ReadLeafPage(dst): %v", err)
	}
	if len(dstEntries) != 2 || string(dstEntries[0].Key) != "d" || string(dstEntries[1].Key) != "e" {
		t.Fatalf("dst after split: %+v", dstEntries)
	}
	if NextLeaf(src) != 99 || PrevLeaf(dst) != 7 {
		t.Fatalf("sibling chain not wired: next(src)=%d prev(dst)=%d", NextLeaf(src), PrevLeaf(dst))
	}
}

func TestSplitHelpers_EmptySiblingIsNoOp(t *testing.T) {
	src := newPage(t)
	dst := newPage(t)
	InitInnerPage(src)
	InitInnerPage(dst)
	if err := WriteInnerPage(src, []uint32{1}, nil); err != nil {
		t.Fatalf("WriteInnerPage: %v", err)
	}
	sep, err := SplitInnerRight(src, dst, 0)
	if err != nil {
		t.Fatalf("SplitInnerRight(k=0): %v", err)
	}
	if sep != nil {
		t.Fatalf("expected nil separator for empty-sibling split, got %q", sep)
	}
}
