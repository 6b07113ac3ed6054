// Package storage implements the file manager, buffer pool, and storage
// service described in spec.md §4.1-§4.3: page-aligned I/O under a shared
// LRU buffer pool, fronted by a thin service that upper layers (heap,
// column-store, B+-tree, WAL) use exclusively.
//
// Adapted from tinySQL's internal/storage/pager package (PageFrame,
// PageBufferPool, Pager): same pin-counted buffer pool / CRC-checked page
// mechanics, narrowed to the page-0 header format and big-endian encoding
// spec.md §4.1/§6 call for, and split into the file-manager / buffer-pool /
// storage-service seams spec.md names as distinct components.
package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math/bits"
	"os"
	"sync"
)

// FileType identifies the kind of DBFile, encoded in the first two bytes of
// page 0 (§3).
type FileType uint16

const (
	FileTypeHeapData     FileType = 1
	FileTypeColStoreData FileType = 2
	FileTypeBTreeIndex   FileType = 3
	FileTypeTxnState     FileType = 4
	FileTypeWAL          FileType = 5
)

func (t FileType) String() string {
	switch t {
	case FileTypeHeapData:
		return "heap"
	case FileTypeColStoreData:
		return "colstore"
	case FileTypeBTreeIndex:
		return "btree"
	case FileTypeTxnState:
		return "txnstate"
	case FileTypeWAL:
		return "wal"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(t))
	}
}

const (
	// DefaultPageSize matches spec.md §3's default.
	DefaultPageSize = 8192
	MinPageSize     = 512
	MaxPageSize     = 65536

	// Page0HeaderSize is the reserved region at the start of page 0 in
	// every DBFile, per §4.1: byte 0-1 file type, byte 2 page-size log,
	// bytes 3-31 reserved for future use. File-type-specific content (the
	// heap/colstore schema header, the txn-state fields) begins at byte 32.
	Page0HeaderSize = 32

	// PageTrailerSize reserves the last 4 bytes of every page (including
	// page 0) for a CRC32 checksum. This is additive rigor beyond what
	// spec.md's byte-layout tables mandate (they describe only the front of
	// each page) — every page-type layout in this module is written to
	// leave its last 4 bytes alone, turning a torn or corrupted page read
	// into an explicit CorruptionError (§7) instead of silently-wrong data.
	// Grounded on tinySQL's ComputePageCRC/VerifyPageCRC (pager/page.go).
	PageTrailerSize = 4
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func trailerOffset(pageSize int) int { return pageSize - PageTrailerSize }

// UsableSize returns the number of bytes of pageSize available to a
// file-type-specific layout (heap slotted pages, column-store blocks,
// B+-tree pages) once the CRC trailer is excluded.
func UsableSize(pageSize int) int { return pageSize - PageTrailerSize }

func pageCRC(page []byte) uint32 {
	h := crc32.New(crcTable)
	h.Write(page[:trailerOffset(len(page))])
	return h.Sum32()
}

func setPageCRC(page []byte) {
	binary.BigEndian.PutUint32(page[trailerOffset(len(page)):], pageCRC(page))
}

func verifyPageCRC(page []byte) error {
	off := trailerOffset(len(page))
	stored := binary.BigEndian.Uint32(page[off:])
	computed := pageCRC(page)
	if stored != computed {
		return fmt.Errorf("%w: CRC mismatch (stored=%08x computed=%08x)", ErrCorruption, stored, computed)
	}
	return nil
}

// encodePageSizeLog returns log2(pageSize)-9, e.g. 8192 -> 4, per §4.1.
func encodePageSizeLog(pageSize int) (byte, error) {
	if pageSize < MinPageSize || pageSize > MaxPageSize || pageSize&(pageSize-1) != 0 {
		return 0, fmt.Errorf("%w: page size %d must be a power of two in [%d,%d]", ErrInvalidArgument, pageSize, MinPageSize, MaxPageSize)
	}
	log := bits.TrailingZeros(uint(pageSize))
	return byte(log - 9), nil
}

func decodePageSizeLog(b byte) int {
	return 1 << (uint(b) + 9)
}

// EncodePageSizeLogForWAL exposes encodePageSizeLog to internal/wal, whose
// flat record stream (§4.7) is not a DBFile and so cannot reuse
// CreateDBFile's page-0 header writer directly.
func EncodePageSizeLogForWAL(pageSize int) (byte, error) { return encodePageSizeLog(pageSize) }

// DecodePageSizeLogForWAL is the inverse of EncodePageSizeLogForWAL.
func DecodePageSizeLogForWAL(b byte) int { return decodePageSizeLog(b) }

// DBFile is a sequence of fixed-size pages on disk (§3): page 0 is a header
// encoding file type and page size; all I/O beyond it is page-aligned.
type DBFile struct {
	mu       sync.Mutex
	f        *os.File
	name     string // logical name, e.g. "Employee/Employee.tbl"
	path     string
	Type     FileType
	PageSize int
}

// CreateDBFile creates a new, empty (one-page) DBFile of the given type and
// page size. It is an error if path already exists.
func CreateDBFile(path, name string, ftype FileType, pageSize int) (*DBFile, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	sizeLog, err := encodePageSizeLog(pageSize)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create db file %s: %w", path, err)
	}
	df := &DBFile{f: f, name: name, path: path, Type: ftype, PageSize: pageSize}

	page0 := make([]byte, pageSize)
	binary.BigEndian.PutUint16(page0[0:2], uint16(ftype))
	page0[2] = sizeLog
	setPageCRC(page0)
	if _, err := f.WriteAt(page0, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header of %s: %w", path, err)
	}
	return df, nil
}

// OpenDBFile opens an existing DBFile and validates its page-0 header.
func OpenDBFile(path, name string) (*DBFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open db file %s: %w", path, err)
	}
	hdr := make([]byte, Page0HeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read header of %s: %v", ErrCorruption, path, err)
	}
	ftype := FileType(binary.BigEndian.Uint16(hdr[0:2]))
	pageSize := decodePageSizeLog(hdr[2])
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		f.Close()
		return nil, fmt.Errorf("%w: invalid page size in header of %s", ErrCorruption, path)
	}
	full := make([]byte, pageSize)
	if _, err := f.ReadAt(full, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: re-read page 0 of %s: %v", ErrCorruption, path, err)
	}
	if err := verifyPageCRC(full); err != nil {
		f.Close()
		return nil, err
	}
	return &DBFile{f: f, name: name, path: path, Type: ftype, PageSize: pageSize}, nil
}

// Name returns the file's logical name (how StorageService caches it).
func (df *DBFile) Name() string { return df.name }

// PageCount reports how many pages the file currently holds.
func (df *DBFile) PageCount() (uint32, error) {
	df.mu.Lock()
	defer df.mu.Unlock()
	fi, err := df.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint32(fi.Size() / int64(df.PageSize)), nil
}

// ReadPage reads page pageNo into buf (which must be PageSize bytes), and
// verifies its CRC. If create is true and the page is beyond EOF, the file
// is extended with zero-filled pages up to and including pageNo instead of
// failing (§4.1).
func (df *DBFile) ReadPage(pageNo uint32, buf []byte, create bool) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	off := int64(pageNo) * int64(df.PageSize)
	n, err := df.f.ReadAt(buf, off)
	if err != nil {
		if err == io.EOF || n < len(buf) {
			if !create {
				return fmt.Errorf("%w: page %d of %s", ErrEOF, pageNo, df.name)
			}
			if zerr := df.extendLocked(pageNo); zerr != nil {
				return zerr
			}
			for i := range buf {
				buf[i] = 0
			}
			setPageCRC(buf)
			return nil
		}
		return fmt.Errorf("%w: read page %d of %s: %v", ErrIO, pageNo, df.name, err)
	}
	return verifyPageCRC(buf)
}

// extendLocked grows the file with zero-filled, CRC-stamped pages through
// pageNo inclusive. Caller holds df.mu.
func (df *DBFile) extendLocked(pageNo uint32) error {
	fi, err := df.f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrIO, df.name, err)
	}
	have := uint32(fi.Size() / int64(df.PageSize))
	if have > pageNo {
		return nil
	}
	zero := make([]byte, df.PageSize)
	setPageCRC(zero)
	for p := have; p <= pageNo; p++ {
		if _, err := df.f.WriteAt(zero, int64(p)*int64(df.PageSize)); err != nil {
			return fmt.Errorf("%w: extend %s to page %d: %v", ErrIO, df.name, p, err)
		}
	}
	return nil
}

// WritePage writes buf (PageSize bytes) as page pageNo, stamping its CRC.
func (df *DBFile) WritePage(pageNo uint32, buf []byte) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	setPageCRC(buf)
	off := int64(pageNo) * int64(df.PageSize)
	if _, err := df.f.WriteAt(buf, off); err != nil {
		return fmt.Errorf("%w: write page %d of %s: %v", ErrIO, pageNo, df.name, err)
	}
	return nil
}

// Sync fsyncs the underlying file.
func (df *DBFile) Sync() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if err := df.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrIO, df.name, err)
	}
	return nil
}

// Truncate resizes the file to exactly pageCount pages.
func (df *DBFile) Truncate(pageCount uint32) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if err := df.f.Truncate(int64(pageCount) * int64(df.PageSize)); err != nil {
		return fmt.Errorf("%w: truncate %s: %v", ErrIO, df.name, err)
	}
	return nil
}

// Close closes the underlying OS file handle.
func (df *DBFile) Close() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.f.Close()
}
