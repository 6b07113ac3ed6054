package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"nanodb/internal/storage"
)

// MaxWALFileSize is the rolling threshold: a write that would cross it
// starts a new wal-NNNNN.log file instead (§4.7 "Rolling files").
const MaxWALFileSize = 10 * 1024 * 1024

// walHeaderSize is the 6-byte header preceding the record stream: file type
// marker, encoded page size, and the previous file's last record offset
// (§4.7 "On-disk format").
const walHeaderSize = 6

func walFileName(fileNo uint16) string {
	return fmt.Sprintf("wal-%05d.log", fileNo)
}

// parseWALFileNo extracts the file number from a "wal-NNNNN.log" name, or
// reports ok=false if name doesn't match that shape.
func parseWALFileNo(name string) (uint16, bool) {
	if !strings.HasPrefix(name, "wal-") || !strings.HasSuffix(name, ".log") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "wal-"), ".log")
	if len(digits) != 5 {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 || n > 65535 {
		return 0, false
	}
	return uint16(n), true
}

// listWALFiles returns the file numbers present in dir, in ascending order.
func listWALFiles(dir string) ([]uint16, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list WAL dir %s: %v", storage.ErrIO, dir, err)
	}
	var nums []uint16
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := parseWALFileNo(e.Name()); ok {
			nums = append(nums, n)
		}
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

// writeWALHeader writes the 6-byte header of a new WAL file.
func writeWALHeader(f *os.File, pageSize int, prevFileLastOffset uint32) error {
	sizeLog, err := storage.EncodePageSizeLogForWAL(pageSize)
	if err != nil {
		return err
	}
	var hdr [walHeaderSize]byte
	hdr[0] = byte(storage.FileTypeWAL)
	hdr[1] = sizeLog
	binary.BigEndian.PutUint32(hdr[2:6], prevFileLastOffset)
	if _, err := f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("%w: write WAL header: %v", storage.ErrIO, err)
	}
	return nil
}

// readWALHeader validates an existing WAL file's header and returns the
// previous file's last record offset.
func readWALHeader(f *os.File, pageSize int) (prevFileLastOffset uint32, err error) {
	var hdr [walHeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return 0, fmt.Errorf("%w: read WAL header: %v", storage.ErrCorruption, err)
	}
	if ftype := storage.FileType(hdr[0]); ftype != storage.FileTypeWAL {
		return 0, fmt.Errorf("%w: WAL header has file type %d", storage.ErrCorruption, hdr[0])
	}
	if got := storage.DecodePageSizeLogForWAL(hdr[1]); got != pageSize {
		return 0, fmt.Errorf("%w: WAL header page size %d != expected %d", storage.ErrCorruption, got, pageSize)
	}
	return binary.BigEndian.Uint32(hdr[2:6]), nil
}
