package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Service composes the file manager and buffer pool into the single seam
// every upper layer (heap, colstore, btreepage, wal, txn) uses to reach disk
// (§4.3). It caches open *DBFile handles by logical name so repeated
// createDBFile/openDBFile calls for the same file return the same handle.
type Service struct {
	mu       sync.Mutex
	baseDir  string
	files    map[string]*DBFile
	pool     *BufferPool
	pageSize int
}

// NewService creates a storage service rooted at baseDir, with the given
// default page size and buffer pool configuration.
func NewService(baseDir string, pageSize int, poolCfg BufferPoolConfig) *Service {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		baseDir:  baseDir,
		files:    make(map[string]*DBFile),
		pool:     NewBufferPool(poolCfg),
		pageSize: pageSize,
	}
}

// Pool exposes the underlying buffer pool, e.g. so the WAL component can
// call SetWALForcer on it.
func (s *Service) Pool() *BufferPool { return s.pool }

// PageSize returns the service's default page size.
func (s *Service) PageSize() int { return s.pageSize }

func (s *Service) pathFor(name string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(name))
}

// CreateDBFile creates a new on-disk file of the given type and caches its
// handle under name. Parent directories are created as needed.
func (s *Service) CreateDBFile(name string, ftype FileType) (*DBFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	path := s.pathFor(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: mkdir for %s: %v", ErrIO, name, err)
	}
	f, err := CreateDBFile(path, name, ftype, s.pageSize)
	if err != nil {
		return nil, err
	}
	s.files[name] = f
	return f, nil
}

// OpenDBFile opens an existing on-disk file and caches its handle under
// name.
func (s *Service) OpenDBFile(name string) (*DBFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	f, err := OpenDBFile(s.pathFor(name), name)
	if err != nil {
		return nil, err
	}
	s.files[name] = f
	return f, nil
}

// GetOpenDBFile returns a previously opened/created handle by logical name,
// without touching disk.
func (s *Service) GetOpenDBFile(name string) (*DBFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[name]
	return f, ok
}

// CloseDBFile flushes, syncs, and closes the file, evicting it from the
// handle cache.
func (s *Service) CloseDBFile(name string) error {
	s.mu.Lock()
	f, ok := s.files[name]
	if ok {
		delete(s.files, name)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.pool.Flush(f, 0, 0, true); err != nil {
		return err
	}
	return f.Close()
}

// LoadDBPage pins and returns the page identified by (name, pageNo),
// opening/creating pages beyond EOF when create is true.
func (s *Service) LoadDBPage(name string, pageNo uint32, create bool) (*DBPage, error) {
	f, ok := s.GetOpenDBFile(name)
	if !ok {
		return nil, fmt.Errorf("%w: file %s is not open", ErrInvalidArgument, name)
	}
	return s.pool.Pin(f, pageNo, create)
}

// UnpinDBPage unpins page, optionally marking it dirty first.
func (s *Service) UnpinDBPage(page *DBPage, dirty bool) {
	if dirty {
		s.pool.MarkDirty(page)
	}
	s.pool.Unpin(page)
}

// WriteDBFile flushes file's dirty pages in [start,end) (end==0 means all)
// and optionally fsyncs.
func (s *Service) WriteDBFile(name string, start, end uint32, sync bool) error {
	f, ok := s.GetOpenDBFile(name)
	if !ok {
		return fmt.Errorf("%w: file %s is not open", ErrInvalidArgument, name)
	}
	return s.pool.Flush(f, start, end, sync)
}

// WriteAll flushes every dirty page across every open file.
func (s *Service) WriteAll(sync bool) error {
	return s.pool.FlushAll(sync)
}

// CloseAll flushes and closes every open file.
func (s *Service) CloseAll() error {
	s.mu.Lock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	s.mu.Unlock()
	for _, name := range names {
		if err := s.CloseDBFile(name); err != nil {
			return err
		}
	}
	return nil
}
