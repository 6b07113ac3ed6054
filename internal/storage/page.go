package storage

// DBPage is a pinned view of one page (§3): the current, mutable byte
// array, a snapshot of the bytes taken at pin time (used by the WAL to
// diff what changed), a dirty flag, a pin count, and the LSN of the most
// recent WAL record describing a change to this page.
//
// Design note: the source model this spec distills links pages back to
// their owning file object. Here a page is identified to upper layers by
// the pin handle (File.Name(), PageNo) and owns no back-reference beyond
// the *DBFile needed to write itself back — ownership of the page's
// lifetime belongs to the BufferPool (§9).
type DBPage struct {
	File    *DBFile
	PageNo  uint32
	Data    []byte
	old     []byte
	Dirty   bool
	PageLSN LSN

	pinCount int
}

// snapshot captures Data into old, the baseline the WAL diffs future writes
// against. Called when a page is first pinned and again after every WAL
// record is written for it (§4.8 recordPageUpdate "refreshes the page's
// oldPageData snapshot for the next diff").
func (p *DBPage) snapshot() {
	if cap(p.old) < len(p.Data) {
		p.old = make([]byte, len(p.Data))
	}
	p.old = p.old[:len(p.Data)]
	copy(p.old, p.Data)
}

// OldBytes returns the pin-time (or last-logged) snapshot, for WAL diffing.
func (p *DBPage) OldBytes() []byte { return p.old }

// RefreshSnapshot re-baselines OldBytes to the current Data. Exported so the
// transaction manager can call it after logging a diff, per §4.8.
func (p *DBPage) RefreshSnapshot() { p.snapshot() }

// PinCount returns the current pin count.
func (p *DBPage) PinCount() int { return p.pinCount }
