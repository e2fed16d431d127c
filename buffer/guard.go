package buffer

import "github.com/burrowdb/burrow/storage/disk"

// PageGuard pairs a pinned page with the unpin it owes. Drop releases the
// pin exactly once; later calls are no-ops, so a deferred Drop is safe
// alongside an explicit one.
type PageGuard struct {
	mgr      *Manager
	file     *disk.PageFile
	pageNo   uint32
	data     []byte
	dirty    bool
	released bool
}

// ReadGuarded pins the page and wraps it in a guard.
func (m *Manager) ReadGuarded(file *disk.PageFile, pageNo uint32) (*PageGuard, error) {
	data, err := m.ReadPage(file, pageNo)
	if err != nil {
		return nil, err
	}
	return &PageGuard{mgr: m, file: file, pageNo: pageNo, data: data}, nil
}

// AllocGuarded allocates a fresh page and wraps it in a guard already
// marked dirty.
func (m *Manager) AllocGuarded(file *disk.PageFile) (*PageGuard, error) {
	pageNo, data, err := m.AllocPage(file)
	if err != nil {
		return nil, err
	}
	return &PageGuard{mgr: m, file: file, pageNo: pageNo, data: data, dirty: true}, nil
}

// PageNo returns the guarded page's number.
func (g *PageGuard) PageNo() uint32 {
	return g.pageNo
}

// Data returns the frame buffer. Callers that mutate it must MarkDirty.
func (g *PageGuard) Data() []byte {
	return g.data
}

// MarkDirty records that the buffer was written, so Drop unpins dirty.
func (g *PageGuard) MarkDirty() {
	g.dirty = true
}

// Drop releases the guard's pin.
func (g *PageGuard) Drop() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	return g.mgr.UnpinPage(g.file, g.pageNo, g.dirty)
}
