package buffer

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/burrowdb/burrow/storage/disk"
)

// Manager is the buffer pool: a fixed set of frames caching disk pages,
// a hash from (file, page number) to frame, and a clock replacer driving
// eviction. At most one frame ever holds a given page, and a pinned frame
// is never evicted or reassigned.
//
// The pool serves a single logical client; the mutex only guards against
// accidental cross-goroutine use, not concurrent pin semantics.
type Manager struct {
	mu       sync.Mutex
	frames   []*frameDesc
	table    *pageTable
	replacer *clockReplacer
	sched    *disk.Scheduler
	log      *logrus.Logger
}

// NewManager builds a pool with the given number of frames on top of the
// disk scheduler.
func NewManager(frames int, sched *disk.Scheduler) *Manager {
	descs := make([]*frameDesc, frames)
	for i := range descs {
		descs[i] = newFrameDesc(i)
	}

	return &Manager{
		frames:   descs,
		table:    newPageTable(frames),
		replacer: newClockReplacer(descs),
		sched:    sched,
		log:      logrus.StandardLogger(),
	}
}

// SetLogger replaces the logger used for shutdown diagnostics.
func (m *Manager) SetLogger(log *logrus.Logger) {
	m.log = log
}

// ReadPage pins the page in the pool and returns its frame buffer. On a
// hit the refbit is set and the pin count bumped; on a miss a frame is
// claimed from the replacer and the page read through the scheduler.
// Every ReadPage must be paired with an UnpinPage.
func (m *Manager) ReadPage(file *disk.PageFile, pageNo uint32) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.table.lookup(file.ID(), pageNo); ok {
		frame := m.frames[idx]
		frame.refbit = true
		frame.pinCount++
		return frame.data, nil
	}

	frame, err := m.allocFrame()
	if err != nil {
		return nil, err
	}

	page, err := m.sched.Read(file, pageNo)
	if err != nil {
		return nil, err
	}

	copy(frame.data, page.Data)
	m.table.insert(file.ID(), pageNo, frame.frameNo)
	frame.set(file, pageNo)
	return frame.data, nil
}

// AllocPage allocates a fresh page in the file, installs it in a frame
// pinned once, and returns the page number with the frame buffer.
func (m *Manager) AllocPage(file *disk.PageFile) (uint32, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.sched.Allocate(file)
	if err != nil {
		return disk.InvalidPageNo, nil, err
	}

	frame, err := m.allocFrame()
	if err != nil {
		return disk.InvalidPageNo, nil, err
	}

	copy(frame.data, page.Data)
	m.table.insert(file.ID(), page.No, frame.frameNo)
	frame.set(file, page.No)
	return page.No, frame.data, nil
}

// UnpinPage releases one pin on the page and, when dirty is set, marks the
// frame for write-back. Unpinning a page that is not resident is a no-op;
// unpinning a page with no pins is a client accounting bug and raises
// ErrPageNotPinned. The refbit is left alone: it is maintained by access
// paths, not release.
func (m *Manager) UnpinPage(file *disk.PageFile, pageNo uint32, dirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.table.lookup(file.ID(), pageNo)
	if !ok {
		return nil
	}

	frame := m.frames[idx]
	if frame.pinCount == 0 {
		return errors.Wrapf(ErrPageNotPinned, "file %s page %d frame %d", file.Filename(), pageNo, idx)
	}

	frame.pinCount--
	if dirty {
		frame.dirty = true
	}
	return nil
}

// FlushFile writes back every dirty frame of the file and drops all of the
// file's frames from the pool. A pinned page aborts the flush with
// ErrPagePinned; an invalid frame still claiming the file raises
// ErrBadBuffer.
func (m *Manager) FlushFile(file *disk.PageFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, frame := range m.frames {
		if frame.file != file {
			continue
		}

		if frame.pinCount > 0 {
			return errors.Wrapf(ErrPagePinned, "file %s page %d frame %d", file.Filename(), frame.pageNo, frame.frameNo)
		}
		if !frame.valid {
			return errors.Wrapf(ErrBadBuffer, "frame %d", frame.frameNo)
		}

		if frame.dirty {
			if err := m.writeBack(frame); err != nil {
				return err
			}
		}

		m.table.remove(file.ID(), frame.pageNo)
		frame.clear()
	}
	return nil
}

// DisposePage deletes the page from the file, first releasing its frame if
// it is resident. Disposing a pinned page raises ErrPagePinned.
func (m *Manager) DisposePage(file *disk.PageFile, pageNo uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.table.lookup(file.ID(), pageNo); ok {
		frame := m.frames[idx]
		if frame.pinCount > 0 {
			return errors.Wrapf(ErrPagePinned, "file %s page %d frame %d", file.Filename(), pageNo, idx)
		}
		frame.clear()
		m.table.remove(file.ID(), pageNo)
	}

	return m.sched.Delete(file, pageNo)
}

// Close writes back every dirty valid frame, best effort. Pins are ignored
// because no clients remain; failures are logged and the first one is
// returned.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, frame := range m.frames {
		if !frame.valid || !frame.dirty {
			continue
		}
		if err := m.writeBack(frame); err != nil {
			m.log.WithFields(logrus.Fields{
				"file": frame.file.Filename(),
				"page": frame.pageNo,
			}).Warnf("write-back on shutdown failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	Frames int
	Valid  int
	Pinned int
	Dirty  int
}

// PoolStats reports current pool occupancy.
func (m *Manager) PoolStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Frames: len(m.frames)}
	for _, frame := range m.frames {
		if !frame.valid {
			continue
		}
		stats.Valid++
		if frame.pinCount > 0 {
			stats.Pinned++
		}
		if frame.dirty {
			stats.Dirty++
		}
	}
	return stats
}

// allocFrame obtains a free frame via the clock sweep, evicting the chosen
// frame's current page first when it holds one.
func (m *Manager) allocFrame() (*frameDesc, error) {
	frame, err := m.replacer.victim()
	if err != nil {
		return nil, err
	}

	if frame.valid {
		if frame.dirty {
			if err := m.writeBack(frame); err != nil {
				return nil, err
			}
		}
		m.table.remove(frame.file.ID(), frame.pageNo)
		frame.clear()
	}
	return frame, nil
}

func (m *Manager) writeBack(frame *frameDesc) error {
	page := &disk.Page{No: frame.pageNo, Data: frame.data}
	if err := m.sched.Write(frame.file, page); err != nil {
		return err
	}
	frame.dirty = false
	return nil
}
