package disk

import (
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
)

// PageSize is the unit of disk I/O. Node layouts and heap pages are sized
// to fit in exactly one page.
const PageSize = 4096

// InvalidPageNo marks an absent page reference. Real page numbers start at 1.
const InvalidPageNo uint32 = 0

var nextFileID atomic.Uint64

// Page is a fixed-size buffer read from or destined for a page file.
type Page struct {
	No   uint32
	Data []byte
}

// RecordID locates a tuple in a base relation: the heap page holding it and
// the slot within that page. A RecordID with PageNo 0 is a null reference.
type RecordID struct {
	PageNo uint32
	SlotNo uint16
}

// PageFile is a file made of fixed-size pages addressed by page number.
// Page n lives at byte offset (n-1)*PageSize. Deleted page numbers are kept
// on an in-memory free list and may be handed out again by AllocatePage.
//
// Each open PageFile carries a process-unique id; the buffer manager keys
// its page table on that id, so two opens of the same path are distinct
// files to it.
type PageFile struct {
	id     uint64
	file   *os.File
	name   string
	npages uint32
	free   []uint32
}

// Exists reports whether a page file with the given name is on disk.
func Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// OpenPageFile opens the named page file, creating it when createNew is set.
func OpenPageFile(name string, createNew bool) (*PageFile, error) {
	flags := os.O_RDWR
	if createNew {
		flags |= os.O_CREATE | os.O_TRUNC
	}

	file, err := os.OpenFile(name, flags, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening page file %s", name)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "stating page file %s", name)
	}

	return &PageFile{
		id:     nextFileID.Add(1),
		file:   file,
		name:   name,
		npages: uint32(info.Size() / PageSize),
	}, nil
}

// ID returns the process-unique identity of this open file.
func (pf *PageFile) ID() uint64 {
	return pf.id
}

// Filename returns the name the file was opened with.
func (pf *PageFile) Filename() string {
	return pf.name
}

// FirstPageNo returns the number of the file's first page, or InvalidPageNo
// for an empty file.
func (pf *PageFile) FirstPageNo() uint32 {
	if pf.npages == 0 {
		return InvalidPageNo
	}
	return 1
}

// NumPages returns the number of pages the file currently spans, including
// any on the free list.
func (pf *PageFile) NumPages() uint32 {
	return pf.npages
}

// AllocatePage assigns a fresh page number and returns a zeroed page for it.
// Freed numbers are reused before the file is extended.
func (pf *PageFile) AllocatePage() (*Page, error) {
	var pageNo uint32
	if len(pf.free) > 0 {
		pageNo = pf.free[0]
		pf.free = pf.free[1:]
	} else {
		pf.npages++
		pageNo = pf.npages
		if err := pf.file.Truncate(int64(pf.npages) * PageSize); err != nil {
			pf.npages--
			return nil, errors.Wrapf(err, "growing page file %s", pf.name)
		}
	}

	page := &Page{No: pageNo, Data: make([]byte, PageSize)}
	if err := pf.WritePage(page); err != nil {
		return nil, err
	}
	return page, nil
}

// ReadPage reads page pageNo from disk.
func (pf *PageFile) ReadPage(pageNo uint32) (*Page, error) {
	if pageNo == InvalidPageNo || pageNo > pf.npages {
		return nil, errors.Errorf("page %d not in file %s", pageNo, pf.name)
	}

	data := make([]byte, PageSize)
	if _, err := pf.file.ReadAt(data, pf.offset(pageNo)); err != nil {
		return nil, errors.Wrapf(err, "reading page %d of %s", pageNo, pf.name)
	}
	return &Page{No: pageNo, Data: data}, nil
}

// WritePage writes the page back to its slot in the file.
func (pf *PageFile) WritePage(page *Page) error {
	if page.No == InvalidPageNo || page.No > pf.npages {
		return errors.Errorf("page %d not in file %s", page.No, pf.name)
	}

	if _, err := pf.file.WriteAt(page.Data, pf.offset(page.No)); err != nil {
		return errors.Wrapf(err, "writing page %d of %s", page.No, pf.name)
	}
	return nil
}

// DeletePage releases the page number for reuse.
func (pf *PageFile) DeletePage(pageNo uint32) error {
	if pageNo == InvalidPageNo || pageNo > pf.npages {
		return errors.Errorf("page %d not in file %s", pageNo, pf.name)
	}

	pf.free = append(pf.free, pageNo)
	return nil
}

// Close closes the underlying file.
func (pf *PageFile) Close() error {
	return errors.Wrapf(pf.file.Close(), "closing page file %s", pf.name)
}

func (pf *PageFile) offset(pageNo uint32) int64 {
	return int64(pageNo-1) * PageSize
}
