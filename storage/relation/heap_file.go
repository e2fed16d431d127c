package relation

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/burrowdb/burrow/buffer"
	"github.com/burrowdb/burrow/storage/disk"
	"github.com/burrowdb/burrow/util"
)

const headerPageNo = 1

// slotCountSize is the per-page prefix holding the number of occupied slots.
const slotCountSize = 2

// HeapFile stores fixed-width records in a page file, append-only. Page 1
// is the header; data pages follow in allocation order, each prefixed with
// its slot count. All page access goes through the buffer manager.
type HeapFile struct {
	file   *disk.PageFile
	mgr    *buffer.Manager
	header heapHeader
}

type heapHeader struct {
	RecordSize  int
	RecordCount int
	LastPageNo  uint32
}

// CreateHeapFile creates a heap file for records of the given width.
func CreateHeapFile(name string, recordSize int, mgr *buffer.Manager) (*HeapFile, error) {
	if recordSize <= 0 || recordSize > disk.PageSize-slotCountSize {
		return nil, errors.Errorf("record size %d does not fit a page", recordSize)
	}

	file, err := disk.OpenPageFile(name, true)
	if err != nil {
		return nil, err
	}

	hf := &HeapFile{
		file:   file,
		mgr:    mgr,
		header: heapHeader{RecordSize: recordSize},
	}

	guard, err := mgr.AllocGuarded(file)
	if err != nil {
		return nil, err
	}
	if err := hf.writeHeader(guard.Data()); err != nil {
		return nil, err
	}
	if err := guard.Drop(); err != nil {
		return nil, err
	}
	return hf, nil
}

// OpenHeapFile opens an existing heap file and reads its header.
func OpenHeapFile(name string, mgr *buffer.Manager) (*HeapFile, error) {
	file, err := disk.OpenPageFile(name, false)
	if err != nil {
		return nil, err
	}

	guard, err := mgr.ReadGuarded(file, headerPageNo)
	if err != nil {
		return nil, err
	}
	defer guard.Drop()

	header, err := util.ToStruct[heapHeader](guard.Data())
	if err != nil {
		return nil, errors.Wrapf(err, "reading heap header of %s", name)
	}

	return &HeapFile{file: file, mgr: mgr, header: header}, nil
}

// RecordSize returns the fixed record width.
func (hf *HeapFile) RecordSize() int {
	return hf.header.RecordSize
}

// RecordCount returns the number of records inserted so far.
func (hf *HeapFile) RecordCount() int {
	return hf.header.RecordCount
}

// File exposes the underlying page file.
func (hf *HeapFile) File() *disk.PageFile {
	return hf.file
}

// Insert appends a record and returns its id.
func (hf *HeapFile) Insert(record []byte) (disk.RecordID, error) {
	var rid disk.RecordID
	if len(record) != hf.header.RecordSize {
		return rid, errors.Errorf("record is %d bytes, want %d", len(record), hf.header.RecordSize)
	}

	guard, slot, err := hf.tailPage()
	if err != nil {
		return rid, err
	}
	defer guard.Drop()

	offset := slotCountSize + slot*hf.header.RecordSize
	copy(guard.Data()[offset:], record)
	binary.LittleEndian.PutUint16(guard.Data()[:slotCountSize], uint16(slot+1))
	guard.MarkDirty()

	hf.header.RecordCount++
	if err := hf.flushHeader(); err != nil {
		return rid, err
	}

	return disk.RecordID{PageNo: guard.PageNo(), SlotNo: uint16(slot)}, nil
}

// Scan returns a front-to-back cursor over the file's records.
func (hf *HeapFile) Scan() *FileScan {
	return &FileScan{hf: hf, pageNo: headerPageNo + 1}
}

// Close flushes the file through the buffer manager and closes it.
func (hf *HeapFile) Close() error {
	if err := hf.mgr.FlushFile(hf.file); err != nil {
		return err
	}
	return hf.file.Close()
}

func (hf *HeapFile) recordsPerPage() int {
	return (disk.PageSize - slotCountSize) / hf.header.RecordSize
}

// tailPage pins the page the next record goes into, allocating a fresh one
// when the file is empty or the last page is full.
func (hf *HeapFile) tailPage() (*buffer.PageGuard, int, error) {
	if hf.header.LastPageNo != disk.InvalidPageNo {
		guard, err := hf.mgr.ReadGuarded(hf.file, hf.header.LastPageNo)
		if err != nil {
			return nil, 0, err
		}

		slot := int(binary.LittleEndian.Uint16(guard.Data()[:slotCountSize]))
		if slot < hf.recordsPerPage() {
			return guard, slot, nil
		}
		if err := guard.Drop(); err != nil {
			return nil, 0, err
		}
	}

	guard, err := hf.mgr.AllocGuarded(hf.file)
	if err != nil {
		return nil, 0, err
	}
	hf.header.LastPageNo = guard.PageNo()
	return guard, 0, nil
}

func (hf *HeapFile) flushHeader() error {
	guard, err := hf.mgr.ReadGuarded(hf.file, headerPageNo)
	if err != nil {
		return err
	}
	defer guard.Drop()

	if err := hf.writeHeader(guard.Data()); err != nil {
		return err
	}
	guard.MarkDirty()
	return nil
}

func (hf *HeapFile) writeHeader(dst []byte) error {
	data, err := util.ToPageBytes(hf.header, disk.PageSize)
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}
