package relation

import (
	"encoding/binary"
	"io"

	"github.com/burrowdb/burrow/storage/disk"
)

// FileScan walks a heap file's records front to back. Next returns io.EOF
// once the relation is exhausted. The scan pins each page only for the
// duration of a single Next call.
type FileScan struct {
	hf     *HeapFile
	pageNo uint32
	slot   int
}

// Next returns the id and bytes of the next record.
func (fs *FileScan) Next() (disk.RecordID, []byte, error) {
	var rid disk.RecordID

	for {
		if fs.pageNo > fs.hf.header.LastPageNo || fs.hf.header.LastPageNo == disk.InvalidPageNo {
			return rid, nil, io.EOF
		}

		guard, err := fs.hf.mgr.ReadGuarded(fs.hf.file, fs.pageNo)
		if err != nil {
			return rid, nil, err
		}

		slots := int(binary.LittleEndian.Uint16(guard.Data()[:slotCountSize]))
		if fs.slot >= slots {
			if err := guard.Drop(); err != nil {
				return rid, nil, err
			}
			fs.pageNo++
			fs.slot = 0
			continue
		}

		offset := slotCountSize + fs.slot*fs.hf.header.RecordSize
		record := make([]byte, fs.hf.header.RecordSize)
		copy(record, guard.Data()[offset:])

		rid = disk.RecordID{PageNo: fs.pageNo, SlotNo: uint16(fs.slot)}
		fs.slot++

		if err := guard.Drop(); err != nil {
			return rid, nil, err
		}
		return rid, record, nil
	}
}
