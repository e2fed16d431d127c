package buffer

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// pageTable maps (file id, page number) to a frame index with bucketed
// chaining. Keys are unique: at most one frame holds any given page.
type pageTable struct {
	buckets []*tableEntry
}

type tableEntry struct {
	fileID uint64
	pageNo uint32
	frame  int
	next   *tableEntry
}

// newPageTable sizes the table at roughly 1.2x the frame count plus one,
// rounded up to odd to reduce clustering.
func newPageTable(frames int) *pageTable {
	size := int(float64(frames)*1.2) + 1
	if size%2 == 0 {
		size++
	}
	return &pageTable{buckets: make([]*tableEntry, size)}
}

func (t *pageTable) lookup(fileID uint64, pageNo uint32) (int, bool) {
	for e := t.buckets[t.bucket(fileID, pageNo)]; e != nil; e = e.next {
		if e.fileID == fileID && e.pageNo == pageNo {
			return e.frame, true
		}
	}
	return 0, false
}

func (t *pageTable) insert(fileID uint64, pageNo uint32, frame int) {
	b := t.bucket(fileID, pageNo)
	t.buckets[b] = &tableEntry{fileID: fileID, pageNo: pageNo, frame: frame, next: t.buckets[b]}
}

func (t *pageTable) remove(fileID uint64, pageNo uint32) {
	b := t.bucket(fileID, pageNo)
	for p := &t.buckets[b]; *p != nil; p = &(*p).next {
		if (*p).fileID == fileID && (*p).pageNo == pageNo {
			*p = (*p).next
			return
		}
	}
}

func (t *pageTable) bucket(fileID uint64, pageNo uint32) int {
	var key [12]byte
	binary.LittleEndian.PutUint64(key[:8], fileID)
	binary.LittleEndian.PutUint32(key[8:], pageNo)
	return int(xxhash.Sum64(key[:]) % uint64(len(t.buckets)))
}
