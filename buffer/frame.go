package buffer

import "github.com/burrowdb/burrow/storage/disk"

// frameDesc is the bookkeeping for one buffer frame. A frame with valid
// false is free and every other field except frameNo and data is
// meaningless.
type frameDesc struct {
	frameNo  int
	file     *disk.PageFile
	pageNo   uint32
	pinCount int
	dirty    bool
	refbit   bool
	valid    bool
	data     []byte
}

func newFrameDesc(frameNo int) *frameDesc {
	return &frameDesc{
		frameNo: frameNo,
		data:    make([]byte, disk.PageSize),
	}
}

// set claims the frame for (file, pageNo) with a single pin, the way a
// fresh read or allocation leaves it.
func (f *frameDesc) set(file *disk.PageFile, pageNo uint32) {
	f.file = file
	f.pageNo = pageNo
	f.pinCount = 1
	f.dirty = false
	f.refbit = true
	f.valid = true
}

// clear frees the frame. The page buffer is kept for reuse.
func (f *frameDesc) clear() {
	f.file = nil
	f.pageNo = disk.InvalidPageNo
	f.pinCount = 0
	f.dirty = false
	f.refbit = false
	f.valid = false
}
