package index

import (
	"github.com/pkg/errors"

	"github.com/burrowdb/burrow/storage/disk"
)

// Operator bounds a range scan. Low bounds use GT/GTE, high bounds LT/LTE.
type Operator int

const (
	LT Operator = iota
	LTE
	GT
	GTE
)

// scanState is the cursor of the single active scan: the pinned current
// leaf, the next entry within it, and the range being scanned. A pageNo of
// zero means the scan is exhausted and holds no pin.
type scanState struct {
	lowVal    int32
	highVal   int32
	lowOp     Operator
	highOp    Operator
	pageNo    uint32
	leaf      *leafNode
	nextEntry int
}

// StartScan positions a cursor on the first entry passing the low bound.
// At most one scan is active per index; starting a new one ends the
// previous scan first. A low bound above the high bound raises
// ErrBadScanRange; operators outside the allowed sets raise ErrBadOpcodes.
func (ix *Index) StartScan(lowVal int32, lowOp Operator, highVal int32, highOp Operator) error {
	if lowVal > highVal {
		return errors.Wrapf(ErrBadScanRange, "low %d exceeds high %d", lowVal, highVal)
	}
	if lowOp != GT && lowOp != GTE {
		return errors.Wrapf(ErrBadOpcodes, "low operator %d", lowOp)
	}
	if highOp != LT && highOp != LTE {
		return errors.Wrapf(ErrBadOpcodes, "high operator %d", highOp)
	}

	if ix.scan != nil {
		if err := ix.EndScan(); err != nil {
			return err
		}
	}

	leafPageNo, err := ix.findScanLeaf(lowVal)
	if err != nil {
		return err
	}

	state := &scanState{
		lowVal: lowVal, lowOp: lowOp,
		highVal: highVal, highOp: highOp,
	}

	// Walk the leaf chain for the first entry passing the low bound. The
	// matching leaf stays pinned as the cursor; an exhausted chain leaves
	// the cursor empty.
	for leafPageNo != disk.InvalidPageNo {
		leaf, _, err := ix.loadLeafFrame(leafPageNo)
		if err != nil {
			return err
		}

		live := leaf.liveCount()
		idx := 0
		for idx < live {
			key := leaf.Keys[idx]
			if (state.lowOp == GT && key > lowVal) || (state.lowOp == GTE && key >= lowVal) {
				break
			}
			idx++
		}

		if idx < live {
			state.pageNo = leafPageNo
			state.leaf = leaf
			state.nextEntry = idx
			break
		}

		sib := leaf.RightSib
		if err := ix.mgr.UnpinPage(ix.file, leafPageNo, false); err != nil {
			return err
		}
		leafPageNo = sib
	}

	ix.scan = state
	return nil
}

// ScanNext returns the record id of the next entry within the range. When
// the range or the leaf chain is exhausted the cursor is unpinned, cleared
// and ErrIndexScanCompleted raised, on this and every later call.
func (ix *Index) ScanNext() (disk.RecordID, error) {
	var rid disk.RecordID

	if ix.scan == nil {
		return rid, errors.WithStack(ErrScanNotInitialized)
	}

	state := ix.scan
	if state.pageNo == disk.InvalidPageNo {
		return rid, errors.WithStack(ErrIndexScanCompleted)
	}

	key := state.leaf.Keys[state.nextEntry]
	if (state.highOp == LT && key >= state.highVal) || (state.highOp == LTE && key > state.highVal) {
		if err := ix.dropCursor(); err != nil {
			return rid, err
		}
		return rid, errors.WithStack(ErrIndexScanCompleted)
	}

	rid = state.leaf.Rids[state.nextEntry]
	state.nextEntry++

	if state.nextEntry >= state.leaf.liveCount() {
		if err := ix.advanceLeaf(); err != nil {
			return rid, err
		}
	}
	return rid, nil
}

// EndScan unpins the cursor leaf and clears the scan state.
func (ix *Index) EndScan() error {
	if ix.scan == nil {
		return errors.WithStack(ErrScanNotInitialized)
	}

	err := ix.dropCursor()
	ix.scan = nil
	return err
}

// findScanLeaf descends from the root to the leaf where entries >= low
// begin, choosing at each internal node the leftmost child that can hold
// the low bound.
func (ix *Index) findScanLeaf(lowVal int32) (uint32, error) {
	pageNo := ix.rootPageNo
	if ix.rootIsLeaf {
		return pageNo, nil
	}

	for {
		node, err := ix.loadInternal(pageNo)
		if err != nil {
			return disk.InvalidPageNo, err
		}

		next := node.Children[node.scanChildIndexFor(lowVal)]
		level := node.Level

		if err := ix.mgr.UnpinPage(ix.file, pageNo, false); err != nil {
			return disk.InvalidPageNo, err
		}

		pageNo = next
		if level == 1 {
			return pageNo, nil
		}
	}
}

// advanceLeaf moves the cursor to the right sibling, releasing the current
// leaf's pin. A zero sibling ends the chain.
func (ix *Index) advanceLeaf() error {
	state := ix.scan
	sib := state.leaf.RightSib

	if err := ix.mgr.UnpinPage(ix.file, state.pageNo, false); err != nil {
		return err
	}

	if sib == disk.InvalidPageNo {
		state.pageNo = disk.InvalidPageNo
		state.leaf = nil
		return nil
	}

	leaf, _, err := ix.loadLeafFrame(sib)
	if err != nil {
		return err
	}
	state.pageNo = sib
	state.leaf = leaf
	state.nextEntry = 0
	return nil
}

// dropCursor releases the cursor's pin, if it holds one, and empties it.
func (ix *Index) dropCursor() error {
	state := ix.scan
	if state == nil || state.pageNo == disk.InvalidPageNo {
		return nil
	}

	err := ix.mgr.UnpinPage(ix.file, state.pageNo, false)
	state.pageNo = disk.InvalidPageNo
	state.leaf = nil
	return err
}
