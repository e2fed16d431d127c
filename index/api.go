package index

import (
	"github.com/pkg/errors"

	"github.com/burrowdb/burrow/storage/disk"
)

// ScanRange runs a bounded scan to completion and gathers every matching
// record id. It drives the single scan cursor, so it cannot be mixed with
// an in-flight StartScan/ScanNext sequence.
func (ix *Index) ScanRange(low int32, lowOp Operator, high int32, highOp Operator) ([]disk.RecordID, error) {
	if err := ix.StartScan(low, lowOp, high, highOp); err != nil {
		return nil, err
	}

	var res []disk.RecordID
	for {
		rid, err := ix.ScanNext()
		if errors.Is(err, ErrIndexScanCompleted) {
			break
		}
		if err != nil {
			return res, err
		}
		res = append(res, rid)
	}

	return res, ix.EndScan()
}
