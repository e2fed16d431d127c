package index

import "github.com/pkg/errors"

var (
	// ErrBadIndexInfo is raised when the on-disk meta page does not match
	// the parameters the index was opened with.
	ErrBadIndexInfo = errors.New("bad index info")

	// ErrBadScanRange is raised when a scan's low bound exceeds its high
	// bound.
	ErrBadScanRange = errors.New("bad scan range")

	// ErrBadOpcodes is raised when a scan operator is outside the allowed
	// sets (GT/GTE below, LT/LTE above).
	ErrBadOpcodes = errors.New("bad scan opcodes")

	// ErrScanNotInitialized is raised by ScanNext or EndScan without a
	// prior successful StartScan.
	ErrScanNotInitialized = errors.New("scan not initialized")

	// ErrIndexScanCompleted reports that a scan has no further records.
	ErrIndexScanCompleted = errors.New("index scan completed")
)
