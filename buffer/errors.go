package buffer

import "github.com/pkg/errors"

var (
	// ErrBufferExceeded is raised when a full clock sweep finds every
	// frame pinned.
	ErrBufferExceeded = errors.New("buffer exceeded: all frames pinned")

	// ErrPageNotPinned is raised by an unpin of a page whose pin count is
	// already zero.
	ErrPageNotPinned = errors.New("page not pinned")

	// ErrPagePinned is raised when a flush or dispose touches a page that
	// still has outstanding pins.
	ErrPagePinned = errors.New("page pinned")

	// ErrBadBuffer is raised when a flush finds an invalid frame still
	// claimed by the file being flushed.
	ErrBadBuffer = errors.New("bad buffer: invalid frame claimed by file")
)
