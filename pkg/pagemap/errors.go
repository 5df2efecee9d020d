package pagemap

import (
	"errors"
	"fmt"
)

var (
	// ErrPageNotPresent is returned when a page did not become resident
	ErrPageNotPresent = errors.New("page is not present")

	// ErrFrameHidden is returned when the kernel hides the PFN of a present
	// page. Reading PFNs from pagemap requires CAP_SYS_ADMIN.
	ErrFrameHidden = errors.New("page frame number is hidden, retry as root (CAP_SYS_ADMIN)")

	// ErrPageOutOfRange is returned for a page index at or past end of file
	ErrPageOutOfRange = errors.New("page index is past the end of the file")

	// ErrPageFault is returned when touching a mapped page raised SIGBUS,
	// usually because the backing block returned an I/O error
	ErrPageFault = errors.New("fault while touching mapped page")

	// ErrUnsupported is returned on platforms without pagemap support
	ErrUnsupported = errors.New("page cache introspection is only supported on linux")
)

// OpError records the kernel call that failed and the file it was made for
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Path: path, Err: err}
}
