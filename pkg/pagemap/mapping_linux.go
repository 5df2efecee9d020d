//go:build linux
// +build linux

package pagemap

import (
	"fmt"
	"runtime/debug"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapping is a file region mapped for the duration of one engine call.
// Callers defer Close right after mapFile succeeds; Close is idempotent.
type mapping struct {
	data []byte
	path string
}

func mapFile(f File, offset int64, length, prot, flags int) (*mapping, error) {
	data, err := unix.Mmap(int(f.Fd()), offset, length, prot, flags)
	if err != nil {
		return nil, opError("mmap", f.Name(), err)
	}
	return &mapping{data: data, path: f.Name()}, nil
}

// Addr returns the virtual address of the first mapped byte
func (m *mapping) Addr() uintptr {
	return uintptr(unsafe.Pointer(&m.data[0]))
}

// Advise applies madvise(2) to the whole mapping
func (m *mapping) Advise(advice int) error {
	return opError("madvise", m.path, unix.Madvise(m.data, advice))
}

// Residency fills one byte per page using mincore(2)
func (m *mapping) Residency(pageSize int) ([]byte, error) {
	vec := make([]byte, (len(m.data)+pageSize-1)/pageSize)
	if len(vec) == 0 {
		return vec, nil
	}
	// x/sys/unix has no mincore wrapper
	_, _, errno := unix.Syscall(unix.SYS_MINCORE,
		uintptr(unsafe.Pointer(&m.data[0])),
		uintptr(len(m.data)),
		uintptr(unsafe.Pointer(&vec[0])))
	if errno != 0 {
		return nil, opError("mincore", m.path, errno)
	}
	return vec, nil
}

// Touch reads the byte at off to fault its page in. A SIGBUS raised by the
// read, e.g. because the block behind the page fails I/O, comes back as
// ErrPageFault.
func (m *mapping) Touch(off int) (err error) {
	if off < 0 || off >= len(m.data) {
		return fmt.Errorf("offset %d outside mapping of %d bytes", off, len(m.data))
	}

	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		if r := recover(); r != nil {
			err = &OpError{Op: "fault", Path: m.path, Err: fmt.Errorf("%w: %v", ErrPageFault, r)}
		}
	}()

	readByte(m.data, off)
	return nil
}

// Close unmaps the region
func (m *mapping) Close() error {
	if m == nil || m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return opError("munmap", m.path, err)
}

// readByte is kept out of line so the load is not optimized away
//
//go:noinline
func readByte(b []byte, off int) byte {
	return b[off]
}
