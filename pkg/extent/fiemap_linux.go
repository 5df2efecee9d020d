//go:build linux
// +build linux

package extent

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// _IOWR('f', 11, struct fiemap)
	fsIocFiemap = 0xC020660B

	fiemapFlagSync = 0x00000001

	fiemapHeaderSize = 32
	fiemapExtentSize = 56

	// extents requested per ioctl
	batchSize = 64
)

// Map returns every extent of f in logical order. Dirty data is synced first
// so delayed allocations get real blocks.
func Map(f File) ([]Extent, error) {
	var extents []Extent
	buf := make([]byte, fiemapHeaderSize+batchSize*fiemapExtentSize)
	var start uint64

	for {
		clear(buf)
		binary.NativeEndian.PutUint64(buf[0:], start)
		binary.NativeEndian.PutUint64(buf[8:], ^uint64(0)-start)
		binary.NativeEndian.PutUint32(buf[16:], fiemapFlagSync)
		binary.NativeEndian.PutUint32(buf[24:], batchSize)

		_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), fsIocFiemap, uintptr(unsafe.Pointer(&buf[0])))
		if errno != 0 {
			if errors.Is(errno, unix.EOPNOTSUPP) || errors.Is(errno, unix.ENOTTY) {
				return nil, fmt.Errorf("%s: %w", f.Name(), ErrUnsupported)
			}
			return nil, fmt.Errorf("fiemap %s: %w", f.Name(), errno)
		}

		mapped := binary.NativeEndian.Uint32(buf[20:])
		if mapped == 0 {
			return extents, nil
		}

		for i := uint32(0); i < mapped; i++ {
			e := decodeExtent(buf[fiemapHeaderSize+int(i)*fiemapExtentSize:])
			extents = append(extents, e)
			if e.Flags.Has(Last) {
				return extents, nil
			}
		}

		last := extents[len(extents)-1]
		start = last.Logical + last.Length
	}
}

func decodeExtent(b []byte) Extent {
	return Extent{
		Logical:  binary.NativeEndian.Uint64(b[0:]),
		Physical: binary.NativeEndian.Uint64(b[8:]),
		Length:   binary.NativeEndian.Uint64(b[16:]),
		Flags:    Flags(binary.NativeEndian.Uint32(b[40:])),
	}
}
