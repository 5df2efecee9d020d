// Package extent reports where a file's data lives on the underlying block
// device, so the matching device-mapper sectors can be failed.
package extent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mohammedgqudah/ff/pkg/dmtable"
)

// ErrUnsupported is returned when the file system cannot report extents
var ErrUnsupported = errors.New("file system does not support FIEMAP")

// Flags are the FIEMAP_EXTENT_* bits of an extent
type Flags uint32

const (
	Last         Flags = 0x00000001
	Unknown      Flags = 0x00000002
	DelayedAlloc Flags = 0x00000004
	Encoded      Flags = 0x00000008
	Encrypted    Flags = 0x00000080
	NotAligned   Flags = 0x00000100
	DataInline   Flags = 0x00000200
	DataTail     Flags = 0x00000400
	Unwritten    Flags = 0x00000800
	Merged       Flags = 0x00001000
	Shared       Flags = 0x00002000
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{Last, "last"},
	{Unknown, "unknown"},
	{DelayedAlloc, "delalloc"},
	{Encoded, "encoded"},
	{Encrypted, "encrypted"},
	{NotAligned, "not_aligned"},
	{DataInline, "inline"},
	{DataTail, "tail"},
	{Unwritten, "unwritten"},
	{Merged, "merged"},
	{Shared, "shared"},
}

// Has reports whether all bits of flag are set
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

func (f Flags) String() string {
	var names []string
	rest := f
	for _, n := range flagNames {
		if f.Has(n.flag) {
			names = append(names, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(names, ",")
}

// Extent maps Length bytes at file offset Logical to device offset Physical
type Extent struct {
	Logical  uint64 `json:"logical" yaml:"logical"`
	Physical uint64 `json:"physical" yaml:"physical"`
	Length   uint64 `json:"length" yaml:"length"`
	Flags    Flags  `json:"flags" yaml:"flags"`
}

// Sectors returns the 512-byte device sectors covering the extent
func (e Extent) Sectors() dmtable.BadRange {
	return dmtable.BadRange{
		Start: e.Physical / dmtable.SectorSize,
		End:   (e.Physical + e.Length + dmtable.SectorSize - 1) / dmtable.SectorSize,
	}
}

// Addressable reports whether Physical points at real device blocks. Delayed
// allocation, inline and encoded extents have no stable sector to fail.
func (e Extent) Addressable() bool {
	return !e.Flags.Has(Unknown) && !e.Flags.Has(DelayedAlloc) &&
		!e.Flags.Has(DataInline) && !e.Flags.Has(Encoded)
}

// File is the subset of *os.File Map needs
type File interface {
	Fd() uintptr
	Name() string
}

var _ File = (*os.File)(nil)
