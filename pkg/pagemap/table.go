package pagemap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	// SelfPageMapPath is the page table of the calling process
	SelfPageMapPath = "/proc/self/pagemap"
	// KernelPageFlagsPath is the global per-frame flags table
	KernelPageFlagsPath = "/proc/kpageflags"

	entrySize = 8
)

// EntryReader looks up fixed-width 64-bit records by index. Both pagemap
// (indexed by virtual page number) and kpageflags (indexed by PFN) share this
// layout.
type EntryReader interface {
	Entry(index uint64) (uint64, error)
}

// ProcTable reads records from a kernel table file. The file is opened for
// every lookup so nothing about kernel state is cached between calls.
type ProcTable struct {
	Path string
}

// NewProcTable returns a reader for the table at path
func NewProcTable(path string) *ProcTable {
	return &ProcTable{Path: path}
}

// Entry reads the record at index
func (t *ProcTable) Entry(index uint64) (uint64, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", t.Path, err)
	}
	defer f.Close()

	v, err := readEntry(f, index)
	if err != nil {
		return 0, fmt.Errorf("failed to read entry %d from %s: %w", index, t.Path, err)
	}
	return v, nil
}

// ReplayTable serves records from captured table bytes, for example a copy of
// /proc/kpageflags taken on another machine.
type ReplayTable struct {
	r io.ReaderAt
}

// NewReplayTable wraps r, which must hold native-endian 8-byte records
func NewReplayTable(r io.ReaderAt) *ReplayTable {
	return &ReplayTable{r: r}
}

// Entry reads the record at index
func (t *ReplayTable) Entry(index uint64) (uint64, error) {
	v, err := readEntry(t.r, index)
	if err != nil {
		return 0, fmt.Errorf("failed to read entry %d: %w", index, err)
	}
	return v, nil
}

// EncodeEntries lays out records the way the kernel tables do, useful to build
// a ReplayTable.
func EncodeEntries(entries ...uint64) []byte {
	buf := make([]byte, entrySize*len(entries))
	for i, e := range entries {
		binary.NativeEndian.PutUint64(buf[i*entrySize:], e)
	}
	return buf
}

func readEntry(r io.ReaderAt, index uint64) (uint64, error) {
	var buf [entrySize]byte
	if _, err := r.ReadAt(buf[:], int64(index*entrySize)); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}
