//go:build linux
// +build linux

package pagemap

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ResidentPages returns the indices of f's VM pages that are in the page
// cache.
//
// The whole file is mapped PROT_NONE, so no page is faulted in, and checked
// with a single mincore(2) call. See mincore(2):
//
//	One can obtain a snapshot of which pages of a file are resident in the
//	buffer cache by opening a file, mapping it with mmap(2), and then
//	applying mincore(2) to the mapping.
func (e *Engine) ResidentPages(f File) (pages ResidentPageSet, err error) {
	start := time.Now()
	defer func() { e.metrics.record("resident_pages", start, err) }()

	info, err := f.Stat()
	if err != nil {
		return nil, opError("stat", f.Name(), err)
	}

	n := e.PageCount(info.Size())
	e.logger.Debug("Probing page cache residency",
		zap.String("file", f.Name()),
		zap.Int64("size", info.Size()),
		zap.Uint64("pages", n))

	if n == 0 {
		return ResidentPageSet{}, nil
	}
	if n > uint64(math.MaxInt/e.pageSize) {
		return nil, opError("mmap", f.Name(), unix.EFBIG)
	}

	m, err := mapFile(f, 0, int(n)*e.pageSize, unix.PROT_NONE, unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			pages, err = nil, cerr
		}
	}()

	vec, err := m.Residency(e.pageSize)
	if err != nil {
		return nil, err
	}

	pages = residentFromVector(vec)
	e.metrics.recordResident(len(pages))

	return pages, nil
}

// PageInfo faults page of f into memory and returns its pagemap entry and the
// kernel flags of the backing frame.
//
// page is counted in file-system blocks, not VM pages. The mapping covers one
// VM page aligned down from the block's byte offset and has readahead disabled
// so neighbouring pages are not pulled in. Calling PageInfo changes residency;
// take a ResidentPages baseline first if that matters.
//
// When the PFN is hidden the entry is still returned together with
// ErrFrameHidden so its flags can be shown.
func (e *Engine) PageInfo(f File, page uint64) (entry Entry, flags KernelPageFlags, err error) {
	start := time.Now()
	defer func() { e.metrics.record("page_info", start, err) }()

	blockSize, err := fsBlockSize(f)
	if err != nil {
		return 0, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, 0, opError("stat", f.Name(), err)
	}

	bs := uint64(blockSize)
	if page > math.MaxUint64/bs || page*bs >= uint64(info.Size()) {
		return 0, 0, fmt.Errorf("page %d of %s (%d bytes, %d byte blocks): %w",
			page, f.Name(), info.Size(), blockSize, ErrPageOutOfRange)
	}

	return e.lookup(f, page*bs)
}

// lookup faults in the VM page holding byteOff and reads its pagemap entry and
// frame flags. A hidden or missing frame returns the entry with the error.
func (e *Engine) lookup(f File, byteOff uint64) (entry Entry, flags KernelPageFlags, err error) {
	vmPage := uint64(e.pageSize)
	mmapOff := byteOff &^ (vmPage - 1)
	delta := int(byteOff - mmapOff)

	m, err := mapFile(f, int64(mmapOff), e.pageSize, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			entry, flags, err = 0, 0, cerr
		}
	}()

	// A fault on a sequential mapping triggers readahead of adjacent pages.
	// do_sync_mmap_readahead returns early for VM_RAND_READ vmas.
	if err := m.Advise(unix.MADV_RANDOM); err != nil {
		return 0, 0, err
	}

	if err := m.Touch(delta); err != nil {
		return 0, 0, err
	}

	raw, err := e.pageMap.Entry(uint64(m.Addr()) / vmPage)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read pagemap entry: %w", err)
	}
	entry = Entry(raw)

	pfn, err := entry.PFN()
	if err != nil {
		return entry, 0, fmt.Errorf("offset %d of %s: %w", byteOff, f.Name(), err)
	}

	rawFlags, err := e.kpageFlags.Entry(pfn)
	if err != nil {
		return entry, 0, fmt.Errorf("failed to read kpageflags for pfn %#x: %w", pfn, err)
	}
	flags = KernelPageFlags(rawFlags)

	e.logger.Debug("Page info",
		zap.String("file", f.Name()),
		zap.Uint64("offset", byteOff),
		zap.Uint64("pfn", pfn),
		zap.Stringer("entry", entry),
		zap.Stringer("flags", flags))

	return entry, flags, nil
}

// EvictPages asks the kernel to drop f's cached pages with
// posix_fadvise(POSIX_FADV_DONTNEED).
//
// This is advisory: dirty pages may be written back instead and pages mapped
// elsewhere are kept. Re-check with ResidentPages when it matters.
func (e *Engine) EvictPages(f File) (err error) {
	start := time.Now()
	defer func() { e.metrics.record("evict_pages", start, err) }()

	info, err := f.Stat()
	if err != nil {
		return opError("stat", f.Name(), err)
	}

	if err := unix.Fadvise(int(f.Fd()), 0, info.Size(), unix.FADV_DONTNEED); err != nil {
		return opError("fadvise", f.Name(), err)
	}

	e.logger.Debug("Evicted pages", zap.String("file", f.Name()), zap.Int64("size", info.Size()))
	return nil
}

// DirtyPages returns the members of pages, VM page indices as returned by
// ResidentPages, whose frame is DIRTY.
//
// Each page is looked up at its own offset, independent of the file-system
// block size. Pages outside the set would be faulted in; pass a set taken
// from ResidentPages to keep residency intact.
func (e *Engine) DirtyPages(f File, pages ResidentPageSet) (dirty ResidentPageSet, err error) {
	start := time.Now()
	defer func() { e.metrics.record("dirty_pages", start, err) }()

	info, err := f.Stat()
	if err != nil {
		return nil, opError("stat", f.Name(), err)
	}
	size := uint64(max(info.Size(), 0))
	ps := uint64(e.pageSize)

	dirty = make(ResidentPageSet, 0)
	for _, page := range pages {
		if page > math.MaxUint64/ps || page*ps >= size {
			return nil, fmt.Errorf("page %d of %s (%d bytes): %w", page, f.Name(), size, ErrPageOutOfRange)
		}
		_, flags, err := e.lookup(f, page*ps)
		if err != nil {
			return nil, err
		}
		if flags.Has(Dirty) {
			dirty = append(dirty, page)
		}
	}
	return dirty, nil
}

// FSBlockSize returns the block size of the file system holding f
func (e *Engine) FSBlockSize(f File) (size int, err error) {
	start := time.Now()
	defer func() { e.metrics.record("fs_block_size", start, err) }()

	return fsBlockSize(f)
}

func fsBlockSize(f File) (int, error) {
	var st unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &st); err != nil {
		return 0, opError("fstatfs", f.Name(), err)
	}
	if st.Bsize <= 0 {
		return 0, opError("fstatfs", f.Name(), fmt.Errorf("invalid block size %d", st.Bsize))
	}
	return int(st.Bsize), nil
}
