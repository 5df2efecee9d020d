package pagemap

import (
	"fmt"
	"strings"
)

// Entry is a 64-bit record from /proc/<pid>/pagemap, see proc_pid_pagemap(5).
//
//	bits 0-54  page frame number (PFN) if present
//	bits 0-4   swap type if swapped
//	bits 5-54  swap offset if swapped
//	bit  55    pte is soft-dirty
//	bit  56    page exclusively mapped
//	bit  57    pte is uffd-wp write-protected
//	bit  58    pte is a guard region
//	bits 59-60 zero
//	bit  61    page is file-page or shared-anon
//	bit  62    page swapped
//	bit  63    page present
type Entry uint64

const (
	SoftDirty            Entry = 1 << 55
	ExclusiveMap         Entry = 1 << 56
	UffdWriteProtected   Entry = 1 << 57
	GuardRegion          Entry = 1 << 58
	FilePageOrSharedAnon Entry = 1 << 61
	Swapped              Entry = 1 << 62
	Present              Entry = 1 << 63

	pfnMask Entry = 1<<55 - 1
)

var entryNames = []struct {
	flag Entry
	name string
}{
	{SoftDirty, "SOFT_DIRTY"},
	{ExclusiveMap, "EXCL_MAP"},
	{UffdWriteProtected, "PTE_UFFD_WP_WR_PROTECTED"},
	{GuardRegion, "PTE_GUARD_REGION"},
	{FilePageOrSharedAnon, "FILE_PAGE_OR_SHARED_ANON"},
	{Swapped, "SWAPPED"},
	{Present, "PRESENT"},
}

// Has reports whether every bit of flag is set
func (e Entry) Has(flag Entry) bool {
	return e&flag == flag
}

// FrameState tells whether an entry maps a physical frame the caller can see
type FrameState int

const (
	// FrameNotPresent means the page is not in memory
	FrameNotPresent FrameState = iota
	// FrameHidden means the page is present but the kernel zeroed the PFN
	// because the reader lacks CAP_SYS_ADMIN
	FrameHidden
	// FramePresent means the page is present and PFN is valid
	FramePresent
)

func (s FrameState) String() string {
	switch s {
	case FrameNotPresent:
		return "not-present"
	case FrameHidden:
		return "hidden"
	case FramePresent:
		return "present"
	default:
		return "unknown"
	}
}

// Frame is the decoded physical frame of an entry
type Frame struct {
	State FrameState
	PFN   uint64
}

// Frame decodes the physical frame number field
func (e Entry) Frame() Frame {
	if !e.Has(Present) {
		return Frame{State: FrameNotPresent}
	}
	pfn := uint64(e & pfnMask)
	if pfn == 0 {
		return Frame{State: FrameHidden}
	}
	return Frame{State: FramePresent, PFN: pfn}
}

// PFN returns the physical frame number, or ErrPageNotPresent / ErrFrameHidden
func (e Entry) PFN() (uint64, error) {
	frame := e.Frame()
	switch frame.State {
	case FramePresent:
		return frame.PFN, nil
	case FrameHidden:
		return 0, ErrFrameHidden
	default:
		return 0, ErrPageNotPresent
	}
}

// String lists the set flags, followed by the PFN when it is visible
func (e Entry) String() string {
	var parts []string
	for _, f := range entryNames {
		if e.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	if frame := e.Frame(); frame.State == FramePresent {
		parts = append(parts, fmt.Sprintf("PFN=%#x", frame.PFN))
	}
	return strings.Join(parts, " | ")
}
