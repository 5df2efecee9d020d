package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mohammedgqudah/ff/pkg/dmtable"
	"github.com/mohammedgqudah/ff/pkg/extent"
	"github.com/mohammedgqudah/ff/pkg/pagemap"
)

// Printer renders human readable reports
type Printer struct {
	w io.Writer
}

// NewPrinter creates a printer writing to w
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// CachedBytes is how much of a file of size bytes the given number of
// resident pages holds. The last page may be partial.
func CachedBytes(pages uint64, pageSize int, size int64) uint64 {
	if size <= 0 {
		return 0
	}
	cached := pages * uint64(pageSize)
	if cached > uint64(size) {
		return uint64(size)
	}
	return cached
}

// Size formats n bytes with binary units
func Size(n uint64) string {
	return humanize.IBytes(n)
}

// Resident prints "Resident Pages: n/total cached/size"
func (p *Printer) Resident(resident, total uint64, pageSize int, size int64) {
	p.pageSummary("Resident Pages", resident, total, pageSize, size)
}

// Evicted prints the same summary for the pages that were resident before an
// eviction
func (p *Printer) Evicted(resident, total uint64, pageSize int, size int64) {
	p.pageSummary("Evicted", resident, total, pageSize, size)
}

func (p *Printer) pageSummary(label string, resident, total uint64, pageSize int, size int64) {
	fmt.Fprintf(p.w, "\t\t%s: %s/%s %s/%s\n",
		label,
		Colors.Bold(resident),
		Colors.Bold(total),
		Colors.Bold(Size(CachedBytes(resident, pageSize, size))),
		Colors.Bold(Size(uint64(max(size, 0)))))
}

// Dirty prints the dirty page count and their ranges
func (p *Printer) Dirty(dirty pagemap.ResidentPageSet, total uint64) {
	fmt.Fprintf(p.w, "\t\tDirty Pages: %s/%s\n", Colors.Bold(dirty.Len()), Colors.Bold(total))
	fmt.Fprintf(p.w, "\t\t             %s\n", dirty)
}

// Page prints the pagemap entry and frame flags of one page
func (p *Printer) Page(index uint64, entry pagemap.Entry, flags pagemap.KernelPageFlags) {
	fmt.Fprintf(p.w, "%s %s\n", Colors.Bold("PAGE"), Colors.Info(index))
	fmt.Fprintf(p.w, " %s\t  %s\n", Colors.Dim("pagemap (PageMapEntry)"), Colors.Dim(entry))
	fmt.Fprintf(p.w, " %s\t  %s\n", Colors.Dim("kflags (KPageFlags)"), Colors.Dim(flags))
	fmt.Fprintln(p.w)
}

// Table prints a device-mapper table the way dmsetup load reads it
func (p *Printer) Table(t dmtable.Table) {
	for _, s := range t {
		line := s.String()
		if s.Target == dmtable.TargetError {
			line = Colors.Error(line)
		}
		fmt.Fprintln(p.w, line)
	}
}

// Extents prints a file's extents with the device sectors behind them
func (p *Printer) Extents(extents []extent.Extent) {
	if len(extents) == 0 {
		fmt.Fprintln(p.w, "no extents")
		return
	}

	fmt.Fprintf(p.w, "%s\n", Colors.Heading(fmt.Sprintf("%-12s %-14s %-10s %-20s %s",
		"LOGICAL", "PHYSICAL", "LENGTH", "SECTORS", "FLAGS")))
	for _, e := range extents {
		sectors := "-"
		if e.Addressable() {
			sectors = e.Sectors().String()
		}
		fmt.Fprintf(p.w, "%-12d %-14d %-10s %-20s %s\n",
			e.Logical, e.Physical, Size(e.Length), sectors, e.Flags)
	}
}

// Success prints a green status line
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", Colors.Success(Icons.Success), fmt.Sprintf(format, args...))
}

// Warning prints a yellow status line
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", Colors.Warning(Icons.Warning), fmt.Sprintf(format, args...))
}

// Separator prints a horizontal rule
func (p *Printer) Separator(width int) {
	fmt.Fprintln(p.w, Colors.Dim(strings.Repeat(Icons.Separator, width)))
}
