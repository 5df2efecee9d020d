// Package dmtable builds device-mapper tables that pass I/O through to a
// backing device except for a set of block ranges that always fail.
package dmtable

import (
	"fmt"
	"sort"
	"strings"
)

// Target is the device-mapper target type of a segment
type Target string

const (
	// TargetLinear maps the segment onto a range of the backing device
	TargetLinear Target = "linear"
	// TargetError fails every I/O to the segment
	TargetError Target = "error"
)

// Segment is one row of a device-mapper table.
//
// Start and Length are in device-mapper blocks. Params is "<device> <offset>"
// for linear segments and empty for error segments.
type Segment struct {
	Start  uint64 `json:"start" yaml:"start"`
	Length uint64 `json:"length" yaml:"length"`
	Target Target `json:"target" yaml:"target"`
	Params string `json:"params,omitempty" yaml:"params,omitempty"`
}

// End returns the first block after the segment
func (s Segment) End() uint64 {
	return s.Start + s.Length
}

// String renders the segment as a dmsetup table line
func (s Segment) String() string {
	if s.Params == "" {
		return fmt.Sprintf("%d %d %s", s.Start, s.Length, s.Target)
	}
	return fmt.Sprintf("%d %d %s %s", s.Start, s.Length, s.Target, s.Params)
}

// Table is an ordered list of segments
type Table []Segment

// String renders the table in the format accepted by `dmsetup load`
func (t Table) String() string {
	lines := make([]string, 0, len(t))
	for _, s := range t {
		lines = append(lines, s.String())
	}
	return strings.Join(lines, "\n")
}

// Total returns the sum of all segment lengths
func (t Table) Total() uint64 {
	var total uint64
	for _, s := range t {
		total += s.Length
	}
	return total
}

// Validate checks that segments are sorted, contiguous, non-empty and cover
// exactly [0, total).
func (t Table) Validate(total uint64) error {
	var next uint64
	for i, s := range t {
		if s.Length == 0 {
			return fmt.Errorf("segment %d has zero length", i)
		}
		if s.Start != next {
			return fmt.Errorf("segment %d starts at %d, expected %d", i, s.Start, next)
		}
		switch s.Target {
		case TargetLinear:
			if s.Params == "" {
				return fmt.Errorf("linear segment %d has no backing device", i)
			}
		case TargetError:
			if s.Params != "" {
				return fmt.Errorf("error segment %d has parameters %q", i, s.Params)
			}
		default:
			return fmt.Errorf("segment %d has unknown target %q", i, s.Target)
		}
		next = s.End()
	}
	if next != total {
		return fmt.Errorf("table covers %d blocks, expected %d", next, total)
	}
	return nil
}

// Linear returns a table mapping [0, totalBlocks) straight onto device
func Linear(device string, totalBlocks uint64) Table {
	return Table{linearSegment(device, 0, totalBlocks, 0)}
}

// Build synthesizes a table for device that fails I/O on every bad range and
// passes everything else through.
//
// A nil bad means no faults and yields a single linear segment. A non-nil but
// empty bad is rejected: pass nil instead. Linear segments are packed onto the
// backing device back to back, error segments consume no backing space.
func Build(device string, totalBlocks uint64, bad []BadRange) (Table, error) {
	if bad == nil {
		return Linear(device, totalBlocks), nil
	}

	ranges, err := normalize(bad, totalBlocks)
	if err != nil {
		return nil, err
	}

	table := make(Table, 0, 2*len(ranges)+1)

	var devOffset uint64
	emitLinear := func(start, end uint64) {
		table = append(table, linearSegment(device, start, end-start, devOffset))
		devOffset += end - start
	}

	var cursor uint64
	for _, r := range ranges {
		if r.Start > cursor {
			emitLinear(cursor, r.Start)
		}
		table = append(table, Segment{
			Start:  r.Start,
			Length: r.Len(),
			Target: TargetError,
		})
		cursor = r.End
	}

	if cursor < totalBlocks {
		emitLinear(cursor, totalBlocks)
	}

	return table, nil
}

func linearSegment(device string, start, length, devOffset uint64) Segment {
	return Segment{
		Start:  start,
		Length: length,
		Target: TargetLinear,
		Params: fmt.Sprintf("%s %d", device, devOffset),
	}
}

// normalize validates every range, sorts by start and merges ranges that
// overlap. Abutting ranges are kept apart.
func normalize(bad []BadRange, totalBlocks uint64) ([]BadRange, error) {
	if len(bad) == 0 {
		return nil, ErrNoRanges
	}

	for _, r := range bad {
		if err := r.validate(totalBlocks); err != nil {
			return nil, err
		}
	}

	sorted := make([]BadRange, len(bad))
	copy(sorted, bad)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := make([]BadRange, 1, len(sorted))
	merged[0] = sorted[0]
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start < last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}

	return merged, nil
}
