package dmtable

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SectorSize is the unit device-mapper tables are expressed in
const SectorSize = 512

// BadRange is a half-open block interval [Start, End) that must fail all I/O
type BadRange struct {
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// Len returns the number of blocks in the range
func (r BadRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r BadRange) String() string {
	if r.End == r.Start+1 {
		return strconv.FormatUint(r.Start, 10)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

func (r BadRange) validate(totalBlocks uint64) error {
	if r.Start >= r.End {
		return &ValidationError{
			Err:     ErrInvertedRange,
			Range:   r,
			Message: fmt.Sprintf("start %d is not less than end %d", r.Start, r.End),
		}
	}
	if r.End > totalBlocks {
		return &ValidationError{
			Err:     ErrOutOfBounds,
			Range:   r,
			Message: fmt.Sprintf("end %d exceeds the device size of %d blocks", r.End, totalBlocks),
		}
	}
	return nil
}

var (
	// ErrNoRanges is returned for a non-nil, empty list of bad ranges
	ErrNoRanges = errors.New("the list of bad ranges cannot be empty, pass nil instead")
	// ErrInvertedRange is returned for a range whose start is not below its end
	ErrInvertedRange = errors.New("bad range start is not less than its end")
	// ErrOutOfBounds is returned for a range reaching past the device
	ErrOutOfBounds = errors.New("bad range exceeds the total number of blocks")
)

// ValidationError describes a rejected bad range
type ValidationError struct {
	Err     error
	Range   BadRange
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid bad range [%d, %d): %s", e.Range.Start, e.Range.End, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseRange parses "N" as [N, N+1) and "A-B" as [A, B).
func ParseRange(s string) (BadRange, error) {
	s = strings.TrimSpace(s)
	first, second, hasEnd := strings.Cut(s, "-")

	start, err := strconv.ParseUint(first, 10, 64)
	if err != nil {
		return BadRange{}, fmt.Errorf("%q is not a number, %q is not a valid range", first, s)
	}

	if !hasEnd {
		return BadRange{Start: start, End: start + 1}, nil
	}

	if second == "" {
		return BadRange{}, fmt.Errorf("missing range end, %q is not a valid range", s)
	}
	end, err := strconv.ParseUint(second, 10, 64)
	if err != nil {
		return BadRange{}, fmt.Errorf("%q is not a number, %q is not a valid range", second, s)
	}

	return BadRange{Start: start, End: end}, nil
}

// ParseRanges parses a comma separated list such as "0,3-5". An empty string
// yields nil so the result can be passed straight to Build.
func ParseRanges(s string) ([]BadRange, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ranges := make([]BadRange, 0, len(parts))
	for _, part := range parts {
		r, err := ParseRange(part)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// SectorsPerBlock returns how many dm sectors make up one block of blockSize
// bytes.
func SectorsPerBlock(blockSize uint64) (uint64, error) {
	if blockSize == 0 || blockSize%SectorSize != 0 {
		return 0, fmt.Errorf("block size %d is not a multiple of the %d byte sector size", blockSize, SectorSize)
	}
	return blockSize / SectorSize, nil
}

// BlockRangeToSectors converts a range of blockSize-byte blocks into the
// equivalent range of dm sectors.
func BlockRangeToSectors(r BadRange, blockSize uint64) (BadRange, error) {
	per, err := SectorsPerBlock(blockSize)
	if err != nil {
		return BadRange{}, err
	}
	if r.Start > math.MaxUint64/per || r.End > math.MaxUint64/per {
		return BadRange{}, fmt.Errorf("range %s of %d byte blocks overflows the sector count", r, blockSize)
	}
	return BadRange{Start: r.Start * per, End: r.End * per}, nil
}
