package dmtable

import (
	"errors"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDevice = "/dev/test"

func lin(start, length uint64, params string) Segment {
	return Segment{Start: start, Length: length, Target: TargetLinear, Params: params}
}

func errSeg(start, length uint64) Segment {
	return Segment{Start: start, Length: length, Target: TargetError}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		total uint64
		bad   []BadRange
		want  Table
	}{
		{
			name:  "no bad ranges",
			total: 15000,
			bad:   nil,
			want:  Table{lin(0, 15000, "/dev/test 0")},
		},
		{
			name:  "single error segment",
			total: 15000,
			bad:   []BadRange{{10, 12}},
			want: Table{
				lin(0, 10, "/dev/test 0"),
				errSeg(10, 2),
				lin(12, 15000-12, "/dev/test 10"),
			},
		},
		{
			name:  "error at start",
			total: 100,
			bad:   []BadRange{{0, 5}},
			want: Table{
				errSeg(0, 5),
				lin(5, 95, "/dev/test 0"),
			},
		},
		{
			name:  "error at end",
			total: 100,
			bad:   []BadRange{{90, 100}},
			want: Table{
				lin(0, 90, "/dev/test 0"),
				errSeg(90, 10),
			},
		},
		{
			name:  "whole device error",
			total: 100,
			bad:   []BadRange{{0, 100}},
			want:  Table{errSeg(0, 100)},
		},
		{
			name:  "error near end",
			total: 100,
			bad:   []BadRange{{90, 99}},
			want: Table{
				lin(0, 90, "/dev/test 0"),
				errSeg(90, 9),
				lin(99, 1, "/dev/test 90"),
			},
		},
		{
			name:  "error at start and end",
			total: 100,
			bad:   []BadRange{{0, 5}, {90, 100}},
			want: Table{
				errSeg(0, 5),
				lin(5, 85, "/dev/test 0"),
				errSeg(90, 10),
			},
		},
		{
			name:  "holes in middle",
			total: 100,
			bad:   []BadRange{{20, 25}, {60, 61}},
			want: Table{
				lin(0, 20, "/dev/test 0"),
				errSeg(20, 5),
				lin(25, 35, "/dev/test 20"),
				errSeg(60, 1),
				lin(61, 39, "/dev/test 55"),
			},
		},
		{
			name:  "holes in middle and end",
			total: 100,
			bad:   []BadRange{{20, 25}, {60, 61}, {90, 100}},
			want: Table{
				lin(0, 20, "/dev/test 0"),
				errSeg(20, 5),
				lin(25, 35, "/dev/test 20"),
				errSeg(60, 1),
				lin(61, 29, "/dev/test 55"),
				errSeg(90, 10),
			},
		},
		{
			name:  "unsorted input",
			total: 100,
			bad:   []BadRange{{60, 61}, {20, 25}},
			want: Table{
				lin(0, 20, "/dev/test 0"),
				errSeg(20, 5),
				lin(25, 35, "/dev/test 20"),
				errSeg(60, 1),
				lin(61, 39, "/dev/test 55"),
			},
		},
		{
			name:  "abutting ranges",
			total: 100,
			bad:   []BadRange{{10, 20}, {20, 30}},
			want: Table{
				lin(0, 10, "/dev/test 0"),
				errSeg(10, 10),
				errSeg(20, 10),
				lin(30, 70, "/dev/test 10"),
			},
		},
		{
			name:  "overlapping ranges are merged",
			total: 100,
			bad:   []BadRange{{10, 25}, {20, 30}, {12, 14}},
			want: Table{
				lin(0, 10, "/dev/test 0"),
				errSeg(10, 20),
				lin(30, 70, "/dev/test 10"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Build(testDevice, tt.total, tt.bad)
			require.NoError(t, err)
			assert.Equal(t, tt.want, table)
			assert.NoError(t, table.Validate(tt.total))
		})
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	bad := []BadRange{{60, 61}, {20, 25}}
	_, err := Build(testDevice, 100, bad)
	require.NoError(t, err)
	assert.Equal(t, []BadRange{{60, 61}, {20, 25}}, bad)
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		bad  []BadRange
		want error
	}{
		{name: "empty list", bad: []BadRange{}, want: ErrNoRanges},
		{name: "start equals end", bad: []BadRange{{5, 5}}, want: ErrInvertedRange},
		{name: "start after end", bad: []BadRange{{9, 5}}, want: ErrInvertedRange},
		{name: "end past device", bad: []BadRange{{90, 101}}, want: ErrOutOfBounds},
		{name: "start past device", bad: []BadRange{{200, 201}}, want: ErrOutOfBounds},
		{name: "one bad range among good", bad: []BadRange{{0, 5}, {7, 6}}, want: ErrInvertedRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Build(testDevice, 100, tt.bad)
			require.Error(t, err)
			assert.Nil(t, table)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBuildValidationErrorType(t *testing.T) {
	_, err := Build(testDevice, 100, []BadRange{{90, 101}})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, BadRange{90, 101}, verr.Range)
	assert.Contains(t, err.Error(), "[90, 101)")
}

// Random inputs must always produce a table that covers the device exactly
// and maps linear segments onto consecutive backing offsets.
func TestBuildProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		total := uint64(rng.Intn(1000) + 1)
		n := rng.Intn(6) + 1
		bad := make([]BadRange, 0, n)
		for j := 0; j < n; j++ {
			start := uint64(rng.Int63n(int64(total)))
			end := start + 1 + uint64(rng.Int63n(int64(total-start)))
			bad = append(bad, BadRange{start, end})
		}

		table, err := Build(testDevice, total, bad)
		require.NoError(t, err)
		require.NoError(t, table.Validate(total), "bad=%v table=%v", bad, table)
		assert.Equal(t, total, table.Total())

		var linearBlocks uint64
		for _, s := range table {
			if s.Target != TargetLinear {
				continue
			}
			assert.Equal(t, lin(s.Start, s.Length, testDevice+" "+strconv.FormatUint(linearBlocks, 10)), s)
			linearBlocks += s.Length
		}

		for _, r := range bad {
			for b := r.Start; b < r.End; b++ {
				assert.Equal(t, TargetError, targetAt(table, b), "block %d", b)
			}
		}
	}
}

func targetAt(table Table, block uint64) Target {
	for _, s := range table {
		if block >= s.Start && block < s.End() {
			return s.Target
		}
	}
	return ""
}

func TestTableString(t *testing.T) {
	table, err := Build(testDevice, 100, []BadRange{{0, 5}})
	require.NoError(t, err)

	assert.Equal(t, "0 5 error\n5 95 linear /dev/test 0", table.String())
}

func TestTableValidate(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		total uint64
	}{
		{name: "gap", table: Table{lin(0, 10, "d 0"), lin(11, 89, "d 10")}, total: 100},
		{name: "overlap", table: Table{lin(0, 10, "d 0"), errSeg(9, 91)}, total: 100},
		{name: "short", table: Table{lin(0, 10, "d 0")}, total: 100},
		{name: "zero length", table: Table{errSeg(0, 0), lin(0, 100, "d 0")}, total: 100},
		{name: "linear without device", table: Table{lin(0, 100, "")}, total: 100},
		{name: "unknown target", table: Table{{Start: 0, Length: 100, Target: "flakey"}}, total: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.table.Validate(tt.total))
		})
	}
}
