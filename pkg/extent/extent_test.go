package extent

import (
	"testing"

	"github.com/mohammedgqudah/ff/pkg/dmtable"
	"github.com/stretchr/testify/assert"
)

func TestExtentSectors(t *testing.T) {
	tests := []struct {
		name   string
		extent Extent
		want   dmtable.BadRange
	}{
		{
			name:   "one block",
			extent: Extent{Physical: 4096 * 10, Length: 4096},
			want:   dmtable.BadRange{Start: 80, End: 88},
		},
		{
			name:   "unaligned tail rounds up",
			extent: Extent{Physical: 1024, Length: 600},
			want:   dmtable.BadRange{Start: 2, End: 4},
		},
		{
			name:   "device start",
			extent: Extent{Physical: 0, Length: 512},
			want:   dmtable.BadRange{Start: 0, End: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.extent.Sectors())
		})
	}
}

func TestFlagsString(t *testing.T) {
	assert.Equal(t, "", Flags(0).String())
	assert.Equal(t, "last", Last.String())
	assert.Equal(t, "last,unwritten", (Last | Unwritten).String())
	assert.Equal(t, "delalloc,0x10000", (DelayedAlloc | Flags(0x10000)).String())
}

func TestExtentAddressable(t *testing.T) {
	assert.True(t, Extent{Flags: Last}.Addressable())
	assert.True(t, Extent{Flags: Unwritten}.Addressable())
	assert.False(t, Extent{Flags: Unknown | DelayedAlloc}.Addressable())
	assert.False(t, Extent{Flags: DataInline | NotAligned}.Addressable())
}
