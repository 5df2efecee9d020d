//go:build linux
// +build linux

package extent

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write(bytes.Repeat([]byte("x"), 3*4096))
	require.NoError(t, err)

	extents, err := Map(f)
	if errors.Is(err, ErrUnsupported) {
		t.Skip("file system does not support FIEMAP")
	}
	require.NoError(t, err)
	require.NotEmpty(t, extents)

	assert.True(t, extents[len(extents)-1].Flags.Has(Last))

	var total uint64
	for i, e := range extents {
		if i > 0 {
			prev := extents[i-1]
			assert.GreaterOrEqual(t, e.Logical, prev.Logical+prev.Length)
		}
		total += e.Length
	}
	assert.GreaterOrEqual(t, total, uint64(3*4096))
}

func TestMapEmptyFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "empty"))
	require.NoError(t, err)
	defer f.Close()

	extents, err := Map(f)
	if errors.Is(err, ErrUnsupported) {
		t.Skip("file system does not support FIEMAP")
	}
	require.NoError(t, err)
	assert.Empty(t, extents)
}

func TestDecodeExtent(t *testing.T) {
	buf := make([]byte, fiemapExtentSize)
	binary.NativeEndian.PutUint64(buf[0:], 0x10)
	binary.NativeEndian.PutUint64(buf[8:], 0x2000)
	binary.NativeEndian.PutUint64(buf[16:], 0x1000)
	binary.NativeEndian.PutUint32(buf[40:], uint32(Last|Shared))

	assert.Equal(t, Extent{Logical: 0x10, Physical: 0x2000, Length: 0x1000, Flags: Last | Shared}, decodeExtent(buf))
}
