//go:build linux
// +build linux

package pagemap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMappingTouchFaultAfterTruncate(t *testing.T) {
	f := newTestFile(t, 10)

	m, err := mapFile(f, 0, 10, unix.PROT_READ, unix.MAP_SHARED)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Touch(0))

	// the page behind the mapping no longer exists, reading it raises SIGBUS
	require.NoError(t, f.Truncate(0))

	err = m.Touch(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPageFault), "err: %v", err)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "fault", opErr.Op)
	assert.Equal(t, f.Name(), opErr.Path)
}

func TestMappingTouchOutOfRange(t *testing.T) {
	f := newTestFile(t, 10)

	m, err := mapFile(f, 0, 10, unix.PROT_READ, unix.MAP_PRIVATE)
	require.NoError(t, err)
	defer m.Close()

	assert.Error(t, m.Touch(-1))
	assert.Error(t, m.Touch(10))
}

func TestMappingResidency(t *testing.T) {
	ps := VMPageSize()
	f := newTestFile(t, 2*ps)

	m, err := mapFile(f, 0, 2*ps, unix.PROT_READ, unix.MAP_SHARED)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Touch(ps))

	vec, err := m.Residency(ps)
	require.NoError(t, err)
	require.Len(t, vec, 2)
	assert.Equal(t, byte(1), vec[1]&1)
}

func TestMappingCloseTwice(t *testing.T) {
	m, err := mapFile(newTestFile(t, 10), 0, 10, unix.PROT_READ, unix.MAP_PRIVATE)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
