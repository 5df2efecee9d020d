package devicemapper

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"

	"github.com/mohammedgqudah/ff/pkg/dmtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// mockRunner records dmsetup invocations as "args joined by spaces" plus the
// stdin they were given
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	var input string
	if stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		input = string(b)
	}
	ret := m.Called(name, strings.Join(args, " "), input)
	out, _ := ret.Get(0).([]byte)
	return out, ret.Error(1)
}

func newTestDMSetup(t *testing.T) (*DMSetup, *mockRunner) {
	runner := &mockRunner{}
	return NewDMSetup(zaptest.NewLogger(t), WithRunner(runner), WithPath("/sbin/dmsetup")), runner
}

func TestDMSetupLoadFeedsTableOnStdin(t *testing.T) {
	d, runner := newTestDMSetup(t)

	table, err := dmtable.Build("/dev/test", 100, []dmtable.BadRange{{Start: 10, End: 12}})
	require.NoError(t, err)

	want := "0 10 linear /dev/test 0\n10 2 error\n12 88 linear /dev/test 10\n"
	runner.On("Run", "/sbin/dmsetup", "load ff", want).Return([]byte(nil), nil).Once()

	require.NoError(t, d.Load(context.Background(), "ff", table))
	runner.AssertExpectations(t)
}

func TestDMSetupLoadEmptyTable(t *testing.T) {
	d, runner := newTestDMSetup(t)

	err := d.Load(context.Background(), "ff", nil)
	assert.ErrorIs(t, err, ErrEmptyTable)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestDMSetupCommands(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(d *DMSetup) error
		args string
	}{
		{name: "create", call: func(d *DMSetup) error { return d.Create(ctx, "ff") }, args: "create --notable ff"},
		{name: "suspend", call: func(d *DMSetup) error { return d.Suspend(ctx, "ff", false) }, args: "suspend ff"},
		{name: "suspend noflush", call: func(d *DMSetup) error { return d.Suspend(ctx, "ff", true) }, args: "suspend --noflush ff"},
		{name: "resume", call: func(d *DMSetup) error { return d.Resume(ctx, "ff", false) }, args: "resume ff"},
		{name: "resume noflush", call: func(d *DMSetup) error { return d.Resume(ctx, "ff", true) }, args: "resume --noflush ff"},
		{name: "remove", call: func(d *DMSetup) error { return d.Remove(ctx, "ff") }, args: "remove ff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, runner := newTestDMSetup(t)
			runner.On("Run", "/sbin/dmsetup", tt.args, "").Return([]byte(nil), nil).Once()

			require.NoError(t, tt.call(d))
			runner.AssertExpectations(t)
		})
	}
}

func TestDMSetupTable(t *testing.T) {
	d, runner := newTestDMSetup(t)
	runner.On("Run", "/sbin/dmsetup", "table ff", "").
		Return([]byte("0 100 linear 8:16 0\n"), nil)

	table, err := d.Table(context.Background(), "ff")
	require.NoError(t, err)
	assert.Equal(t, "0 100 linear 8:16 0", table)
}

func TestDMSetupCommandFailure(t *testing.T) {
	d, runner := newTestDMSetup(t)
	cmdErr := &CommandError{Args: []string{"remove", "ff"}, Stderr: "Device or resource busy", Err: errors.New("exit status 1")}
	runner.On("Run", "/sbin/dmsetup", "remove ff", "").Return([]byte(nil), cmdErr)

	err := d.Remove(context.Background(), "ff")
	require.Error(t, err)

	var target *CommandError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "dmsetup remove ff: exit status 1: Device or resource busy", target.Error())
}

func TestDMSetupRejectsInvalidNames(t *testing.T) {
	d, runner := newTestDMSetup(t)
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "a/b", "tab\tname", strings.Repeat("x", 128)} {
		assert.ErrorIs(t, d.Create(ctx, name), ErrInvalidName, "name %q", name)
		assert.ErrorIs(t, d.Remove(ctx, name), ErrInvalidName, "name %q", name)
	}
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)

	assert.NoError(t, ValidateName("ff-bench-device"))
}

func TestRemap(t *testing.T) {
	d, runner := newTestDMSetup(t)
	table := dmtable.Linear("/dev/test", 10)

	var order []string
	record := func(args mock.Arguments) { order = append(order, args.String(1)) }
	runner.On("Run", "/sbin/dmsetup", "load ff", "0 10 linear /dev/test 0\n").Return([]byte(nil), nil).Run(record)
	runner.On("Run", "/sbin/dmsetup", "suspend --noflush ff", "").Return([]byte(nil), nil).Run(record)
	runner.On("Run", "/sbin/dmsetup", "resume --noflush ff", "").Return([]byte(nil), nil).Run(record)

	require.NoError(t, Remap(context.Background(), d, "ff", table))
	assert.Equal(t, []string{"load ff", "suspend --noflush ff", "resume --noflush ff"}, order)
}

func TestRemapStopsOnLoadFailure(t *testing.T) {
	d, runner := newTestDMSetup(t)
	runner.On("Run", "/sbin/dmsetup", "load ff", mock.Anything).Return([]byte(nil), errors.New("exit status 1"))

	err := Remap(context.Background(), d, "ff", dmtable.Linear("/dev/test", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reload targets of ff")
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestSetup(t *testing.T) {
	d, runner := newTestDMSetup(t)

	var order []string
	record := func(args mock.Arguments) { order = append(order, args.String(1)) }
	runner.On("Run", "/sbin/dmsetup", "remove ff", "").Return([]byte(nil), errors.New("no such device")).Run(record)
	runner.On("Run", "/sbin/dmsetup", "create --notable ff", "").Return([]byte(nil), nil).Run(record)
	runner.On("Run", "/sbin/dmsetup", "load ff", mock.Anything).Return([]byte(nil), nil).Run(record)
	runner.On("Run", "/sbin/dmsetup", "resume ff", "").Return([]byte(nil), nil).Run(record)

	require.NoError(t, Setup(context.Background(), d, "ff", dmtable.Linear("/dev/test", 10)))
	assert.Equal(t, []string{"remove ff", "create --notable ff", "load ff", "resume ff"}, order)
}

func TestExecRunner(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), strings.NewReader("hello"), "cat")
	if errors.Is(err, exec.ErrNotFound) {
		t.Skip("cat not available")
	}
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	_, err = ExecRunner{}.Run(context.Background(), nil, "sh", "-c", "echo oops >&2; exit 3")
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "oops", cmdErr.Stderr)
}

func TestDevicePath(t *testing.T) {
	assert.Equal(t, "/dev/mapper/ff", DevicePath("ff"))
}
