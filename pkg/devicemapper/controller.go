// Package devicemapper creates and remaps device-mapper devices so a range of
// blocks can be switched between passing through and failing I/O while a file
// system stays mounted on top.
package devicemapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammedgqudah/ff/pkg/dmtable"
)

var (
	// ErrInvalidName is returned for names dmsetup would reject
	ErrInvalidName = errors.New("invalid device name")

	// ErrEmptyTable is returned when loading a table with no segments
	ErrEmptyTable = errors.New("table has no segments")
)

// Controller drives the device-mapper control channel
type Controller interface {
	// Create registers a device with no table
	Create(ctx context.Context, name string) error
	// Load stages table as the device's inactive table
	Load(ctx context.Context, name string, table dmtable.Table) error
	// Suspend stops I/O to the device. With noflush, in-flight I/O is
	// requeued instead of flushed.
	Suspend(ctx context.Context, name string, noflush bool) error
	// Resume swaps in a staged table and restarts I/O
	Resume(ctx context.Context, name string, noflush bool) error
	// Remove deletes the device
	Remove(ctx context.Context, name string) error
	// Table returns the device's live table as dmsetup prints it
	Table(ctx context.Context, name string) (string, error)
}

// Remap replaces the live table of an existing device. The device is
// suspended and resumed without flushing so pages that failed to write stay
// dirty in the page cache instead of being retried against the new table.
func Remap(ctx context.Context, c Controller, name string, table dmtable.Table) error {
	if err := c.Load(ctx, name, table); err != nil {
		return fmt.Errorf("failed to reload targets of %s: %w", name, err)
	}
	if err := c.Suspend(ctx, name, true); err != nil {
		return fmt.Errorf("failed to suspend %s: %w", name, err)
	}
	if err := c.Resume(ctx, name, true); err != nil {
		return fmt.Errorf("failed to resume %s: %w", name, err)
	}
	return nil
}

// Setup creates name with table as its live table. A device left over from a
// previous run is removed first; failing to remove it is not an error.
func Setup(ctx context.Context, c Controller, name string, table dmtable.Table) error {
	_ = c.Remove(ctx, name)

	if err := c.Create(ctx, name); err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := c.Load(ctx, name, table); err != nil {
		return fmt.Errorf("failed to load targets of %s: %w", name, err)
	}
	if err := c.Resume(ctx, name, false); err != nil {
		return fmt.Errorf("failed to resume %s: %w", name, err)
	}
	return nil
}

// DevicePath returns the node udev creates for name
func DevicePath(name string) string {
	return "/dev/mapper/" + name
}

// ValidateName checks name against the rules dmsetup enforces
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) >= 128:
		return fmt.Errorf("%w: %q is longer than 127 bytes", ErrInvalidName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if r == '/' || r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	return nil
}
