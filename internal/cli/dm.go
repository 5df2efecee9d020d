package cli

import (
	"context"
	"fmt"
	"math"

	"github.com/mohammedgqudah/ff/internal/output"
	"github.com/mohammedgqudah/ff/pkg/devicemapper"
	"github.com/mohammedgqudah/ff/pkg/dmtable"
	"github.com/mohammedgqudah/ff/pkg/extent"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dmCmd = &cobra.Command{
	Use:   "dm",
	Short: "Build and load device-mapper tables that fail chosen blocks",
	Long: `Build device-mapper tables that pass a device through linearly except for
ranges of blocks that return I/O errors, and load them with dmsetup(8).

Ranges are written as a comma separated list, "0,3-5" fails block 0 and
blocks 3 and 4. Block sizes other than 512 bytes are converted to sectors.`,
}

var dmTableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the table that would be loaded",
	Example: `  # Fail blocks 10 and 11 of a 15000 sector device
  ff dm table --device /dev/sdb --blocks 15000 --fail 10-12

  # Use 4KiB blocks
  ff dm table --device /dev/sdb --blocks 3750 --block-size 4096 --fail 0`,
	RunE: runDMTable,
}

var dmLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Create or remap the device-mapper device",
	Long: `Load a table into the device-mapper device.

With --create any device of the same name is removed and a new one is
created. Otherwise the live table of the existing device is replaced without
flushing, so dirty pages that failed writeback stay dirty.`,
	Example: `  # Pass /dev/sdb through unchanged
  sudo ff dm load --device /dev/sdb --blocks 15000 --create

  # Fail the blocks under a file on the mounted device
  sudo ff dm load --device /dev/sdb --blocks 15000 --fail-file /mnt/ff/test.txt`,
	RunE: runDMLoad,
}

type tableOptions struct {
	device    string
	blocks    uint64
	blockSize uint64
	fail      string
	failFile  string
}

var (
	dmOpts   tableOptions
	dmName   string
	dmCreate bool
)

func init() {
	for _, c := range []*cobra.Command{dmTableCmd, dmLoadCmd} {
		c.Flags().StringVar(&dmOpts.device, "device", "", "backing block device")
		c.Flags().Uint64Var(&dmOpts.blocks, "blocks", 0, "size of the device in blocks")
		c.Flags().Uint64Var(&dmOpts.blockSize, "block-size", dmtable.SectorSize, "block size in bytes, a multiple of 512")
		c.Flags().StringVar(&dmOpts.fail, "fail", "", "comma separated block ranges to fail, e.g. 0,3-5")
		c.Flags().StringVar(&dmOpts.failFile, "fail-file", "", "also fail the sectors under this file's extents")
		c.MarkFlagRequired("device")
		c.MarkFlagRequired("blocks")
	}
	dmLoadCmd.Flags().StringVar(&dmName, "name", "", "device-mapper device name (default from config)")
	dmLoadCmd.Flags().BoolVar(&dmCreate, "create", false, "remove and create the device instead of remapping it")

	dmCmd.AddCommand(dmTableCmd)
	dmCmd.AddCommand(dmLoadCmd)
}

// buildTable turns block-based options into a sector-based table
func buildTable(opts tableOptions) (dmtable.Table, error) {
	per, err := dmtable.SectorsPerBlock(opts.blockSize)
	if err != nil {
		return nil, err
	}
	if opts.blocks == 0 {
		return nil, fmt.Errorf("--blocks must be positive")
	}
	if opts.blocks > math.MaxUint64/per {
		return nil, fmt.Errorf("%d blocks of %d bytes overflow the sector count", opts.blocks, opts.blockSize)
	}

	ranges, err := dmtable.ParseRanges(opts.fail)
	if err != nil {
		return nil, err
	}

	var bad []dmtable.BadRange
	for _, r := range ranges {
		if r.End > opts.blocks {
			// checked in blocks so the message matches what the user typed
			return nil, fmt.Errorf("range %s exceeds the device size of %d blocks", r, opts.blocks)
		}
		sectors, err := dmtable.BlockRangeToSectors(r, opts.blockSize)
		if err != nil {
			return nil, err
		}
		bad = append(bad, sectors)
	}

	if opts.failFile != "" {
		fileRanges, err := fileSectors(opts.failFile)
		if err != nil {
			return nil, err
		}
		bad = append(bad, fileRanges...)
	}

	return dmtable.Build(opts.device, opts.blocks*per, bad)
}

// fileSectors returns the device sectors under path's data. The file must
// live on the device-mapper device and the table must map it linearly from
// sector 0 for the sectors to line up.
func fileSectors(path string) ([]dmtable.BadRange, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	extents, err := extent.Map(f)
	if err != nil {
		return nil, err
	}

	var ranges []dmtable.BadRange
	for _, e := range extents {
		if !e.Addressable() {
			logger.Warn("Skipping extent without a fixed location",
				zap.String("file", path),
				zap.Uint64("logical", e.Logical),
				zap.Stringer("flags", e.Flags))
			continue
		}
		ranges = append(ranges, e.Sectors())
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%s has no allocated extents, write and sync it first", path)
	}
	return ranges, nil
}

func runDMTable(cmd *cobra.Command, args []string) error {
	table, err := buildTable(dmOpts)
	if err != nil {
		return err
	}
	return formatter(cmd).Print(table, func(p *output.Printer) {
		p.Table(table)
	})
}

func runDMLoad(cmd *cobra.Command, args []string) error {
	table, err := buildTable(dmOpts)
	if err != nil {
		return err
	}

	name := dmName
	if name == "" {
		name = cfg.DeviceName
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CommandTimeout)
	defer cancel()

	dm := devicemapper.NewDMSetup(logger, devicemapper.WithPath(cfg.DMSetupPath))
	if err := loadTable(ctx, dm, name, table, dmCreate); err != nil {
		return err
	}

	live, err := dm.Table(ctx, name)
	if err != nil {
		return err
	}

	result := struct {
		Name  string        `json:"name" yaml:"name"`
		Path  string        `json:"path" yaml:"path"`
		Table dmtable.Table `json:"table" yaml:"table"`
	}{Name: name, Path: devicemapper.DevicePath(name), Table: table}

	return formatter(cmd).Print(result, func(p *output.Printer) {
		if dmCreate {
			p.Success("created %s", result.Path)
		} else {
			p.Success("remapped %s", result.Path)
		}
		fmt.Fprintln(formatter(cmd).Writer(), live)
	})
}

func loadTable(ctx context.Context, c devicemapper.Controller, name string, table dmtable.Table, create bool) error {
	logger.Info("Loading device-mapper table",
		zap.String("name", name),
		zap.Int("segments", len(table)),
		zap.Bool("create", create))

	if create {
		return devicemapper.Setup(ctx, c, name, table)
	}
	return devicemapper.Remap(ctx, c, name, table)
}
