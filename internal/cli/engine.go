package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/mohammedgqudah/ff/pkg/pagemap"
)

func newEngine() *pagemap.Engine {
	return pagemap.NewEngine(logger,
		pagemap.WithPageMap(pagemap.NewProcTable(cfg.PageMapPath)),
		pagemap.WithKernelPageFlags(pagemap.NewProcTable(cfg.KPageFlagsPath)),
	)
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// pageReport is one page lookup. A hidden frame is reported, not fatal, so
// the entry flags are still shown without CAP_SYS_ADMIN.
type pageReport struct {
	Page  uint64 `json:"page" yaml:"page"`
	Block uint64 `json:"block" yaml:"block"`
	Entry string `json:"entry" yaml:"entry"`
	Flags string `json:"flags,omitempty" yaml:"flags,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	entry pagemap.Entry
	flags pagemap.KernelPageFlags
}

func lookupPage(engine *pagemap.Engine, f pagemap.File, page, block uint64) (pageReport, error) {
	entry, flags, err := engine.PageInfo(f, block)
	report := pageReport{
		Page:  page,
		Block: block,
		Entry: entry.String(),
		entry: entry,
		flags: flags,
	}
	switch {
	case err == nil:
		report.Flags = flags.String()
	case errors.Is(err, pagemap.ErrFrameHidden):
		report.Error = err.Error()
	default:
		return report, err
	}
	return report, nil
}

// blockOfPage returns the file-system block holding the first byte of a VM
// page
func blockOfPage(page uint64, pageSize, blockSize int) uint64 {
	return page * uint64(pageSize) / uint64(blockSize)
}
