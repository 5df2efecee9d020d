package cli

import (
	"fmt"
	"strconv"

	"github.com/mohammedgqudah/ff/internal/output"
	"github.com/spf13/cobra"
)

var pageCmd = &cobra.Command{
	Use:   "page <file> <block>",
	Short: "Fault in one block of a file and show its page flags",
	Long: `Fault in one file-system block of a file and show the pagemap entry of the
page holding it and the kernel flags of the backing frame.

The block is brought into the page cache with readahead disabled. Frame
flags need CAP_SYS_ADMIN; without it only the pagemap entry is shown.`,
	Example: `  sudo ff page data.db 0`,
	Args:    cobra.ExactArgs(2),
	RunE:    runPage,
}

func runPage(cmd *cobra.Command, args []string) error {
	block, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid block index %q: %w", args[1], err)
	}

	f, err := openFile(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := lookupPage(newEngine(), f, block, block)
	if err != nil {
		return err
	}

	return formatter(cmd).Print(report, func(p *output.Printer) {
		p.Page(report.Block, report.entry, report.flags)
		if report.Error != "" {
			p.Warning("%s", report.Error)
		}
	})
}
