package cli

import (
	"github.com/mohammedgqudah/ff/internal/output"
	"github.com/mohammedgqudah/ff/pkg/extent"
	"github.com/spf13/cobra"
)

var extentsCmd = &cobra.Command{
	Use:   "extents <file>",
	Short: "Show where a file's data lives on disk",
	Long: `Show the extents of a file as reported by the FS_IOC_FIEMAP ioctl, with the
512-byte sectors each one covers. Pass the sectors to "ff dm table --fail" to
make reads and writeback of that data fail.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtents,
}

func runExtents(cmd *cobra.Command, args []string) error {
	f, err := openFile(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	extents, err := extent.Map(f)
	if err != nil {
		return err
	}

	return formatter(cmd).Print(extents, func(p *output.Printer) {
		p.Extents(extents)
	})
}
