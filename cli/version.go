package cli

import (
	"github.com/digitorus/pdfstamp/common"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("pdfstamp version %s (stamp sizing v%d, %gpt wide)\n", version, common.StampSizingVersion, common.StampWidth)
		},
	}
}
