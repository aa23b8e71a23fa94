package cli

import (
	"fmt"

	"github.com/sleepydirt/vision/internal/platform/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "visionctl %s\n", version.Get())
	},
}
