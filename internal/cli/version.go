package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ivlev/scrollstory/internal/system"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and host information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "scrollstory %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if avail, err := system.AvailableMemory(); err == nil {
			fmt.Fprintf(out, "available memory: %s\n", system.HumanBytes(avail))
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
