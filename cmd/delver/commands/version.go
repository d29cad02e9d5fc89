package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/delver/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			fmt.Println(version.Full())
		} else {
			fmt.Println(version.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("verbose", "v", false, "include commit and build date")
}
