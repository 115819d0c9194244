package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"billsync/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Args:  cobra.NoArgs,
	Run: func(c *cobra.Command, args []string) {
		info := buildinfo.Info()
		fmt.Printf("billsync %s", info["version"])
		if info["commit"] != "" {
			fmt.Printf(" (%s)", info["commit"])
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
