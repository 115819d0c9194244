// Package cli defines the billsync command tree.
package cli

import (
	"github.com/spf13/cobra"

	"billsync/internal/buildinfo"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "billsync",
	Short: "billsync, " + buildinfo.Version,
	Long:  "Synchronizes billing state from the payment provider and receives its webhooks.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
