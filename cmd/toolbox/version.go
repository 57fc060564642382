package main

import (
	"fmt"

	"github.com/aretw0/toolbox"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of toolbox",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "toolbox version %s\n", toolbox.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
