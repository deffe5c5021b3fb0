package main

import (
	"fmt"

	"github.com/pipegate-dev/pipegate/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd implements the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pipegate",
	Run: func(_ *cobra.Command, _ []string) {
		info := version.Get()
		fmt.Printf("pipegate version %s\n", info.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
