package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/lectern"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of lectern",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lectern version %s\n", lectern.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
