package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hwctl version %s\n", version)
		},
	}
}
