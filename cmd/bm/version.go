package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/blockmap/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of bm",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bm %s\n", version.Version)
		},
	}
}
