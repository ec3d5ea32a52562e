package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of kleio",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kleio version %s\n", strings.TrimSpace(kleio.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
