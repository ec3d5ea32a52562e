package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/internal/presentation/tui"
	"github.com/epistimio/kleio/pkg/domain"
)

var lsCmd = &cobra.Command{
	Use:   "ls [flags]",
	Short: "List tracked trials",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		tags, _ := cmd.Flags().GetString("tags")
		reports, err := app.store.ListReports(cmd.Context(), splitTags(tags))
		if err != nil {
			return err
		}

		for _, report := range reports {
			fmt.Printf("%s  %-12s  %s\n",
				domain.ShortID(report.ID),
				tui.ColorStatus(report.Registry.Status),
				strings.Join(report.Commandline, " "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().String("tags", "", "Only list trials carrying all of these semicolon-separated tags")
}
