package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/internal/presentation/tui"
	"github.com/epistimio/kleio/pkg/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [flags]",
	Short: "Summarize trials per status, grouped by tag set",
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

		all, _ := cmd.Flags().GetBool("all")
		short, _ := cmd.Flags().GetBool("short")

		groups := map[string]map[domain.Status]int{}
		for _, report := range reports {
			key := groupKey(report.Tags)
			if groups[key] == nil {
				groups[key] = map[domain.Status]int{}
			}
			groups[key][report.Registry.Status]++
		}

		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			counts := groups[name]
			total := 0
			for _, n := range counts {
				total += n
			}

			if short {
				fmt.Printf("%-24s %d trials\n", name, total)
				continue
			}

			fmt.Println(name)
			for _, status := range domain.AllStatuses {
				if counts[status] == 0 && !all {
					continue
				}
				fmt.Printf("  %-14s %d\n", tui.ColorStatus(status), counts[status])
			}
			fmt.Println()
		}
		return nil
	},
}

// groupKey names a tag set: experiments are identified by their tags.
func groupKey(tags []string) string {
	if len(tags) == 0 {
		return "(untagged)"
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return strings.Join(sorted, ";")
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("tags", "", "Only count trials carrying all of these semicolon-separated tags")
	statusCmd.Flags().Bool("all", false, "Include statuses with zero trials")
	statusCmd.Flags().Bool("short", false, "One line per tag set, totals only")
}
