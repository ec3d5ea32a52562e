package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/producer"
)

var branchCmd = &cobra.Command{
	Use:   "branch [flags] <trial-id> [-- overrides...]",
	Short: "Fork a child trial from a parent's history",
	Long: `Branch creates a new trial whose command line is the parent's with the
given overrides applied, and whose view of stdout, statistics and
configuration is the parent's history clipped at the branch point
(the parent's end time unless --timestamp says otherwise).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := producer.BranchOptions{}
		if raw, _ := cmd.Flags().GetString("timestamp"); raw != "" {
			at, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fmt.Errorf("invalid --timestamp %q: %w", raw, err)
			}
			opts.Timestamp = at
		}
		tags, _ := cmd.Flags().GetString("tags")
		opts.Tags = splitTags(tags)

		prod := producer.New(app.store, app.locker, app.cfg, app.log, nil)
		h, err := prod.Branch(cmd.Context(), args[0], args[1:], opts)
		if err != nil {
			return err
		}

		fmt.Println(h.ShortID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(branchCmd)
	branchCmd.Flags().String("timestamp", "", "Branch point in the parent's timeline (RFC3339)")
	branchCmd.Flags().String("tags", "", "Semicolon-separated tags to attach to the child trial")
}
