package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/producer"
)

var saveCmd = &cobra.Command{
	Use:   "save [flags] -- command [args...]",
	Short: "Register a trial without executing it",
	Long: `Save records the command as a trial so it can be tagged, inspected and
executed later with "kleio exec".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		tags, _ := cmd.Flags().GetString("tags")
		prod := producer.New(app.store, app.locker, app.cfg, app.log, nil)
		h, err := prod.Build(cmd.Context(), args, producer.Options{Tags: splitTags(tags)})
		if err != nil {
			return describeConflict(err)
		}

		fmt.Println(h.ShortID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().String("tags", "", "Semicolon-separated tags to attach to the trial")
}
