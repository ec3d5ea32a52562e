package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/trial"
)

var catCmd = &cobra.Command{
	Use:   "cat [flags] <trial-id>",
	Short: "Print the captured output of a trial",
	Long: `Cat prints the stdout captured across the trial's lineage: for a
branched trial, the parent's output up to the branch point comes first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := app.store.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view, err := trial.NewView(cmd.Context(), app.store, id)
		if err != nil {
			return err
		}

		withStderr, _ := cmd.Flags().GetBool("stderr")
		lines, err := view.Stdout(cmd.Context())
		if withStderr {
			lines, err = view.Stderr(cmd.Context())
		}
		if err != nil {
			return err
		}

		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
	catCmd.Flags().Bool("stderr", false, "Print the captured stderr instead of stdout")
}
