package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/trial"
)

var switchoverCmd = &cobra.Command{
	Use:   "switchover <trial-id>",
	Short: "Mark a broken or stuck trial executable again",
	Args:  cobra.ExactArgs(1),
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
		h, err := trial.Load(cmd.Context(), app.store, id)
		if err != nil {
			return err
		}

		if err := h.Switchover(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("trial %.7s is executable again\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(switchoverCmd)
}
