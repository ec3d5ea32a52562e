package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/trial"
)

var suspendCmd = &cobra.Command{
	Use:   "suspend <trial-id>",
	Short: "Stop a running trial, keeping it resumable",
	Long: `Suspend marks a running trial suspended. The executing consumer notices
on its next heartbeat and stops the child process; the trial can be
resumed later with "kleio exec".`,
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
		h, err := trial.Load(cmd.Context(), app.store, id)
		if err != nil {
			return err
		}

		status, err := h.Status(cmd.Context())
		if err != nil {
			return err
		}
		if status != domain.StatusRunning {
			return fmt.Errorf("%w: trial %.7s is %s", domain.ErrNotRunning, id, status)
		}

		if err := h.Suspend(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("trial %.7s suspended; the consumer will stop within its heartbeat interval\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suspendCmd)
}
