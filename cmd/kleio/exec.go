package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/consumer"
	"github.com/epistimio/kleio/pkg/producer"
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] <trial-id>",
	Short: "Resume a registered trial by its (short) id",
	Long: `Exec re-runs a trial saved or interrupted earlier. The stored command
line is executed again under the same trial identity; code or
environment drift since the original run is refused unless allowed.`,
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
		stored, err := app.store.Load(cmd.Context(), id)
		if err != nil {
			return err
		}

		opts := producerOptions(cmd)
		prod := producer.New(app.store, app.locker, app.cfg, app.log, nil)

		// Rebuilding from the stored command line lands on the same
		// identity, which routes through the resume path and its
		// conflict detection.
		h, err := prod.Build(cmd.Context(), stored.Commandline, opts)
		if err != nil {
			return describeConflict(err)
		}
		if err := prod.Reserve(cmd.Context(), h, opts); err != nil {
			return err
		}

		capture, _ := cmd.Flags().GetBool("capture")
		cons := consumer.New(app.store, app.cfg, app.log, nil)
		return cons.Consume(context.Background(), h, consumer.Options{
			Capture:   capture,
			Verbosity: verbosity(cmd),
		})
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
	addExecutionFlags(execCmd)
}
