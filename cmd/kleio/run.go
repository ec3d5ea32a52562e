package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/consumer"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/producer"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Execute a command as a tracked trial",
	Long: `Run registers the command as a trial (or resumes the existing one when
the same command was tracked before), reserves it and executes it,
streaming output and heartbeats into the store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := producerOptions(cmd)
		prod := producer.New(app.store, app.locker, app.cfg, app.log, nil)

		h, err := prod.Build(cmd.Context(), args, opts)
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
	rootCmd.AddCommand(runCmd)
	addExecutionFlags(runCmd)
}

// addExecutionFlags registers the flags shared by run and exec.
func addExecutionFlags(cmd *cobra.Command) {
	cmd.Flags().String("tags", "", "Semicolon-separated tags to attach to the trial")
	cmd.Flags().Bool("capture", false, "Do not echo the command output to the terminal")
	cmd.Flags().Bool("switch-over", false, "Force a broken or stuck trial back to executable before reserving")
	cmd.Flags().Bool("allow-code-change", false, "Resume even when the code fingerprint changed")
	cmd.Flags().Bool("allow-version-change", false, "Alias of --allow-code-change")
	cmd.Flags().Bool("allow-env-change", false, "Resume even when the host environment changed")
	cmd.Flags().Bool("allow-host-change", false, "Alias of --allow-env-change")
	cmd.Flags().Bool("allow-any-change", false, "Resume regardless of detected changes")
}

// producerOptions reads the shared execution flags.
func producerOptions(cmd *cobra.Command) producer.Options {
	tags, _ := cmd.Flags().GetString("tags")
	code, _ := cmd.Flags().GetBool("allow-code-change")
	version, _ := cmd.Flags().GetBool("allow-version-change")
	env, _ := cmd.Flags().GetBool("allow-env-change")
	host, _ := cmd.Flags().GetBool("allow-host-change")
	any, _ := cmd.Flags().GetBool("allow-any-change")
	switchOver, _ := cmd.Flags().GetBool("switch-over")

	return producer.Options{
		Tags:            splitTags(tags),
		AllowCodeChange: code || version,
		AllowEnvChange:  env || host,
		AllowAnyChange:  any,
		SwitchOver:      switchOver,
	}
}

// describeConflict decorates a conflict error with the ways out.
func describeConflict(err error) error {
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}

	fmt.Fprintf(os.Stderr, "Trial %.7s was run in a different context:\n", conflict.TrialID)
	for _, c := range conflict.Conflicts {
		fmt.Fprintf(os.Stderr, "  %s\n", c)
	}
	fmt.Fprintf(os.Stderr, "\nEither allow the changes (--allow-code-change, --allow-env-change,\n")
	fmt.Fprintf(os.Stderr, "--allow-any-change) or fork the history:\n")
	fmt.Fprintf(os.Stderr, "  kleio branch %.7s -- [overrides...]\n", conflict.TrialID)
	return err
}
