package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/trial"
)

var cureCmd = &cobra.Command{
	Use:   "cure [flags]",
	Short: "Revive trials abandoned by dead consumers",
	Long: `Cure sweeps the store for running or reserved trials whose heartbeat
went stale and makes them reservable again. The staleness threshold is
the heartbeat interval times the threshold coefficient.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		coefficient, _ := cmd.Flags().GetFloat64("threshold-coefficient")
		if coefficient <= 0 {
			return fmt.Errorf("threshold coefficient must be positive, got %g", coefficient)
		}
		tags, _ := cmd.Flags().GetString("tags")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cured, err := trial.Cure(cmd.Context(), app.store, app.log, trial.CureOptions{
			Tags:      splitTags(tags),
			Threshold: time.Duration(float64(app.cfg.HeartbeatInterval) * coefficient),
			DryRun:    dryRun,
		})
		if err != nil {
			return err
		}

		verb := "cured"
		if dryRun {
			verb = "would cure"
		}
		fmt.Printf("%s %d trial(s)\n", verb, len(cured))
		for _, id := range cured {
			fmt.Printf("  %s\n", domain.ShortID(id))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cureCmd)
	cureCmd.Flags().String("tags", "", "Only sweep trials carrying all of these semicolon-separated tags")
	cureCmd.Flags().Float64("threshold-coefficient", 5, "Heartbeat-interval multiples before a trial is presumed dead")
	cureCmd.Flags().Bool("dry-run", false, "Report candidates without changing anything")
}
