package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/trial"
)

var tailCmd = &cobra.Command{
	Use:   "tail [flags] <trial-id>",
	Short: "Print the last output lines of a trial",
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

		attr := domain.AttrStdout
		if withStderr, _ := cmd.Flags().GetBool("stderr"); withStderr {
			attr = domain.AttrStderr
		}

		view, err := trial.NewView(cmd.Context(), app.store, id)
		if err != nil {
			return err
		}
		lines, err := view.Stdout(cmd.Context())
		if attr == domain.AttrStderr {
			lines, err = view.Stderr(cmd.Context())
		}
		if err != nil {
			return err
		}

		count, _ := cmd.Flags().GetInt("lines")
		if count > 0 && len(lines) > count {
			lines = lines[len(lines)-count:]
		}
		for _, line := range lines {
			fmt.Println(line)
		}

		follow, _ := cmd.Flags().GetBool("follow")
		if !follow {
			return nil
		}
		return followStream(cmd, app, id, attr)
	},
}

// followStream polls the trial's own stream for new events, stopping
// once the trial leaves the running states and the stream is drained.
func followStream(cmd *cobra.Command, app *app, id string, attr domain.Attribute) error {
	events, err := app.store.Events(cmd.Context(), id, attr, 0)
	if err != nil {
		return err
	}
	var since uint64
	if len(events) > 0 {
		since = events[len(events)-1].Seq
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}

		fresh, err := app.store.Events(cmd.Context(), id, attr, since)
		if err != nil {
			return err
		}
		for _, ev := range fresh {
			fmt.Println(ev.Item)
			since = ev.Seq
		}

		if len(fresh) == 0 {
			status, err := app.store.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			if status != domain.StatusRunning && status != domain.StatusReserved {
				return nil
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().IntP("lines", "n", 20, "Number of lines to print")
	tailCmd.Flags().BoolP("follow", "f", false, "Keep printing new output while the trial runs")
	tailCmd.Flags().Bool("stderr", false, "Tail the captured stderr instead of stdout")
}
