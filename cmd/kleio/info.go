package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/internal/presentation/tui"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/trial"
)

var infoCmd = &cobra.Command{
	Use:   "info <trial-id>",
	Short: "Show everything known about a trial",
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
		view, err := trial.NewView(cmd.Context(), app.store, id)
		if err != nil {
			return err
		}

		markdown, err := describeTrial(cmd, app, view)
		if err != nil {
			return err
		}

		render := tui.NewRenderer()
		fmt.Print(render(markdown))
		return nil
	},
}

// describeTrial builds the markdown document for one trial view.
func describeTrial(cmd *cobra.Command, app *app, view *trial.View) (string, error) {
	ctx := cmd.Context()
	t := view.Trial()

	status, err := view.Status(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Trial %s\n\n", t.ShortID())
	fmt.Fprintf(&b, "- **id**: `%s`\n", t.ID)
	fmt.Fprintf(&b, "- **status**: %s\n", status)
	fmt.Fprintf(&b, "- **submitted**: %s\n", t.SubmitTime.Local().Format(time.RFC1123))
	if start, err := view.StartTime(ctx); err == nil && !start.IsZero() {
		fmt.Fprintf(&b, "- **started**: %s\n", start.Local().Format(time.RFC1123))
	}
	if end, err := view.EndTime(ctx); err == nil && !end.IsZero() {
		fmt.Fprintf(&b, "- **last event**: %s\n", end.Local().Format(time.RFC1123))
	}
	tags, err := view.Tags(ctx)
	if err == nil && len(tags) > 0 {
		fmt.Fprintf(&b, "- **tags**: %s\n", strings.Join(tags, "; "))
	}

	if len(tags) > 0 {
		exp := domain.ExperimentFromTrial(tags[0], t)
		b.WriteString("\n## Experiment\n\n")
		fmt.Fprintf(&b, "- **name**: %s\n", exp.Name)
		if len(exp.Parameters) > 0 {
			fmt.Fprintf(&b, "- **parameters**: %s\n", strings.Join(exp.Parameters, ", "))
		}
		if exp.User != "" {
			fmt.Fprintf(&b, "- **created by**: %s\n", exp.User)
		}
	}

	commandlines, err := view.Commandlines(ctx)
	if err != nil {
		return "", err
	}
	b.WriteString("\n## Command lineage\n\n")
	for _, line := range commandlines {
		when := "never started"
		if !line.StartTime.IsZero() {
			when = line.StartTime.Local().Format(time.RFC1123)
		}
		fmt.Fprintf(&b, "- `%s` (%s)\n", line.Commandline, when)
	}

	configuration := view.Configuration()
	if len(configuration) > 0 {
		b.WriteString("\n## Configuration\n\n")
		keys := make([]string, 0, len(configuration))
		for k := range configuration {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- `%s` = `%s`\n", k, configuration[k])
		}
	}

	if t.Version != (domain.VersionFingerprint{}) {
		b.WriteString("\n## Version\n\n")
		fmt.Fprintf(&b, "- **commit**: `%s`", t.Version.Commit)
		if t.Version.ActiveBranch != "" {
			fmt.Fprintf(&b, " on `%s`", t.Version.ActiveBranch)
		}
		b.WriteString("\n")
		if t.Version.Dirty {
			fmt.Fprintf(&b, "- **dirty**, diff `%.12s`\n", t.Version.DiffSHA)
		}
	}

	if t.Host.Hostname != "" || t.Host.OS != "" {
		b.WriteString("\n## Host\n\n")
		fmt.Fprintf(&b, "- **host**: %s (%s/%s)\n", t.Host.Hostname, t.Host.OS, t.Host.Arch)
		if t.Host.User != "" {
			fmt.Fprintf(&b, "- **user**: %s\n", t.Host.User)
		}
		for _, name := range sortedKeys(t.Host.EnvVars) {
			fmt.Fprintf(&b, "- `%s` = `%s`\n", name, t.Host.EnvVars[name])
		}
	}

	stats, err := view.Statistics(ctx)
	if err != nil {
		return "", err
	}
	if stats.Len() > 0 {
		b.WriteString("\n## Statistics\n\n")
		for _, name := range stats.Names() {
			if last, ok := stats.Last(name); ok {
				fmt.Fprintf(&b, "- **%s**: %g (%d samples)\n",
					name, last.Value, len(stats.Series(name)))
			}
		}
	}

	if children, err := app.store.Children(ctx, t.ID); err == nil && len(children) > 0 {
		b.WriteString("\n## Children\n\n")
		for _, child := range children {
			fmt.Fprintf(&b, "- `%s`\n", domain.ShortID(child))
		}
	}

	return b.String(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
