package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/epistimio/kleio/internal/adapters"
	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/internal/logging"
	"github.com/epistimio/kleio/pkg/ports"
)

var rootCmd = &cobra.Command{
	Use:   "kleio",
	Short: "Kleiō tracks the execution of computational experiments",
	Long: `Kleiō wraps arbitrary commands and records their command line,
configuration, code version, output and statistics as resumable trials.
Running the same command twice resumes the same trial.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. A first argument that is no known subcommand is
// treated as a command to track, making run the default verb:
// "kleio -- python train.py" and "kleio run -- python train.py" are the
// same invocation.
func Execute() {
	args := os.Args[1:]
	if len(args) > 0 && !isKnownCommand(args[0]) && !strings.HasPrefix(args[0], "-") {
		args = append([]string{"run", "--"}, args...)
	} else if len(args) > 0 && args[0] == "--" {
		args = append([]string{"run"}, args...)
	}

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func isKnownCommand(name string) bool {
	if name == "help" || name == "completion" {
		return true
	}
	for _, c := range rootCmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Explicit configuration file (overrides all other layers)")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase logging verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().Bool("debug", false, "Use the in-memory store, leaving no trace behind")
}

// app bundles what every subcommand needs: the resolved configuration,
// the connected store and a logger.
type app struct {
	cfg    config.Config
	store  ports.Store
	locker ports.DistributedLocker
	log    *slog.Logger
}

// newApp resolves the configuration layers, applies the global flags and
// connects the selected backend.
func newApp(cmd *cobra.Command) (*app, error) {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetCount("verbose")
	debug, _ := cmd.Flags().GetBool("debug")

	if verbose == 0 {
		if raw := os.Getenv(config.EnvVerbosity); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				verbose = n
			}
		}
	}

	cfg, err := config.Resolve(configFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
	}

	store, locker, err := adapters.Open(cfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		store:  store,
		locker: locker,
		log:    logging.New(logging.LevelFromVerbosity(verbose)),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", "err", err)
	}
}

// verbosity re-reads the -v count for forwarding to child processes.
func verbosity(cmd *cobra.Command) int {
	n, _ := cmd.Flags().GetCount("verbose")
	return n
}

// splitTags parses the semicolon-separated --tags value.
func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ";") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
