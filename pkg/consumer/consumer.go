package consumer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/observability"
	"github.com/epistimio/kleio/pkg/ports"
	"github.com/epistimio/kleio/pkg/trial"
)

// Options tune one Consume call.
type Options struct {
	// Capture suppresses echoing the child's output to the terminal;
	// output still goes to the event log.
	Capture bool

	// Verbosity is forwarded to the child via KLEIO_VERBOSITY.
	Verbosity int
}

// Consumer executes reserved trials as child processes, streaming their
// output into the event log and keeping the reservation alive with
// heartbeats.
type Consumer struct {
	store    ports.Store
	cfg      config.Config
	log      *slog.Logger
	metrics  *observability.Metrics
	workerID string
}

// New builds a consumer with a fresh worker identity. metrics may be nil.
func New(store ports.Store, cfg config.Config, log *slog.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		store:    store,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		workerID: uuid.NewString(),
	}
}

// WorkerID identifies this consumer instance in logs.
func (c *Consumer) WorkerID() string { return c.workerID }

// Consume runs a reserved trial to completion. The final status depends
// on how the child ends: exit 0 is completed, a non-zero exit is broken,
// SIGINT suspends, and a canceled context interrupts.
func (c *Consumer) Consume(ctx context.Context, h *trial.Handle, opts Options) error {
	if err := h.Run(ctx); err != nil {
		return err
	}
	start := time.Now()
	log := c.log.With("trial", h.ShortID(), "worker", c.workerID)
	log.Info("trial running", "commandline", h.Trial().CommandlineString())

	workDir, err := c.workingDir(h.ID())
	if err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	cmd := exec.CommandContext(runCtx, h.Trial().Commandline[0], h.Trial().Commandline[1:]...)
	cmd.Dir = workDir
	cmd.Env = c.childEnv(h.ID(), opts.Verbosity)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to pipe stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to pipe stderr: %w", err)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	if err := cmd.Start(); err != nil {
		if berr := h.Broken(ctx); berr != nil {
			log.Warn("failed to mark trial broken", "err", berr)
		}
		return fmt.Errorf("failed to start command: %w", err)
	}

	// The scanners log with a context that survives stop(): once the
	// child dies the pipes close and the scanners finish on EOF, and the
	// lines they already read must still land in the event log.
	logCtx := context.WithoutCancel(ctx)
	var streams sync.WaitGroup
	streams.Add(2)
	go c.stream(logCtx, &streams, h, domain.AttrStdout, stdout, os.Stdout, opts.Capture)
	go c.stream(logCtx, &streams, h, domain.AttrStderr, stderr, os.Stderr, opts.Capture)

	// lostClaim closes when a heartbeat loses against an external status
	// change, which is the signal to stop the child.
	lostClaim := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go c.heartbeat(runCtx, &wg, h, lostClaim)

	interrupted := false
	externallyStopped := false
	done := make(chan error, 1)
	go func() {
		// Wait closes the pipes; both must be fully drained first.
		streams.Wait()
		done <- cmd.Wait()
	}()

	var waitErr error
wait:
	for {
		select {
		case waitErr = <-done:
			break wait
		case <-interrupts:
			interrupted = true
			log.Info("interrupt received, stopping trial")
			if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
				stop()
			}
		case <-lostClaim:
			externallyStopped = true
			log.Info("trial status changed externally, stopping child")
			stop()
		case <-ctx.Done():
			stop()
		}
	}
	stop()
	wg.Wait()

	if c.metrics != nil {
		c.metrics.ObserveRun(start)
	}

	// Use a fresh context for the final transition: the run context may
	// already be canceled.
	finalCtx := context.WithoutCancel(ctx)
	return c.settle(finalCtx, h, log, waitErr, interrupted, externallyStopped, ctx.Err() != nil)
}

// settle records the terminal status matching how the child ended.
func (c *Consumer) settle(ctx context.Context, h *trial.Handle, log *slog.Logger,
	waitErr error, interrupted, externallyStopped, canceled bool) error {

	switch {
	case externallyStopped:
		// The external actor already wrote the status; nothing to record.
		status, err := h.Status(ctx)
		if err != nil {
			return err
		}
		log.Info("trial stopped externally", "status", string(status))
		return nil

	case interrupted:
		if err := h.Suspend(ctx); err != nil {
			return err
		}
		log.Info("trial suspended")
		return nil

	case canceled:
		if err := h.Interrupt(ctx); err != nil {
			return err
		}
		log.Info("trial interrupted")
		return nil

	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			if err := h.Broken(ctx); err != nil {
				return err
			}
			log.Warn("trial broken", "exit_code", exitErr.ExitCode())
			return fmt.Errorf("command exited with code %d; use switchover to retry",
				exitErr.ExitCode())
		}
		if err := h.Broken(ctx); err != nil {
			return err
		}
		return waitErr

	default:
		if err := h.Complete(ctx); err != nil {
			return err
		}
		log.Info("trial completed")
		return nil
	}
}

// stream copies one output pipe into the event log, line by line.
func (c *Consumer) stream(ctx context.Context, wg *sync.WaitGroup, h *trial.Handle,
	attr domain.Attribute, r io.Reader, echo io.Writer, capture bool) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !capture {
			fmt.Fprintln(echo, line)
		}
		if err := h.LogOutput(ctx, attr, line); err != nil {
			c.log.Warn("failed to log output line", "attribute", string(attr), "err", err)
			continue
		}
		if c.metrics != nil {
			c.metrics.EventsLogged.WithLabelValues(string(attr)).Inc()
		}
	}
}

// heartbeat refreshes the running claim until the context ends. A CAS
// failure means someone else changed the status; the channel close tells
// the main loop to stop the child.
func (c *Consumer) heartbeat(ctx context.Context, wg *sync.WaitGroup, h *trial.Handle, lostClaim chan<- struct{}) {
	defer wg.Done()

	interval := c.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Heartbeat(ctx); err != nil {
				if errors.Is(err, domain.ErrRaceCondition) {
					close(lostClaim)
					return
				}
				c.log.Warn("heartbeat failed", "trial", h.ShortID(), "err", err)
				continue
			}
			if c.metrics != nil {
				c.metrics.Heartbeats.Inc()
			}
		}
	}
}

// workingDir creates the per-trial working directory.
func (c *Consumer) workingDir(trialID string) (string, error) {
	dir := filepath.Join(c.cfg.WorkingDir, "kleio", trialID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working dir: %w", err)
	}
	return dir, nil
}

// childEnv extends the inherited environment with the variables the
// tracked process needs to reach its own trial.
func (c *Consumer) childEnv(trialID string, verbosity int) []string {
	env := append(os.Environ(),
		config.EnvTrialID+"="+trialID,
		config.EnvDBType+"="+c.cfg.Database.Type,
		config.EnvDBName+"="+c.cfg.Database.Name,
		config.EnvVerbosity+"="+strconv.Itoa(verbosity),
	)
	if c.cfg.Database.Address != "" {
		env = append(env, config.EnvDBAddress+"="+c.cfg.Database.Address)
	}
	return env
}
