package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/epistimio/kleio/internal/cmdline"
	"github.com/epistimio/kleio/internal/config"
	"github.com/epistimio/kleio/internal/hostinfo"
	"github.com/epistimio/kleio/internal/vcs"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/observability"
	"github.com/epistimio/kleio/pkg/ports"
	"github.com/epistimio/kleio/pkg/trial"
)

// lockTTL bounds the register-or-resume critical section.
const lockTTL = 30 * time.Second

// Options tune one Build call.
type Options struct {
	// Tags to attach to the trial once registered.
	Tags []string

	// AllowCodeChange accepts a changed VCS fingerprint on resume.
	AllowCodeChange bool
	// AllowEnvChange accepts a changed host fingerprint on resume.
	AllowEnvChange bool
	// AllowAnyChange accepts every conflict kind.
	AllowAnyChange bool

	// SwitchOver forces a broken or stuck trial back to executable
	// before reserving.
	SwitchOver bool
}

func (o Options) allows(kind domain.ConflictKind) bool {
	if o.AllowAnyChange {
		return true
	}
	switch kind {
	case domain.ConflictCode:
		return o.AllowCodeChange
	case domain.ConflictEnv:
		return o.AllowEnvChange
	}
	return false
}

// Producer turns command lines into registered, reservable trials.
type Producer struct {
	store       ports.Store
	locker      ports.DistributedLocker
	cfg         config.Config
	log         *slog.Logger
	metrics     *observability.Metrics
	transformer Transformer
}

// New builds a producer. metrics may be nil.
func New(store ports.Store, locker ports.DistributedLocker, cfg config.Config,
	log *slog.Logger, metrics *observability.Metrics) *Producer {
	return &Producer{
		store:       store,
		locker:      locker,
		cfg:         cfg,
		log:         log,
		metrics:     metrics,
		transformer: Identity(),
	}
}

// SetTransformer replaces the configuration hook applied before hashing.
func (p *Producer) SetTransformer(t Transformer) {
	if t != nil {
		p.transformer = t
	}
}

// Build registers a trial for the given command line, or resumes the
// existing one when the identity hash matches a registered trial. On
// resume, the stored version and host fingerprints are compared against
// the current environment; differences abort with a *domain.ConflictError
// unless the options allow them.
func (p *Producer) Build(ctx context.Context, commandline []string, opts Options) (*trial.Handle, error) {
	if len(commandline) == 0 {
		return nil, fmt.Errorf("empty command line")
	}

	parser := cmdline.New()
	configuration, err := parser.Parse(commandline)
	if err != nil {
		return nil, err
	}
	configuration = p.transformer.Transform(configuration)

	t := domain.NewTrial(commandline, configuration, domain.Refers{})
	t.Version = vcs.Fingerprint(commandline[0])
	t.Host = hostinfo.Fingerprint(p.cfg.HostEnvVars)

	h, err := p.registerOrResume(ctx, t, opts)
	if err != nil {
		return nil, err
	}
	if len(opts.Tags) > 0 {
		if err := h.AddTags(ctx, opts.Tags...); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// registerOrResume settles who owns the trial record. The lock keeps a
// concurrent producer from racing between our failed Register and the
// winner's record becoming loadable.
func (p *Producer) registerOrResume(ctx context.Context, t *domain.Trial, opts Options) (*trial.Handle, error) {
	unlock, err := p.locker.Lock(ctx, "producer:"+t.ID, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock trial %.7s: %w", t.ID, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			p.log.Warn("failed to release trial lock", "trial", domain.ShortID(t.ID), "err", err)
		}
	}()

	err = p.store.Register(ctx, t)
	switch {
	case err == nil:
		p.log.Info("registered new trial", "trial", t.ShortID())
		h := trial.NewHandle(t, p.store)
		if err := h.SaveReport(ctx); err != nil {
			return nil, err
		}
		return h, nil

	case errors.Is(err, domain.ErrDuplicateTrial):
		p.log.Debug("trial already registered, resuming", "trial", t.ShortID())
		return p.resume(ctx, t, opts)

	default:
		return nil, err
	}
}

// resume loads the registered trial and runs conflict detection against
// the fingerprints observed now.
func (p *Producer) resume(ctx context.Context, fresh *domain.Trial, opts Options) (*trial.Handle, error) {
	stored, err := p.store.Load(ctx, fresh.ID)
	if err != nil {
		return nil, err
	}

	var conflicts []domain.Conflict
	conflicts = append(conflicts, domain.DiffVersions(stored.Version, fresh.Version)...)
	conflicts = append(conflicts, domain.DiffHosts(stored.Host, fresh.Host)...)

	blocking := conflicts[:0]
	for _, c := range conflicts {
		if opts.allows(c.Kind) {
			p.log.Info("allowed conflict on resume",
				"trial", stored.ShortID(), "kind", string(c.Kind), "field", c.Field)
			continue
		}
		blocking = append(blocking, c)
	}
	if len(blocking) > 0 {
		return nil, &domain.ConflictError{TrialID: stored.ID, Conflicts: blocking}
	}

	return trial.Load(ctx, p.store, stored.ID)
}

// Reserve claims the trial for execution, applying the switch-over option
// when the trial is stuck in a non-reservable state that allows it.
func (p *Producer) Reserve(ctx context.Context, h *trial.Handle, opts Options) error {
	if opts.SwitchOver {
		status, err := h.Status(ctx)
		if err != nil {
			return err
		}
		if status.CanTransition(domain.StatusSwitchover) {
			if err := h.Switchover(ctx); err != nil {
				return err
			}
		}
	}

	err := h.Reserve(ctx)
	if p.metrics != nil {
		outcome := "reserved"
		switch {
		case errors.Is(err, domain.ErrRaceCondition):
			outcome = "race"
		case errors.Is(err, domain.ErrNotReservable):
			outcome = "not_reservable"
		case err != nil:
			outcome = "error"
		}
		p.metrics.Reservations.WithLabelValues(outcome).Inc()
	}
	if errors.Is(err, domain.ErrNotReservable) {
		status, serr := h.Status(ctx)
		if serr == nil && status == domain.StatusBroken {
			return fmt.Errorf("%w; use switchover to force re-execution", err)
		}
	}
	return err
}
