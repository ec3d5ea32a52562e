package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/epistimio/kleio/internal/cmdline"
	"github.com/epistimio/kleio/internal/hostinfo"
	"github.com/epistimio/kleio/internal/vcs"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/trial"
)

// BranchOptions tune one Branch call.
type BranchOptions struct {
	// Timestamp is the branch point in the parent's timeline. Zero means
	// the parent's end time: the child continues from where the parent
	// stopped.
	Timestamp time.Time

	// Tags to attach to the child trial.
	Tags []string
}

// Branch forks a child trial from a registered parent. The child's
// command line is the parent's with the override arguments overlaid
// through the remembered template, and its history starts from the
// parent's, clipped at the branch point.
func (p *Producer) Branch(ctx context.Context, parentID string, overrides []string, opts BranchOptions) (*trial.Handle, error) {
	fullID, err := p.store.Resolve(ctx, parentID)
	if err != nil {
		return nil, err
	}
	parent, err := p.store.Load(ctx, fullID)
	if err != nil {
		return nil, err
	}

	timestamp := opts.Timestamp
	if timestamp.IsZero() {
		view, err := trial.NewView(ctx, p.store, fullID)
		if err != nil {
			return nil, err
		}
		timestamp, err = view.EndTime(ctx)
		if err != nil {
			return nil, err
		}
		if timestamp.IsZero() {
			return nil, fmt.Errorf("trial %.7s has no history to branch from", fullID)
		}
	}

	parser := cmdline.New()
	if _, err := parser.Parse(parent.Commandline); err != nil {
		return nil, err
	}
	overlaid := map[string]string{}
	if len(overrides) > 0 {
		if _, err := parser.Parse(overrides); err != nil {
			return nil, err
		}
		overlaid = parser.Configuration()
	}

	commandline := parser.Format(overlaid)
	configuration := p.transformer.Transform(parser.Configuration())

	child := domain.NewTrial(commandline, configuration, domain.Refers{
		ParentID:  fullID,
		Timestamp: timestamp.UTC(),
	})
	child.Version = vcs.Fingerprint(commandline[0])
	child.Host = hostinfo.Fingerprint(p.cfg.HostEnvVars)

	if err := p.store.Register(ctx, child); err != nil {
		if errors.Is(err, domain.ErrDuplicateTrial) {
			return nil, fmt.Errorf("%w: branch already exists as %.7s", err, child.ID)
		}
		return nil, err
	}
	p.log.Info("branched trial",
		"parent", domain.ShortID(fullID), "child", child.ShortID(),
		"timestamp", timestamp.UTC().Format(time.RFC3339))

	h := trial.NewHandle(child, p.store)
	if err := h.SaveReport(ctx); err != nil {
		return nil, err
	}
	if len(opts.Tags) > 0 {
		if err := h.AddTags(ctx, opts.Tags...); err != nil {
			return nil, err
		}
	}

	// A resumable parent is retired: the child lineage supersedes it. A
	// completed or running parent keeps its status.
	if parentHandle, err := trial.Load(ctx, p.store, fullID); err == nil {
		if err := parentHandle.MarkBranched(ctx); err != nil &&
			!errors.Is(err, domain.ErrInvalidTransition) &&
			!errors.Is(err, domain.ErrNotReservable) {
			p.log.Warn("failed to mark parent branched",
				"parent", domain.ShortID(fullID), "err", err)
		}
	}

	return h, nil
}
