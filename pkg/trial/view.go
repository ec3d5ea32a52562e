package trial

import (
	"context"
	"time"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
)

// View is a read-only, lineage-aware window on a trial. For a branched
// trial, every ancestor's history is clipped at its branch point, so the
// view shows exactly the timeline the lineage actually lived.
type View struct {
	trial  *domain.Trial
	store  ports.TrialStore
	parent *View
	// bound clips this trial's own events; zero means unbounded.
	bound time.Time
}

// NewView opens a view on a trial, resolving its lineage recursively.
func NewView(ctx context.Context, store ports.TrialStore, trialID string) (*View, error) {
	return newBoundedView(ctx, store, trialID, time.Time{})
}

func newBoundedView(ctx context.Context, store ports.TrialStore, trialID string, bound time.Time) (*View, error) {
	t, err := store.Load(ctx, trialID)
	if err != nil {
		return nil, err
	}

	v := &View{trial: t, store: store, bound: bound}
	if t.Refers.ParentID != "" {
		parent, err := newBoundedView(ctx, store, t.Refers.ParentID, t.Refers.Timestamp)
		if err != nil {
			return nil, err
		}
		v.parent = parent
	}
	return v, nil
}

// Trial returns the immutable record.
func (v *View) Trial() *domain.Trial { return v.trial }

// Parent returns the parent view, nil for a root trial.
func (v *View) Parent() *View { return v.parent }

// events reads one of this trial's own streams, clipped at the bound.
func (v *View) events(ctx context.Context, attr domain.Attribute) ([]domain.Event, error) {
	events, err := v.store.Events(ctx, v.trial.ID, attr, 0)
	if err != nil {
		return nil, err
	}
	return domain.ClipEvents(events, v.bound), nil
}

// lineageEvents concatenates the ancestors' clipped streams with ours,
// oldest lineage first.
func (v *View) lineageEvents(ctx context.Context, attr domain.Attribute) ([]domain.Event, error) {
	var inherited []domain.Event
	if v.parent != nil {
		var err error
		inherited, err = v.parent.lineageEvents(ctx, attr)
		if err != nil {
			return nil, err
		}
	}
	own, err := v.events(ctx, attr)
	if err != nil {
		return nil, err
	}
	return append(inherited, own...), nil
}

// Status replays this trial's own status stream.
func (v *View) Status(ctx context.Context) (domain.Status, error) {
	events, err := v.events(ctx, domain.AttrStatus)
	if err != nil {
		return "", err
	}
	item, _, ok := domain.ReplayItem(events)
	if !ok {
		return domain.StatusNew, nil
	}
	return domain.Status(item), nil
}

// StartTime is the runtime timestamp of the first status event; zero for
// a never-touched trial.
func (v *View) StartTime(ctx context.Context) (time.Time, error) {
	events, err := v.events(ctx, domain.AttrStatus)
	if err != nil || len(events) == 0 {
		return time.Time{}, err
	}
	return events[0].RuntimeAt, nil
}

// EndTime is the runtime timestamp of the last status event.
func (v *View) EndTime(ctx context.Context) (time.Time, error) {
	events, err := v.events(ctx, domain.AttrStatus)
	if err != nil || len(events) == 0 {
		return time.Time{}, err
	}
	return events[len(events)-1].RuntimeAt, nil
}

// Stdout returns the captured stdout of the whole lineage.
func (v *View) Stdout(ctx context.Context) ([]string, error) {
	return v.outputLines(ctx, domain.AttrStdout)
}

// Stderr returns the captured stderr of the whole lineage.
func (v *View) Stderr(ctx context.Context) ([]string, error) {
	return v.outputLines(ctx, domain.AttrStderr)
}

func (v *View) outputLines(ctx context.Context, attr domain.Attribute) ([]string, error) {
	events, err := v.lineageEvents(ctx, attr)
	if err != nil {
		return nil, err
	}
	return domain.ReplayList(events)
}

// Tags replays this trial's own tag stream (tags are not inherited).
func (v *View) Tags(ctx context.Context) ([]string, error) {
	events, err := v.store.Events(ctx, v.trial.ID, domain.AttrTags, 0)
	if err != nil {
		return nil, err
	}
	return domain.ReplayList(events)
}

// Statistics replays the lineage's statistic streams into one view.
func (v *View) Statistics(ctx context.Context) (*domain.Statistics, error) {
	events, err := v.lineageEvents(ctx, domain.AttrStatistics)
	if err != nil {
		return nil, err
	}
	return domain.ParseStatistics(events)
}

// Configuration overlays the lineage configurations, oldest first, so a
// branch sees its overrides on top of everything it inherited.
func (v *View) Configuration() map[string]string {
	merged := map[string]string{}
	if v.parent != nil {
		merged = v.parent.Configuration()
	}
	for k, val := range v.trial.Configuration {
		merged[k] = val
	}
	return merged
}

// TimedCommandline is one lineage step: when it started and what ran.
type TimedCommandline struct {
	StartTime   time.Time
	Commandline string
}

// Commandlines lists the command line of every lineage step, oldest
// first.
func (v *View) Commandlines(ctx context.Context) ([]TimedCommandline, error) {
	var lines []TimedCommandline
	if v.parent != nil {
		var err error
		lines, err = v.parent.Commandlines(ctx)
		if err != nil {
			return nil, err
		}
	}
	start, err := v.StartTime(ctx)
	if err != nil {
		return nil, err
	}
	return append(lines, TimedCommandline{
		StartTime:   start,
		Commandline: v.trial.CommandlineString(),
	}), nil
}

// Versions lists the version fingerprint of every lineage step, oldest
// first.
func (v *View) Versions() []domain.VersionFingerprint {
	var versions []domain.VersionFingerprint
	if v.parent != nil {
		versions = v.parent.Versions()
	}
	return append(versions, v.trial.Version)
}

// Hosts lists the host fingerprint of every lineage step, oldest first.
func (v *View) Hosts() []domain.HostFingerprint {
	var hosts []domain.HostFingerprint
	if v.parent != nil {
		hosts = v.parent.Hosts()
	}
	return append(hosts, v.trial.Host)
}
