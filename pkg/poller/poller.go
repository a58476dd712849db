// Package poller runs the poll cycle of configured instances and keeps their
// last-known-good results.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/notify"
	"github.com/ogulcanaydogan/norway-alerts/pkg/pipeline"
	"github.com/ogulcanaydogan/norway-alerts/pkg/render"
	"github.com/ogulcanaydogan/norway-alerts/pkg/sources"
	"github.com/ogulcanaydogan/norway-alerts/pkg/storage"
)

// DefaultInterval is the time between poll cycles.
const DefaultInterval = 30 * time.Minute

// DefaultCycleTimeout bounds one poll cycle across all of an instance's
// sources. Single requests are bounded by the HTTP client.
const DefaultCycleTimeout = 2 * time.Minute

// persistTimeout bounds the storage writes that follow a successful fetch.
const persistTimeout = 5 * time.Second

// MyAreaSuffix is appended to the id of the municipality-filtered sensor.
const MyAreaSuffix = "_my_area"

// Instance is one configured alert watch.
type Instance struct {
	ID          string
	Name        string
	WarningType model.WarningType
	Lang        string
	TestMode    bool
	Location    pipeline.Location
	Filter      string
	CAPFormat   bool
	SortByLevel bool
	Display     render.Options

	Notifications bool
	Threshold     notify.Threshold
}

// Sensor is the published state of an instance.
type Sensor struct {
	ID          string           `json:"id"`
	InstanceID  string           `json:"instance_id"`
	Name        string           `json:"name"`
	State       int              `json:"state"`
	Available   bool             `json:"available"`
	LastUpdated *time.Time       `json:"last_updated"`
	LastError   string           `json:"last_error,omitempty"`
	Attributes  *pipeline.Result `json:"attributes"`
}

// Poller fetches the alerts of one instance and derives its sensors.
type Poller struct {
	inst      Instance
	sources   []sources.Source
	store     storage.Storage
	notifiers []notify.Notifier
	logger    *slog.Logger
	now       func() time.Time
	timeout   time.Duration

	// refreshMu serializes poll cycles; mu guards the fields below.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	snapshot  *model.Snapshot
	lastErr   error
	detector  *notify.Detector
}

// New creates a poller. store may be nil for one-shot use.
func New(inst Instance, srcs []sources.Source, store storage.Storage, notifiers []notify.Notifier, logger *slog.Logger) *Poller {
	return &Poller{
		inst:      inst,
		sources:   srcs,
		store:     store,
		notifiers: notifiers,
		logger:    logger.With("instance", inst.ID),
		now:       time.Now,
		timeout:   DefaultCycleTimeout,
		detector:  notify.NewDetector(inst.ID, inst.Threshold, nil),
	}
}

// WithClock replaces the clock used for statuses and timestamps.
func (p *Poller) WithClock(now func() time.Time) *Poller {
	p.now = now
	return p
}

// WithTimeout sets the deadline of one poll cycle.
func (p *Poller) WithTimeout(d time.Duration) *Poller {
	if d > 0 {
		p.timeout = d
	}
	return p
}

// Instance returns the configuration of the poller.
func (p *Poller) Instance() Instance { return p.inst }

// Restore loads the persisted snapshot and change-detection state. It waits
// for a running poll cycle to finish.
func (p *Poller) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	snap, err := p.store.LatestSnapshot(ctx, p.inst.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("restore snapshot: %w", err)
	}
	states, err := p.store.LoadAlertStates(ctx, p.inst.ID)
	if err != nil {
		return fmt.Errorf("restore alert states: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if snap != nil {
		p.snapshot = snap
	}
	p.detector = notify.NewDetector(p.inst.ID, p.inst.Threshold, states)
	return nil
}

// Refresh runs one poll cycle. On failure the previous snapshot is kept and the
// error is returned and remembered as the sensor's last error.
func (p *Poller) Refresh(ctx context.Context) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	now := p.now()
	lists := make([][]model.Alert, 0, len(p.sources)+1)
	if p.inst.TestMode {
		lists = append(lists, []model.Alert{sources.TestAlert(p.inst.WarningType, p.inst.Lang, now)})
	}
	for _, src := range p.sources {
		alerts, err := src.Fetch(fetchCtx)
		if err != nil {
			if fetchCtx.Err() != nil && !errors.Is(err, model.ErrUpstreamUnavailable) {
				err = model.NewSourceError(src.Name(), model.ErrUpstreamUnavailable, err)
			}
			p.fail(err)
			p.logger.Warn("poll failed, keeping previous result", "source", src.Name(), "error", err)
			return err
		}
		lists = append(lists, alerts)
	}

	cancel()

	// The fetch may have used most of its deadline; persistence gets its own.
	ctx, cancelPersist := context.WithTimeout(ctx, persistTimeout)
	defer cancelPersist()

	snap := &model.Snapshot{InstanceID: p.inst.ID, Alerts: pipeline.Merge(lists...), FetchedAt: now}
	if p.store != nil {
		if err := p.store.SaveSnapshot(ctx, snap); err != nil {
			p.logger.Error("persist snapshot", "error", err)
		}
	}

	p.mu.Lock()
	p.snapshot = snap
	p.lastErr = nil
	p.mu.Unlock()

	p.logger.Info("poll complete", "alerts", len(snap.Alerts))

	if p.inst.Notifications {
		p.notify(ctx, snap.Alerts, now)
	}
	return nil
}

func (p *Poller) fail(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

// notify runs change detection over the per-id records and hands the resulting
// notifications on. Records sharing a master id are tracked separately so that
// a later escalation is still announced.
func (p *Poller) notify(ctx context.Context, alerts []model.Alert, now time.Time) {
	p.mu.RLock()
	detector := p.detector
	p.mu.RUnlock()

	found := detector.Detect(alerts, now)
	if p.store != nil {
		if err := p.store.SaveAlertStates(ctx, p.inst.ID, detector.State()); err != nil {
			p.logger.Error("persist alert states", "error", err)
		}
	}
	for i := range found {
		n := found[i]
		if p.store != nil {
			if err := p.store.RecordNotification(ctx, &n); err != nil {
				p.logger.Error("record notification", "alert_id", n.AlertID, "error", err)
			}
		}
		notify.Dispatch(ctx, p.logger, p.notifiers, n)
	}
}

// Sensors computes the instance's sensors at the current time: the main sensor
// and, when a municipality filter is set, the filtered "my area" sensor.
func (p *Poller) Sensors() ([]Sensor, error) {
	p.mu.RLock()
	snap := p.snapshot
	lastErr := p.lastErr
	p.mu.RUnlock()

	main := Sensor{ID: p.inst.ID, InstanceID: p.inst.ID, Name: p.inst.Name}
	out := []Sensor{main}
	if p.inst.Filter != "" {
		out = append(out, Sensor{ID: p.inst.ID + MyAreaSuffix, InstanceID: p.inst.ID, Name: p.inst.Name + " (my area)"})
	}

	for i := range out {
		if lastErr != nil {
			out[i].LastError = lastErr.Error()
		}
		if snap == nil {
			continue
		}
		opts := p.options("")
		if i == 1 {
			opts = p.options(p.inst.Filter)
		}
		res, err := pipeline.Aggregate(snap.Alerts, opts, p.now())
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", out[i].ID, err)
		}
		fetched := snap.FetchedAt
		out[i].Available = true
		out[i].State = res.ActiveAlerts
		out[i].LastUpdated = &fetched
		out[i].Attributes = &res
	}
	return out, nil
}

func (p *Poller) options(filter string) pipeline.Options {
	return pipeline.Options{
		Location:    p.inst.Location,
		Filter:      filter,
		CAPFormat:   p.inst.CAPFormat,
		SortByLevel: p.inst.SortByLevel,
		Display:     p.inst.Display,
	}
}

// Run refreshes immediately and then on every interval until ctx is done.
// onRefresh receives the sensors after every cycle, successful or not.
func (p *Poller) Run(ctx context.Context, interval time.Duration, onRefresh func(context.Context, []Sensor)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = p.Refresh(ctx)
		if onRefresh != nil {
			if sensors, err := p.Sensors(); err != nil {
				p.logger.Error("compute sensors", "error", err)
			} else {
				onRefresh(ctx, sensors)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
