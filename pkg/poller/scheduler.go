package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// Sink receives the sensors of an instance after every poll cycle.
type Sink interface {
	Name() string
	Publish(ctx context.Context, sensors []Sensor) error
}

// Scheduler drives a set of pollers and fans their sensors out to sinks.
type Scheduler struct {
	pollers  []*Poller
	byID     map[string]*Poller
	sinks    []Sink
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. Instance ids must be unique.
func NewScheduler(pollers []*Poller, sinks []Sink, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	byID := make(map[string]*Poller, len(pollers))
	for _, p := range pollers {
		id := p.Instance().ID
		if _, exists := byID[id]; exists {
			return nil, model.InvalidConfig("instance %q already registered", id)
		}
		byID[id] = p
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		pollers:  pollers,
		byID:     byID,
		sinks:    sinks,
		interval: interval,
		logger:   logger,
	}, nil
}

// AddSink registers a sink. It must be called before Run.
func (s *Scheduler) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// Restore loads persisted state into every poller.
func (s *Scheduler) Restore(ctx context.Context) error {
	for _, p := range s.pollers {
		if err := p.Restore(ctx); err != nil {
			return fmt.Errorf("instance %s: %w", p.Instance().ID, err)
		}
	}
	return nil
}

// Run starts one goroutine per poller and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range s.pollers {
		wg.Add(1)
		go func(p *Poller) {
			defer wg.Done()
			p.Run(ctx, s.interval, s.publish)
		}(p)
	}
	s.logger.Info("scheduler started", "instances", len(s.pollers), "interval", s.interval.String())
	wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Refresh runs an immediate poll cycle for one instance and publishes the
// resulting sensors, even when the cycle failed.
func (s *Scheduler) Refresh(ctx context.Context, instanceID string) ([]Sensor, error) {
	p, ok := s.byID[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %q not found", instanceID)
	}
	refreshErr := p.Refresh(ctx)
	sensors, err := p.Sensors()
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sensors)
	return sensors, refreshErr
}

// Sensors returns the sensors of every instance in configuration order.
func (s *Scheduler) Sensors() ([]Sensor, error) {
	var out []Sensor
	for _, p := range s.pollers {
		sensors, err := p.Sensors()
		if err != nil {
			return nil, err
		}
		out = append(out, sensors...)
	}
	return out, nil
}

// Sensor returns one sensor by id.
func (s *Scheduler) Sensor(id string) (Sensor, bool, error) {
	all, err := s.Sensors()
	if err != nil {
		return Sensor{}, false, err
	}
	for _, sn := range all {
		if sn.ID == id {
			return sn, true, nil
		}
	}
	return Sensor{}, false, nil
}

// HasInstance reports whether an instance id is scheduled.
func (s *Scheduler) HasInstance(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *Scheduler) publish(ctx context.Context, sensors []Sensor) {
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, sensors); err != nil {
			s.logger.Error("failed to publish sensors", "sink", sink.Name(), "error", err)
		}
	}
}
