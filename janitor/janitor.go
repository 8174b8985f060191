// Package janitor runs the retention sweep on a cron schedule, deleting
// terminal job records older than the retention window.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Sweeper is the cleanup operation the janitor drives. Implemented by the
// engine.
type Sweeper interface {
	Cleanup(ctx context.Context, retention time.Duration) (int, error)
}

// sweepTimeout bounds a single sweep.
const sweepTimeout = time.Minute

// cronParser supports standard 5-field cron and descriptors like "@hourly"
// or "@every 30m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Option configures a Janitor.
type Option func(*Janitor)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Janitor) { j.logger = l }
}

// Janitor fires the sweeper on its schedule until stopped.
type Janitor struct {
	sweeper   Sweeper
	schedule  cronlib.Schedule
	retention time.Duration
	logger    *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Janitor. schedule is a cron expression; retention is how
// long terminal records are kept.
func New(sweeper Sweeper, schedule string, retention time.Duration, opts ...Option) (*Janitor, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("arena/janitor: parse schedule %q: %w", schedule, err)
	}

	j := &Janitor{
		sweeper:   sweeper,
		schedule:  sched,
		retention: retention,
		logger:    slog.Default(),
		stopCh:    make(chan struct{}),
	}
	for _, o := range opts {
		o(j)
	}
	return j, nil
}

// Start launches the sweep loop.
func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.loop()
	j.logger.Info("janitor started",
		slog.Duration("retention", j.retention),
		slog.Time("next_sweep", j.schedule.Next(time.Now().UTC())),
	)
}

// Stop signals the loop to exit and waits for it.
func (j *Janitor) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("janitor stopped")
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	for {
		next := j.schedule.Next(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-j.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := j.sweeper.Cleanup(ctx, j.retention)
	if err != nil {
		j.logger.Error("sweep failed", slog.String("error", err.Error()))
		return
	}
	if removed > 0 {
		j.logger.Info("sweep finished", slog.Int("removed", removed))
	}
}

// RunOnce performs a single sweep outside the schedule.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	return j.sweeper.Cleanup(ctx, j.retention)
}
