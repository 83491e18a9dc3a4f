// Package sweeper runs the broker's background TTL reclamation (C6): a
// ticker-driven goroutine that periodically sweeps expired value-store
// entries and leases, on top of the eager sweep every lease allocation
// already performs.
package sweeper

import (
	"log/slog"
	"sync"
	"time"

	"github.com/marmos91/statebroker/internal/logger"
)

// Sweepable is satisfied by both pkg/store.Store and pkg/lease.Table.
type Sweepable interface {
	Sweep() int
}

// Config carries the sweeper's only policy knob: how often it ticks.
type Config struct {
	Interval time.Duration
}

const DefaultInterval = 30 * time.Second

// Sweeper owns the background goroutine. Construct with New, run with
// Start, and stop with Stop; the zero value is not usable.
type Sweeper struct {
	interval time.Duration
	store    Sweepable
	lease    Sweepable

	stopCh  chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New constructs a Sweeper over store and lease. If cfg.Interval is zero,
// DefaultInterval is used.
func New(cfg Config, store, lease Sweepable) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		interval: interval,
		store:    store,
		lease:    lease,
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins the background ticker goroutine. It runs until Stop is
// called.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.stopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		logger.Debug("sweeper started", logger.DurationMs(float64(s.interval.Milliseconds())))

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.sweepOnce()
			}
		}
	}()
}

func (s *Sweeper) sweepOnce() {
	items := s.store.Sweep()
	leases := s.lease.Sweep()
	if items > 0 || leases > 0 {
		logger.Debug("sweep completed", slog.Int("items_expired", items), slog.Int("leases_expired", leases))
	}
}

// Stop signals the goroutine to exit and waits for it. Safe to call more
// than once.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	<-s.stopped
}
