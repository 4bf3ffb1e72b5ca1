package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
)

// ExpiryClock sweeps expired posts out of the cache on a fixed interval,
// independent of anything the server pushes.
type ExpiryClock struct {
	cache    *PostCache
	clock    clockwork.Clock
	interval time.Duration
	logger   logger.Logger

	mu        sync.Mutex
	scheduler gocron.Scheduler
	onSweep   func(removed []string)
}

func NewExpiryClock(cache *PostCache, clock clockwork.Clock, interval time.Duration, logger logger.Logger) *ExpiryClock {
	return &ExpiryClock{
		cache:    cache,
		clock:    clock,
		interval: interval,
		logger:   logger.WithComponent("ExpiryClock"),
	}
}

// OnSweep registers a callback that receives the ids removed by each sweep.
func (e *ExpiryClock) OnSweep(fn func(removed []string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSweep = fn
}

// Start schedules the sweep. Calling it while running is a no-op.
func (e *ExpiryClock) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scheduler != nil {
		return nil
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(e.clock))
	if err != nil {
		return fmt.Errorf("failed to create expiry scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(e.interval),
		gocron.NewTask(func() {
			e.Sweep()
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("expiry-sweep"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	scheduler.Start()
	e.scheduler = scheduler
	e.logger.Info("Expiry sweep scheduled", "interval", e.interval.String())
	return nil
}

// Sweep removes every post expired as of now.
func (e *ExpiryClock) Sweep() []string {
	removed := e.cache.RemoveExpired(e.clock.Now())
	if len(removed) == 0 {
		return nil
	}

	e.logger.Debug("Expired posts removed", "count", len(removed))

	e.mu.Lock()
	onSweep := e.onSweep
	e.mu.Unlock()
	if onSweep != nil {
		onSweep(removed)
	}
	return removed
}

func (e *ExpiryClock) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler != nil
}

// Stop cancels the schedule; a later Start creates a fresh one.
func (e *ExpiryClock) Stop() error {
	e.mu.Lock()
	scheduler := e.scheduler
	e.scheduler = nil
	e.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop expiry scheduler: %w", err)
	}
	return nil
}
