package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/madankumar045/airvitaweb/internal/airquality"
	"github.com/madankumar045/airvitaweb/internal/config"
	"github.com/madankumar045/airvitaweb/internal/location"
)

// Acquirer is the part of the service the scheduler drives.
type Acquirer interface {
	Acquire(ctx context.Context, id airquality.Identity, resolver airquality.Resolver) airquality.FetchState
}

// Scheduler periodically acquires readings for configured watch locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Acquirer
	locations []config.WatchLocation
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. timeout bounds each location's acquisition.
func New(locations []config.WatchLocation, interval, timeout time.Duration, service Acquirer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		locations: locations,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Identity is the identity a watch location's readings are kept under.
func Identity(label string) airquality.Identity {
	return airquality.Identity("watch:" + label)
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Info("scheduler: no watch locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
		s.logger.Warn("scheduler: interval under a minute; using default", "interval", s.interval, "every_minutes", minutes)
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: started", "locations", len(s.locations), "every_minutes", minutes)
	return nil
}

// RunOnce acquires every watch location concurrently and waits for all.
func (s *Scheduler) RunOnce() {
	s.logger.Debug("scheduler: running watch job")

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		wg.Add(1)
		go func(loc config.WatchLocation) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			id := Identity(loc.Label)
			state := s.service.Acquire(ctx, id, location.Fixed(loc.Coordinates))
			if state.Status == airquality.StatusError && state.Error != nil {
				s.logger.Warn("scheduler: acquisition failed",
					"identity", id,
					"kind", state.Error.Kind,
				)
			}
		}(loc)
	}
	wg.Wait()
	s.logger.Debug("scheduler: completed watch job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
