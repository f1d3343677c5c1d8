package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/simple-weather/simple-weather/internal/weather"
)

// Scheduler converts the collection cadence into one Collector tick per
// firing. It is the only component aware of the trigger interval; the
// collector and the store just see discrete calls.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector *weather.Collector
	view      *weather.LatestView
	cities    []string
	interval  time.Duration
}

func New(cities []string, interval time.Duration, collector *weather.Collector, view *weather.LatestView) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		collector: collector,
		view:      view,
		cities:    cities,
		interval:  interval,
	}
}

// Start schedules the periodic collection job and starts the underlying
// scheduler asynchronously. The first tick runs immediately.
func (s *Scheduler) Start() error {
	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 600
	}

	_, err := s.scheduler.Every(seconds).Seconds().StartImmediately().Do(s.tick)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels future ticks. A tick already in
// flight runs to completion.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) tick() {
	if len(s.cities) == 0 {
		log.Println("scheduler: WARN: no cities selected; skipping tick")
		return
	}

	// Bound the tick by the interval plus the per-request timeout so an
	// unresponsive provider cannot pile ticks on top of each other.
	ctx, cancel := context.WithTimeout(context.Background(), s.interval+30*time.Second)
	defer cancel()

	if err := s.collector.Collect(ctx, s.cities); err != nil {
		// Store write failures end the tick; the next tick is the retry.
		log.Printf("scheduler: collection tick failed: %v", err)
		return
	}

	// A finished collection supersedes every memoized latest result;
	// readers must see the rows this tick just wrote.
	s.view.Reset()

	rows, err := s.view.Latest(ctx, s.cities)
	if err != nil {
		log.Printf("scheduler: latest query failed: %v", err)
		return
	}
	log.Printf("scheduler: tick complete; %d of %d cities fresh", len(rows), len(s.cities))
}
