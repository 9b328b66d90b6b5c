// Package scheduler triggers the daily run inside the long-running server.
package scheduler

import (
	"context"
	"errors"
	"time"
	"wakaproof/internal/providers"
	"wakaproof/internal/services"
	"wakaproof/internal/structures"

	"github.com/roylee0704/gron"
	"go.uber.org/atomic"
)

const runTimeout = 30 * time.Minute

var ErrBusy = errors.New("a scheduled run is already in progress")

type SchedulerInterface interface {
	Init()
	Stop()
	RunNow(ctx context.Context) error
	Running() bool
	LastRun() time.Time
	LastError() error
}

type Scheduler struct {
	config  *structures.Config
	logger  providers.Logger
	service services.DailyServiceInterface
	clock   providers.Clock
	cron    *gron.Cron

	running atomic.Bool
	lastRun atomic.Time
	lastErr atomic.Error
}

func (s *Scheduler) Init() {
	if !s.config.Schedule.Enabled {
		s.logger.Infof(providers.TypeApp, "Scheduler disabled")
		return
	}
	at := s.config.Schedule.At
	if !providers.ValidTimeOfDay(at) {
		s.logger.Errorf(providers.TypeApp, "Scheduler not started: invalid time of day %q", at)
		return
	}
	s.cron = gron.New()
	s.cron.AddFunc(gron.Every(24*time.Hour).At(at), func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		_ = s.RunNow(ctx)
	})
	s.cron.Start()
	s.logger.Infof(providers.TypeApp, "Daily run scheduled at %s", at)
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunNow performs one scheduled run unless another is still going.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warnf(providers.TypeApp, "Skipping run: previous run still in progress")
		return ErrBusy
	}
	defer s.running.Store(false)

	s.logger.Infof(providers.TypeApp, "Scheduled run started")
	run, err := s.service.RunScheduled(ctx)
	s.lastRun.Store(s.clock.Now())
	s.lastErr.Store(err)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Scheduled run failed: %s", err)
		return err
	}
	s.logger.Infof(providers.TypeApp, "Scheduled run for %s finished, aggregated %v", run.Date, run.Aggregated)
	return nil
}

func (s *Scheduler) Running() bool { return s.running.Load() }

func (s *Scheduler) LastRun() time.Time { return s.lastRun.Load() }

func (s *Scheduler) LastError() error { return s.lastErr.Load() }

func NewScheduler(config *structures.Config, logger providers.Logger, service services.DailyServiceInterface, clock providers.Clock) SchedulerInterface {
	return &Scheduler{
		config:  config,
		logger:  logger,
		service: service,
		clock:   clock,
	}
}
