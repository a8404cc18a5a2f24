// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"brewbook/internal/config"
	"brewbook/pkg/types"
)

const refreshTimeout = 2 * time.Minute

// DrinkRefresher regenerates and caches the drink of the day.
type DrinkRefresher interface {
	Refresh(ctx context.Context) (types.Recipe, error)
}

// Scheduler owns the cron instance and the context its jobs run under.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	drinks DrinkRefresher
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the configured jobs. Jobs with an empty expression are skipped.
func New(cfg config.SchedulerConfig, drinks DrinkRefresher, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Scheduler{
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		parser: parser,
		drinks: drinks,
		logger: logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.DrinkOfDayCron != "" && drinks != nil {
		if err := s.add("drink_of_day", cfg.DrinkOfDayCron, s.refreshDrink); err != nil {
			s.cancel()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, job func(context.Context)) error {
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse %s schedule %q: %w", name, spec, err)
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() { job(s.ctx) }))
	s.logger.Info("job scheduled", "job", name, "schedule", spec, "next_run", schedule.Next(time.Now()).Format(time.RFC3339))
	return nil
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling, cancels running jobs, and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) refreshDrink(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	start := time.Now()
	drink, err := s.drinks.Refresh(ctx)
	if err != nil {
		s.logger.Warn("drink of the day prewarm failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return
	}
	s.logger.Info("drink of the day prewarmed", "recipe_id", drink.ID, "title", drink.Title, "elapsed_ms", time.Since(start).Milliseconds())
}
