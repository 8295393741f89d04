package web

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"calgrid/internal/config"
	appLog "calgrid/internal/log"
)

// midnightSpec fires when the current date changes.
const midnightSpec = "0 0 * * *"

// Scheduler reloads ICS sources on the configured cron schedule and tells
// clients when the date rolls over.
type Scheduler struct {
	cron *cron.Cron
}

// cronLogger routes cron's own messages through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

// NewScheduler registers the refresh and midnight jobs for s. An empty
// refresh spec or config.RefreshOff disables reloading.
func NewScheduler(s *Server, refreshSpec string) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)

	if refreshSpec != "" && refreshSpec != config.RefreshOff {
		_, err := c.AddFunc(refreshSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			n, errs := s.ReloadSources(ctx)
			appLog.Info("scheduled reload finished", "sources", n, "errors", len(errs))
		})
		if err != nil {
			return nil, fmt.Errorf("refresh schedule %q: %w", refreshSpec, err)
		}
	}
	if _, err := c.AddFunc(midnightSpec, s.BroadcastToday); err != nil {
		return nil, fmt.Errorf("midnight schedule: %w", err)
	}

	return &Scheduler{cron: c}, nil
}

// Start runs the jobs in the background.
func (sc *Scheduler) Start() {
	sc.cron.Start()
}

// Stop stops scheduling and waits for running jobs.
func (sc *Scheduler) Stop() {
	<-sc.cron.Stop().Done()
}

// Jobs reports how many jobs are registered.
func (sc *Scheduler) Jobs() int {
	return len(sc.cron.Entries())
}
