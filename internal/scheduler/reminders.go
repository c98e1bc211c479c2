package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is wrapped by NewReminderJobs when the cron spec does not parse.
var ErrInvalidSchedule = errors.New("invalid reminder schedule")

// DraftChecker runs a draft reminder check.
type DraftChecker interface {
	CheckDraft(ctx context.Context)
}

// ReminderJobs triggers draft reminder checks on a cron schedule, so a draft that
// crosses the 24h mark while the app stays in the foreground still gets a nudge.
type ReminderJobs struct {
	cron    *cron.Cron
	checker DraftChecker
	log     *slog.Logger
}

// NewReminderJobs schedules checker on spec (standard cron syntax or descriptors
// such as "@every 30m").
func NewReminderJobs(spec string, checker DraftChecker, log *slog.Logger) (*ReminderJobs, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	r := &ReminderJobs{cron: c, checker: checker, log: log}
	if _, err := c.AddFunc(spec, r.check); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, spec, err)
	}
	return r, nil
}

// Run starts the cron and blocks until ctx is cancelled and running jobs finish.
func (r *ReminderJobs) Run(ctx context.Context) {
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
}

func (r *ReminderJobs) check() {
	r.log.Debug("scheduled draft check")
	r.checker.CheckDraft(context.Background())
}
