// Package cleanup purges expired refresh token records, once from the
// auth_cleanup binary or periodically inside the API process.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"docshare/internal/pkg/logging"

	"github.com/robfig/cron"
)

// ExpiredTokenPurger deletes refresh token records that expired before now.
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Run purges once and reports how many records were removed.
func Run(ctx context.Context, purger ExpiredTokenPurger, now time.Time, logger logging.Logger) (int64, error) {
	deleted, err := purger.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup refresh_tokens: %w", err)
	}
	logger.Info(ctx, "auth cleanup completed", "refresh_tokens", deleted)
	return deleted, nil
}

// Scheduler runs Run on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	purger  ExpiredTokenPurger
	logger  logging.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewScheduler registers the purge job under spec, e.g. "@hourly" or
// "0 */15 * * * *". The job does not run until Start is called.
func NewScheduler(spec string, purger ExpiredTokenPurger, logger logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		purger:  purger,
		logger:  logger,
		timeout: time.Minute,
		now:     time.Now,
	}
	if err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := Run(ctx, s.purger, s.now(), s.logger); err != nil {
		s.logger.Error(ctx, "scheduled auth cleanup failed", "error", err)
	}
}
