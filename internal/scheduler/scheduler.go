package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vladimiradmaev/calorie-helper/internal/config"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
	"github.com/vladimiradmaev/calorie-helper/internal/services"
)

// DaySyncer copies every user's day to the document
type DaySyncer interface {
	SyncAllUsers(ctx context.Context, day time.Time) int
}

// Verifier re-checks catalog values against the calorie oracle
type Verifier interface {
	Verify(ctx context.Context) ([]services.Discrepancy, error)
}

// Scheduler runs the background jobs in the user time zone. Each job runs
// on its own goroutine, so jobs never hold up chat handling.
type Scheduler struct {
	cron     *cron.Cron
	syncer   DaySyncer
	verifier Verifier
	loc      *time.Location
	now      func() time.Time
	ctx      context.Context
}

// New registers the jobs. A nil syncer skips the nightly sync.
func New(cfg config.ScheduleConfig, loc *time.Location, syncer DaySyncer, verifier Verifier) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		syncer:   syncer,
		verifier: verifier,
		loc:      loc,
		now:      time.Now,
		ctx:      context.Background(),
	}

	if syncer != nil {
		if _, err := s.cron.AddFunc(cfg.Sync, s.syncJob); err != nil {
			return nil, fmt.Errorf("invalid sync schedule %q: %w", cfg.Sync, err)
		}
	}
	if verifier != nil {
		if _, err := s.cron.AddFunc(cfg.Verify, s.verifyJob); err != nil {
			return nil, fmt.Errorf("invalid verify schedule %q: %w", cfg.Verify, err)
		}
	}
	return s, nil
}

// Run starts the jobs and blocks until ctx is done, then waits for running
// jobs to finish
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = context.WithoutCancel(ctx)
	s.cron.Start()
	logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) syncJob() {
	day := s.now().In(s.loc)
	synced := s.syncer.SyncAllUsers(s.ctx, day)
	logger.Info("Nightly sync finished", "day", day.Format("2006-01-02"), "users", synced)
}

func (s *Scheduler) verifyJob() {
	found, err := s.verifier.Verify(s.ctx)
	if err != nil {
		logger.Error("Catalog verification failed", "error", err)
		return
	}
	logger.Info("Catalog verification finished", "discrepancies", len(found))
}
