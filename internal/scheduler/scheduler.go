package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"gearbox-rental-backend/internal/config"
	"gearbox-rental-backend/internal/logger"
)

// Jobs is the set of scheduled tasks the scheduler drives.
type Jobs interface {
	Config() *config.Config
	AccrueLateFees()
	AuditOversell()
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
}

// NewScheduler creates a scheduler with every job registered. An invalid
// cron spec is returned as an error rather than silently skipped.
func NewScheduler(jobRunner Jobs) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	if _, err := s.cron.AddFunc(cfg.AccrueLateFees, s.jobs.AccrueLateFees); err != nil {
		logger.Error("Failed to register AccrueLateFees job", "spec", cfg.AccrueLateFees, "error", err)
		return err
	}

	if _, err := s.cron.AddFunc(cfg.AuditOversell, s.jobs.AuditOversell); err != nil {
		logger.Error("Failed to register AuditOversell job", "spec", cfg.AuditOversell, "error", err)
		return err
	}

	logger.Info("All cron jobs registered successfully", "count", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// Entries returns the registered jobs with their next run times.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
