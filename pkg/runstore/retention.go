package runstore

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// DefaultRetentionAge keeps runs for thirty days.
	DefaultRetentionAge = 30 * 24 * time.Hour
	// DefaultRetentionSchedule sweeps nightly at 03:00.
	DefaultRetentionSchedule = "0 3 * * *"
)

// Retention deletes old runs on a cron schedule.
type Retention struct {
	store    *Store
	age      time.Duration
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewRetention creates a retention job. Zero values pick the defaults.
func NewRetention(store *Store, age time.Duration, schedule string, logger zerolog.Logger) *Retention {
	if age <= 0 {
		age = DefaultRetentionAge
	}
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	return &Retention{
		store:    store,
		age:      age,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the sweep.
func (r *Retention) Start() error {
	if r.cron != nil {
		return fmt.Errorf("retention is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, r.sweep); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c

	r.logger.Info().
		Dur("age", r.age).
		Str("schedule", r.schedule).
		Msg("Run retention started")
	return nil
}

// Stop cancels the scheduled sweep.
func (r *Retention) Stop() {
	if r.cron == nil {
		return
	}
	r.cron.Stop()
	r.cron = nil
	r.logger.Info().Msg("Run retention stopped")
}

func (r *Retention) sweep() {
	cutoff := time.Now().Add(-r.age)
	deleted, err := r.store.DeleteOlderThan(cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("Run retention sweep failed")
		return
	}
	if deleted > 0 {
		r.logger.Info().Int64("deleted", deleted).Msg("Old workflow runs removed")
	}
}
