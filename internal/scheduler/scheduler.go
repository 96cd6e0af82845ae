// Package scheduler runs Pulse's daily background tasks: alert history
// retention and the daily alert summary.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/util"
)

const day = 24 * time.Hour

// AlertStore is the part of the alert history the scheduled tasks use.
type AlertStore interface {
	PruneAlerts(ctx context.Context, before time.Time) (int64, error)
	AlertCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg    *config.Config
	store  AlertStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewScheduler creates a new task scheduler.
func NewScheduler(cfg *config.Config, store AlertStore) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		store:  store,
		logger: util.ComponentLogger("scheduler"),
		now:    time.Now,
	}
}

// Start runs the scheduled tasks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	app := s.cfg.GetApplicationData()
	s.logger.Info().Msg("scheduler started")

	if app.Retention.Enabled {
		go s.runDaily(ctx, "alert_retention", app.Retention.CleanupTime, s.PruneHistory)
	}
	go s.runDaily(ctx, "daily_summary", app.Timers.SummaryTime, s.Summarize)

	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// runDaily invokes fn every day at the given HH:MM local time.
func (s *Scheduler) runDaily(ctx context.Context, name, clock string, fn func(context.Context)) {
	for {
		nextRun := NextRun(clock, s.now())

		s.logger.Info().
			Str("task", name).
			Time("next_run", nextRun).
			Msg("task scheduled")

		timer := time.NewTimer(time.Until(nextRun))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			fn(ctx)
		}
	}
}

// PruneHistory deletes alerts older than the configured retention.
func (s *Scheduler) PruneHistory(ctx context.Context) {
	days := s.cfg.GetApplicationData().Retention.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := s.now().Add(-time.Duration(days) * day)

	n, err := s.store.PruneAlerts(ctx, cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("alert retention failed")
		return
	}

	s.logger.Info().
		Int64("deleted", n).
		Int("retention_days", days).
		Msg("alert retention completed")
}

// Summarize logs the number of alerts of each type over the last day.
func (s *Scheduler) Summarize(ctx context.Context) {
	counts, err := s.store.AlertCounts(ctx, s.now().Add(-day))
	if err != nil {
		s.logger.Warn().Err(err).Msg("daily summary failed")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	s.logger.Info().
		Str("server", s.cfg.GetMonitorData().Label()).
		Int("total", total).
		Str("by_type", FormatCounts(counts)).
		Msg("daily alert summary")
}

// FormatCounts renders counts as "type=n" pairs sorted by type.
func FormatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

// NextRun returns the first time strictly after now at the given HH:MM in
// now's location. An unparsable clock falls back to 04:00.
func NextRun(clock string, now time.Time) time.Time {
	hour, minute := 4, 0
	if t, err := time.Parse("15:04", clock); err == nil {
		hour, minute = t.Hour(), t.Minute()
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
