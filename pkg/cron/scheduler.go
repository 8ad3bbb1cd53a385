// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ReportSender produces and delivers the monthly treasurer report.
// Implemented by the insights service.
type ReportSender interface {
	SendMonthlyReport(ctx context.Context, year int, month time.Month) error
}

// Reindexer rebuilds the transaction search index. Implemented by the
// categorization search service.
type Reindexer interface {
	RebuildIndex(ctx context.Context) (int, error)
}

// SessionPruner clears expired login sessions. Implemented by the auth
// service.
type SessionPruner interface {
	CleanupSessions(ctx context.Context) error
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	reports  ReportSender
	search   Reindexer
	sessions SessionPruner
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(reports ReportSender, search Reindexer, logger *slog.Logger) *Scheduler {
	// Standard 5-field format, no seconds
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:    c,
		reports: reports,
		search:  search,
		logger:  logger,
	}
}

// WithSessionPruner adds a nightly expired-session sweep.
func (s *Scheduler) WithSessionPruner(sessions SessionPruner) *Scheduler {
	s.sessions = sessions
	return s
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Search reindex: nightly at 3:00 AM, after any late imports
	if _, err := s.cron.AddFunc("0 3 * * *", s.rebuildSearchIndex); err != nil {
		return err
	}

	// Treasurer report: 1st of each month at 7:00 AM, covering the month
	// that just closed
	if _, err := s.cron.AddFunc("0 7 1 * *", s.sendMonthlyReport); err != nil {
		return err
	}

	if s.sessions != nil {
		if _, err := s.cron.AddFunc("30 3 * * *", s.pruneSessions); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunReportNow manually triggers the monthly report (for testing/admin).
func (s *Scheduler) RunReportNow() {
	go s.sendMonthlyReport()
}

// RunReindexNow manually triggers the search reindex (for testing/admin).
func (s *Scheduler) RunReindexNow() {
	go s.rebuildSearchIndex()
}

// rebuildSearchIndex refreshes the transaction search index.
func (s *Scheduler) rebuildSearchIndex() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	s.logger.Info("starting nightly search reindex")

	indexed, err := s.search.RebuildIndex(ctx)
	if err != nil {
		s.logger.Error("search reindex failed", slog.Any("error", err))
		return
	}

	s.logger.Info("nightly search reindex completed",
		slog.Int("transactions_indexed", indexed),
	)
}

// pruneSessions sweeps out expired refresh tokens.
func (s *Scheduler) pruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.sessions.CleanupSessions(ctx); err != nil {
		s.logger.Error("session cleanup failed", slog.Any("error", err))
	}
}

// sendMonthlyReport delivers the report for the month that just ended.
func (s *Scheduler) sendMonthlyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	now := time.Now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	previous := firstOfMonth.AddDate(0, -1, 0)

	s.logger.Info("sending monthly treasurer report",
		slog.Int("year", previous.Year()),
		slog.String("month", previous.Month().String()),
	)

	if err := s.reports.SendMonthlyReport(ctx, previous.Year(), previous.Month()); err != nil {
		s.logger.Error("monthly report failed",
			slog.Int("year", previous.Year()),
			slog.String("month", previous.Month().String()),
			slog.Any("error", err),
		)
		return
	}

	s.logger.Info("monthly treasurer report sent")
}
