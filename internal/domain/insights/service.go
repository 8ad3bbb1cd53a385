package insights

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UMHC/umhc-finance/pkg/push"
)

// ReportMailer delivers a finished report to the treasurer's inbox.
type ReportMailer interface {
	Enabled() bool
	SendMonthlyReport(ctx context.Context, report *MonthlyReport) error
}

// Service assembles and delivers monthly treasury reports.
type Service struct {
	repo     *Repository
	mailer   ReportMailer
	notifier *push.Service
	logger   *slog.Logger
}

// NewService creates a new insights service.
func NewService(repo *Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// WithMailer emails finished reports to the treasurer.
func (s *Service) WithMailer(mailer ReportMailer) *Service {
	s.mailer = mailer
	return s
}

// WithNotifier announces finished reports on the committee webhook.
func (s *Service) WithNotifier(notifier *push.Service) *Service {
	s.notifier = notifier
	return s
}

// Report builds the treasury report for one calendar month.
func (s *Service) Report(ctx context.Context, year int, month time.Month) (*MonthlyReport, error) {
	start, end := monthWindow(year, month)
	prev := start.AddDate(0, -1, 0)
	prevStart, prevEnd := monthWindow(prev.Year(), prev.Month())

	totals, err := s.repo.MonthTotals(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("build report for %s %d: %w", month, year, err)
	}

	report := &MonthlyReport{
		Year:        year,
		Month:       month,
		Totals:      *totals,
		GeneratedAt: time.Now(),
	}

	// Everything past the headline figures is enrichment; a partial report
	// still goes out.
	if previous, err := s.repo.MonthTotals(ctx, prevStart, prevEnd); err != nil {
		s.logger.Warn("report missing previous month totals", slog.Any("error", err))
	} else {
		report.Previous = *previous
	}

	if categories, err := s.repo.TopCategories(ctx, start, end, topGroupLimit); err != nil {
		s.logger.Warn("report missing top categories", slog.Any("error", err))
	} else {
		report.TopCategories = categories
	}

	if events, err := s.repo.TopEvents(ctx, start, end, topGroupLimit); err != nil {
		s.logger.Warn("report missing top events", slog.Any("error", err))
	} else {
		report.TopEvents = events
	}

	if largest, err := s.repo.LargestTransactions(ctx, start, end, largestLimit); err != nil {
		s.logger.Warn("report missing largest transactions", slog.Any("error", err))
	} else {
		report.Largest = largest
	}

	if uncategorized, err := s.repo.UncategorizedCount(ctx, start, end); err != nil {
		s.logger.Warn("report missing uncategorized count", slog.Any("error", err))
	} else {
		report.Uncategorized = uncategorized
	}

	if imports, err := s.repo.ImportActivity(ctx, start, end); err != nil {
		s.logger.Warn("report missing import activity", slog.Any("error", err))
	} else {
		report.Imports = *imports
	}

	currentByCat, err := s.repo.CategoryExpenses(ctx, start, end)
	if err != nil {
		s.logger.Warn("report missing category changes", slog.Any("error", err))
	} else if previousByCat, err := s.repo.CategoryExpenses(ctx, prevStart, prevEnd); err != nil {
		s.logger.Warn("report missing previous category expenses", slog.Any("error", err))
	} else {
		report.Changes = detectChanges(currentByCat, previousByCat)
	}

	report.Highlights = buildHighlights(report)
	return report, nil
}

// SendMonthlyReport builds the report for a month and delivers it. Wired
// to the first-of-month schedule.
func (s *Service) SendMonthlyReport(ctx context.Context, year int, month time.Month) error {
	report, err := s.Report(ctx, year, month)
	if err != nil {
		return err
	}

	if s.mailer != nil && s.mailer.Enabled() {
		if err := s.mailer.SendMonthlyReport(ctx, report); err != nil {
			return fmt.Errorf("send report for %s: %w", report.Period(), err)
		}
		s.logger.Info("monthly report emailed", slog.String("period", report.Period()))
	} else {
		s.logger.Info("mailer not configured, monthly report not emailed",
			slog.String("period", report.Period()))
	}

	s.notifyWebhook(ctx, report)
	return nil
}

func (s *Service) notifyWebhook(ctx context.Context, report *MonthlyReport) {
	if s.notifier == nil || !s.notifier.Enabled() {
		return
	}

	msg := &push.Message{
		Title: fmt.Sprintf("Treasury report for %s", report.Period()),
		Body: fmt.Sprintf("Income %s, spending %s.",
			displayPence(report.Totals.IncomePence), displayPence(report.Totals.ExpensePence)),
	}
	for _, h := range report.Highlights {
		msg.Fields = append(msg.Fields, push.Field{Name: "Highlight", Value: h})
	}

	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("failed to push report notice", slog.Any("error", err))
	}
}
