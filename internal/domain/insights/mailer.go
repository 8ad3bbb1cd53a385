package insights

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// Mailer emails monthly reports through Resend. An empty API key or
// recipient disables it without breaking the report schedule.
type Mailer struct {
	client    *resend.Client
	fromEmail string
	toEmail   string
	logger    *slog.Logger
}

// NewMailer creates the report mailer.
func NewMailer(apiKey, fromEmail, toEmail string, logger *slog.Logger) *Mailer {
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	if fromEmail == "" {
		fromEmail = "UMHC Finance <finance@umhc.org.uk>"
	}

	return &Mailer{
		client:    client,
		fromEmail: fromEmail,
		toEmail:   toEmail,
		logger:    logger,
	}
}

// Enabled reports whether the mailer can actually deliver.
func (m *Mailer) Enabled() bool {
	return m.client != nil && m.toEmail != ""
}

// SendMonthlyReport renders the report as HTML and sends it.
func (m *Mailer) SendMonthlyReport(_ context.Context, report *MonthlyReport) error {
	if !m.Enabled() {
		m.logger.Warn("resend client not configured, skipping report email")
		return nil
	}

	_, err := m.client.Emails.Send(&resend.SendEmailRequest{
		From:    m.fromEmail,
		To:      []string{m.toEmail},
		Subject: fmt.Sprintf("UMHC treasury report — %s", report.Period()),
		Html:    renderReportHTML(report),
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// renderReportHTML builds the email body. Plain table layout; treasurers
// read these on their phones halfway up a hill.
func renderReportHTML(report *MonthlyReport) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Georgia, serif; color: #1f2933; margin: 0; padding: 24px; }
    .container { max-width: 560px; margin: 0 auto; }
    h1 { font-size: 22px; border-bottom: 2px solid #1f2933; padding-bottom: 8px; }
    h2 { font-size: 16px; margin-top: 28px; }
    table { width: 100%; border-collapse: collapse; font-size: 14px; }
    td, th { text-align: left; padding: 6px 8px; border-bottom: 1px solid #e4e7eb; }
    td.amount { text-align: right; font-variant-numeric: tabular-nums; }
    .highlight { background: #f5f7fa; border-left: 3px solid #1f2933; padding: 8px 12px; margin: 6px 0; font-size: 14px; }
    .footer { color: #7b8794; font-size: 12px; margin-top: 32px; }
  </style>
</head>
<body>
  <div class="container">
`)

	fmt.Fprintf(&b, "    <h1>Treasury report — %s</h1>\n", html.EscapeString(report.Period()))

	for _, h := range report.Highlights {
		fmt.Fprintf(&b, "    <div class=\"highlight\">%s</div>\n", html.EscapeString(h))
	}

	b.WriteString("    <h2>Month at a glance</h2>\n    <table>\n")
	fmt.Fprintf(&b, "      <tr><td>Income</td><td class=\"amount\">%s</td></tr>\n", displayPence(report.Totals.IncomePence))
	fmt.Fprintf(&b, "      <tr><td>Spending</td><td class=\"amount\">%s</td></tr>\n", displayPence(report.Totals.ExpensePence))
	fmt.Fprintf(&b, "      <tr><td>Net</td><td class=\"amount\">%s</td></tr>\n", displayPence(report.Totals.NetPence()))
	fmt.Fprintf(&b, "      <tr><td>Transactions</td><td class=\"amount\">%d</td></tr>\n", report.Totals.Count)
	b.WriteString("    </table>\n")

	if len(report.TopEvents) > 0 {
		b.WriteString("    <h2>Events</h2>\n    <table>\n      <tr><th>Event</th><th>In</th><th>Out</th></tr>\n")
		for _, e := range report.TopEvents {
			fmt.Fprintf(&b, "      <tr><td>%s</td><td class=\"amount\">%s</td><td class=\"amount\">%s</td></tr>\n",
				html.EscapeString(e.Name), displayPence(e.IncomePence), displayPence(e.ExpensePence))
		}
		b.WriteString("    </table>\n")
	}

	if len(report.TopCategories) > 0 {
		b.WriteString("    <h2>Categories</h2>\n    <table>\n      <tr><th>Category</th><th>In</th><th>Out</th></tr>\n")
		for _, c := range report.TopCategories {
			fmt.Fprintf(&b, "      <tr><td>%s</td><td class=\"amount\">%s</td><td class=\"amount\">%s</td></tr>\n",
				html.EscapeString(c.Name), displayPence(c.IncomePence), displayPence(c.ExpensePence))
		}
		b.WriteString("    </table>\n")
	}

	if len(report.Largest) > 0 {
		b.WriteString("    <h2>Largest transactions</h2>\n    <table>\n")
		for _, l := range report.Largest {
			amount := displayPence(l.AmountPence)
			if l.Type == "Expense" {
				amount = "-" + amount
			}
			fmt.Fprintf(&b, "      <tr><td>%s</td><td>%s</td><td class=\"amount\">%s</td></tr>\n",
				l.OccurredOn.Format("02 Jan"), html.EscapeString(l.Description), amount)
		}
		b.WriteString("    </table>\n")
	}

	if len(report.Changes) > 0 {
		b.WriteString("    <h2>Changes since last month</h2>\n")
		for _, c := range report.Changes {
			fmt.Fprintf(&b, "    <div class=\"highlight\"><strong>%s</strong><br>%s</div>\n",
				html.EscapeString(c.Title), html.EscapeString(c.Description))
		}
	}

	fmt.Fprintf(&b, "    <p class=\"footer\">Generated %s by the UMHC finance dashboard.</p>\n",
		report.GeneratedAt.Format("2 January 2006 15:04"))
	b.WriteString("  </div>\n</body>\n</html>\n")

	return b.String()
}
