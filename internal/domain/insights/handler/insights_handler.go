// Package handler serves the monthly treasury report over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/UMHC/umhc-finance/internal/domain/insights"
)

// InsightsHandler serves the report endpoints.
type InsightsHandler struct {
	svc    *insights.Service
	logger *slog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(svc *insights.Service, logger *slog.Logger) *InsightsHandler {
	return &InsightsHandler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the report endpoints. Reading a report is public;
// emailing one out is a committee action.
func (h *InsightsHandler) RegisterRoutes(public, authed gin.IRoutes) {
	public.GET("/reports/monthly", h.MonthlyReport)
	authed.POST("/reports/monthly/send", h.SendMonthlyReport)
}

type errorResponse struct {
	Error string `json:"error"`
}

// parsePeriod reads year and month query parameters, defaulting to the
// previous calendar month (the one that just closed).
func parsePeriod(c *gin.Context) (int, time.Month, bool) {
	previous := time.Now().AddDate(0, -1, 0)
	year, month := previous.Year(), previous.Month()

	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2000 || parsed > 2200 {
			return 0, 0, false
		}
		year = parsed
	}
	if raw := c.Query("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			return 0, 0, false
		}
		month = time.Month(parsed)
	}
	return year, month, true
}

// MonthlyReport handles GET /reports/monthly?year=YYYY&month=M.
func (h *InsightsHandler) MonthlyReport(c *gin.Context) {
	year, month, ok := parsePeriod(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "year and month must be a valid period"})
		return
	}

	report, err := h.svc.Report(c.Request.Context(), year, month)
	if err != nil {
		h.logger.Error("build monthly report failed",
			slog.Any("error", err),
			slog.Int("year", year),
			slog.String("month", month.String()))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// SendMonthlyReport handles POST /reports/monthly/send, building the report
// and emailing it to the treasurer immediately.
func (h *InsightsHandler) SendMonthlyReport(c *gin.Context) {
	year, month, ok := parsePeriod(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "year and month must be a valid period"})
		return
	}

	if err := h.svc.SendMonthlyReport(c.Request.Context(), year, month); err != nil {
		h.logger.Error("send monthly report failed",
			slog.Any("error", err),
			slog.Int("year", year),
			slog.String("month", month.String()))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"period": month.String() + " " + strconv.Itoa(year)})
}
