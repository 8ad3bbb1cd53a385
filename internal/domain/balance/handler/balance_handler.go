// Package handler serves the club balance endpoints. Balance reads are
// public: the club publishes its accounts to members.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/UMHC/umhc-finance/internal/domain/balance"
	"github.com/UMHC/umhc-finance/pkg/money"
)

// BalanceHandler serves the balance endpoints.
type BalanceHandler struct {
	svc    *balance.Service
	logger *slog.Logger
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(svc *balance.Service, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the balance endpoints on the public group.
func (h *BalanceHandler) RegisterRoutes(public, _ gin.IRoutes) {
	public.GET("/balance", h.Current)
	public.GET("/balance/history", h.History)
}

type errorResponse struct {
	Error string `json:"error"`
}

type snapshotResponse struct {
	BalancePence     int64     `json:"balance_pence"`
	Balance          string    `json:"balance"`
	MonthChangePence int64     `json:"month_change_pence"`
	MonthChange      string    `json:"month_change"`
	LastActivity     *string   `json:"last_activity,omitempty"`
	AsOf             time.Time `json:"as_of"`
}

type dailyBalanceResponse struct {
	Date         string `json:"date"`
	BalancePence int64  `json:"balance_pence"`
	ChangePence  int64  `json:"change_pence"`
}

type historyResponse struct {
	Days         int                    `json:"days"`
	History      []dailyBalanceResponse `json:"history"`
	HighestPence int64                  `json:"highest_pence"`
	LowestPence  int64                  `json:"lowest_pence"`
	AveragePence int64                  `json:"average_pence"`
	Highest      string                 `json:"highest"`
	Lowest       string                 `json:"lowest"`
	Average      string                 `json:"average"`
}

// Current handles GET /balance.
func (h *BalanceHandler) Current(c *gin.Context) {
	snapshot, err := h.svc.Current(c.Request.Context())
	if err != nil {
		h.logger.Error("compute balance failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := snapshotResponse{
		BalancePence:     snapshot.BalancePence,
		Balance:          displayPence(snapshot.BalancePence),
		MonthChangePence: snapshot.MonthChangePence,
		MonthChange:      displayPence(snapshot.MonthChangePence),
		AsOf:             snapshot.AsOf,
	}
	if snapshot.LastActivity != nil {
		last := snapshot.LastActivity.Format("2006-01-02")
		resp.LastActivity = &last
	}
	c.JSON(http.StatusOK, resp)
}

// History handles GET /balance/history?days=N.
func (h *BalanceHandler) History(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))

	result, err := h.svc.History(c.Request.Context(), days)
	if err != nil {
		h.logger.Error("compute balance history failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := historyResponse{
		Days:         result.Days,
		History:      make([]dailyBalanceResponse, len(result.History)),
		HighestPence: result.HighestPence,
		LowestPence:  result.LowestPence,
		AveragePence: result.AveragePence,
		Highest:      displayPence(result.HighestPence),
		Lowest:       displayPence(result.LowestPence),
		Average:      displayPence(result.AveragePence),
	}
	for i, d := range result.History {
		resp.History[i] = dailyBalanceResponse{
			Date:         d.Date.Format("2006-01-02"),
			BalancePence: d.BalancePence,
			ChangePence:  d.ChangePence,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func displayPence(pence int64) string {
	return money.New(pence, money.GBP).Display()
}
