// Package handler serves the categorization rule endpoints. The rule list is
// public (the mapping from keywords to categories is part of the published
// accounts); rule changes need a committee login.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/UMHC/umhc-finance/internal/domain/categorization"
)

const (
	defaultSuggestLimit = 5
	maxSuggestLimit     = 20
)

// CategorizationHandler serves the rule management endpoints.
type CategorizationHandler struct {
	svc    *categorization.Service
	logger *slog.Logger
}

// NewCategorizationHandler creates a new categorization handler.
func NewCategorizationHandler(svc *categorization.Service, logger *slog.Logger) *CategorizationHandler {
	return &CategorizationHandler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the categorization endpoints.
func (h *CategorizationHandler) RegisterRoutes(public, authed gin.IRoutes) {
	public.GET("/categories/rules", h.ListRules)

	authed.POST("/categories/rules", h.CreateRule)
	authed.DELETE("/categories/rules/:id", h.DeleteRule)
	authed.GET("/categories/suggest", h.Suggest)
}

type errorResponse struct {
	Error string `json:"error"`
}

type createRuleRequest struct {
	Keyword         string `json:"keyword" binding:"required"`
	Category        string `json:"category" binding:"required"`
	Event           string `json:"event"`
	Priority        int    `json:"priority"`
	ApplyToExisting bool   `json:"apply_to_existing"`
}

type ruleResponse struct {
	ID        string    `json:"id"`
	Keyword   string    `json:"keyword"`
	Category  string    `json:"category"`
	Event     string    `json:"event"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

type createRuleResponse struct {
	Rule          ruleResponse `json:"rule"`
	Recategorized int64        `json:"recategorized"`
}

type suggestionResponse struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Event    string `json:"event"`
	Score    int    `json:"score"`
}

// ListRules handles GET /categories/rules.
func (h *CategorizationHandler) ListRules(c *gin.Context) {
	rules, err := h.svc.Rules(c.Request.Context())
	if err != nil {
		h.logger.Error("list rules failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := make([]ruleResponse, len(rules))
	for i, r := range rules {
		resp[i] = toRuleResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"rules": resp})
}

// CreateRule handles POST /categories/rules.
func (h *CategorizationHandler) CreateRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "keyword and category are required"})
		return
	}

	rule, recategorized, err := h.svc.CreateRule(c.Request.Context(), req.Keyword, req.Category, req.Event, req.Priority, req.ApplyToExisting)
	if err != nil {
		h.logger.Error("create rule failed", slog.String("keyword", req.Keyword), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusCreated, createRuleResponse{
		Rule:          toRuleResponse(*rule),
		Recategorized: recategorized,
	})
}

// DeleteRule handles DELETE /categories/rules/:id.
func (h *CategorizationHandler) DeleteRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid rule id"})
		return
	}

	if err := h.svc.DeleteRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "rule not found"})
			return
		}
		h.logger.Error("delete rule failed", slog.String("rule_id", id.String()), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Suggest handles GET /categories/suggest?q=description&limit=N. It returns
// the rules closest to the description, for labelling transactions that
// landed uncategorized.
func (h *CategorizationHandler) Suggest(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "q parameter is required"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	if limit > maxSuggestLimit {
		limit = maxSuggestLimit
	}

	matches, err := h.svc.Suggest(c.Request.Context(), query, limit)
	if err != nil {
		h.logger.Error("suggest rules failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := make([]suggestionResponse, len(matches))
	for i, m := range matches {
		resp[i] = suggestionResponse{
			Keyword:  m.Keyword,
			Category: m.Category,
			Event:    m.Event,
			Score:    m.Score,
		}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": resp})
}

func toRuleResponse(r categorization.CategoryRule) ruleResponse {
	return ruleResponse{
		ID:        r.ID.String(),
		Keyword:   r.Keyword,
		Category:  r.Category,
		Event:     r.Event,
		Priority:  r.Priority,
		CreatedAt: r.CreatedAt,
	}
}
