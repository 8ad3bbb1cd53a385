// Package handler exposes the club ledger over HTTP for the dashboard.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/UMHC/umhc-finance/internal/domain/categorization"
	"github.com/UMHC/umhc-finance/internal/domain/finance"
	"github.com/UMHC/umhc-finance/pkg/money"
)

// FinanceHandler serves the transaction endpoints.
type FinanceHandler struct {
	svc    *finance.Service
	logger *slog.Logger
}

// NewFinanceHandler creates a new finance handler
func NewFinanceHandler(svc *finance.Service, logger *slog.Logger) *FinanceHandler {
	return &FinanceHandler{
		svc:    svc,
		logger: logger,
	}
}

// RegisterRoutes mounts the ledger endpoints. Reads go on the public group
// (the club publishes its accounts); writes go on the authed group.
func (h *FinanceHandler) RegisterRoutes(public, authed gin.IRoutes) {
	public.GET("/transactions", h.ListTransactions)
	public.GET("/transactions/summary", h.Summary)
	public.GET("/transactions/trend", h.Trend)
	public.GET("/transactions/search", h.Search)
	public.GET("/transactions/export", h.Export)
	public.GET("/transactions/:id", h.GetTransaction)

	authed.POST("/transactions", h.CreateTransaction)
	authed.POST("/transactions/quickadd", h.QuickAdd)
	authed.DELETE("/transactions/:id", h.DeleteTransaction)
	authed.DELETE("/imports/:id/transactions", h.DeleteImportBatch)
}

type errorResponse struct {
	Error string `json:"error"`
}

type transactionResponse struct {
	ID          string    `json:"id"`
	OccurredOn  string    `json:"occurred_on"`
	Description string    `json:"description"`
	AmountPence int64     `json:"amount_pence"`
	Amount      string    `json:"amount"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Event       string    `json:"event"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	Page        *int      `json:"page,omitempty"`
	ImportJobID *string   `json:"import_job_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type listTransactionsResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	TotalCount   int64                 `json:"total_count"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type groupTotalResponse struct {
	Name         string `json:"name"`
	IncomePence  int64  `json:"income_pence"`
	ExpensePence int64  `json:"expense_pence"`
	Count        int64  `json:"count"`
}

type summaryResponse struct {
	Month            string               `json:"month,omitempty"`
	IncomePence      int64                `json:"income_pence"`
	ExpensePence     int64                `json:"expense_pence"`
	NetPence         int64                `json:"net_pence"`
	Income           string               `json:"income"`
	Expense          string               `json:"expense"`
	Net              string               `json:"net"`
	TransactionCount int64                `json:"transaction_count"`
	Uncategorized    int64                `json:"uncategorized"`
	TopCategories    []groupTotalResponse `json:"top_categories"`
	TopEvents        []groupTotalResponse `json:"top_events"`
}

type trendPointResponse struct {
	Month        string `json:"month"`
	IncomePence  int64  `json:"income_pence"`
	ExpensePence int64  `json:"expense_pence"`
	NetPence     int64  `json:"net_pence"`
}

type searchHitResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Event       string  `json:"event"`
	Type        string  `json:"type"`
	OccurredOn  string  `json:"occurred_on"`
	Pounds      float64 `json:"pounds"`
	Score       float64 `json:"score"`
}

type quickAddRequest struct {
	Text string `json:"text" binding:"required"`
}

type createTransactionRequest struct {
	OccurredOn  string `json:"occurred_on" binding:"required"`
	Description string `json:"description" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Category    string `json:"category"`
	Event       string `json:"event"`
}

// ListTransactions handles GET /transactions with month/category/event/
// type/source filters and limit/offset paging.
func (h *FinanceHandler) ListTransactions(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), parseFilter(c))
	if err != nil {
		h.serviceError(c, err, "list transactions")
		return
	}

	resp := listTransactionsResponse{
		Transactions: make([]transactionResponse, len(page.Transactions)),
		TotalCount:   page.TotalCount,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	for i := range page.Transactions {
		resp.Transactions[i] = toTransactionResponse(&page.Transactions[i])
	}
	c.JSON(http.StatusOK, resp)
}

// GetTransaction handles GET /transactions/:id.
func (h *FinanceHandler) GetTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid transaction id")
		return
	}

	tx, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err, "get transaction")
		return
	}
	if tx == nil {
		h.respondError(c, http.StatusNotFound, "transaction not found")
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(tx))
}

// Summary handles GET /transactions/summary?month=YYYY-MM.
func (h *FinanceHandler) Summary(c *gin.Context) {
	month := c.Query("month")
	summary, err := h.svc.Summary(c.Request.Context(), month)
	if err != nil {
		h.serviceError(c, err, "compute summary")
		return
	}

	resp := summaryResponse{
		Month:            month,
		IncomePence:      summary.IncomePence,
		ExpensePence:     summary.ExpensePence,
		NetPence:         summary.NetPence,
		Income:           displayPence(summary.IncomePence),
		Expense:          displayPence(summary.ExpensePence),
		Net:              displayPence(summary.NetPence),
		TransactionCount: summary.TransactionCount,
		Uncategorized:    summary.Uncategorized,
		TopCategories:    make([]groupTotalResponse, len(summary.TopCategories)),
		TopEvents:        make([]groupTotalResponse, len(summary.TopEvents)),
	}
	for i, t := range summary.TopCategories {
		resp.TopCategories[i] = groupTotalResponse{
			Name:         t.Category,
			IncomePence:  t.IncomePence,
			ExpensePence: t.ExpensePence,
			Count:        t.Count,
		}
	}
	for i, t := range summary.TopEvents {
		resp.TopEvents[i] = groupTotalResponse{
			Name:         t.Event,
			IncomePence:  t.IncomePence,
			ExpensePence: t.ExpensePence,
			Count:        t.Count,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Trend handles GET /transactions/trend?months=N.
func (h *FinanceHandler) Trend(c *gin.Context) {
	months, _ := strconv.Atoi(c.Query("months"))
	points, err := h.svc.Trend(c.Request.Context(), months)
	if err != nil {
		h.serviceError(c, err, "compute trend")
		return
	}

	resp := make([]trendPointResponse, len(points))
	for i, p := range points {
		resp[i] = trendPointResponse{
			Month:        p.Month,
			IncomePence:  p.IncomePence,
			ExpensePence: p.ExpensePence,
			NetPence:     p.NetPence,
		}
	}
	c.JSON(http.StatusOK, gin.H{"points": resp})
}

// Search handles GET /transactions/search?q=...&limit=N&advanced=true.
func (h *FinanceHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	advanced := c.Query("advanced") == "true"

	results, err := h.svc.Search(c.Request.Context(), c.Query("q"), limit, advanced)
	if err != nil {
		h.serviceError(c, err, "search transactions")
		return
	}

	hits := make([]searchHitResponse, len(results))
	for i, r := range results {
		hits[i] = toSearchHit(r)
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

// Export handles GET /transactions/export, streaming the filtered ledger
// as a CSV download.
func (h *FinanceHandler) Export(c *gin.Context) {
	data, err := h.svc.ExportCSV(c.Request.Context(), parseFilter(c))
	if err != nil {
		h.serviceError(c, err, "export transactions")
		return
	}

	filename := fmt.Sprintf("umhc-transactions-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// QuickAdd handles POST /transactions/quickadd with a shorthand line like
// "minibus fuel £42.50" or "+membership 25".
func (h *FinanceHandler) QuickAdd(c *gin.Context) {
	var req quickAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "text is required")
		return
	}

	tx, err := h.svc.QuickAdd(c.Request.Context(), req.Text)
	if err != nil {
		h.serviceError(c, err, "quick-add transaction")
		return
	}
	c.JSON(http.StatusCreated, toTransactionResponse(tx))
}

// CreateTransaction handles POST /transactions with explicit fields. The
// amount is pounds ("42.50" or "£42.50"); dates are YYYY-MM-DD.
func (h *FinanceHandler) CreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "occurred_on, description, amount, and type are required")
		return
	}

	occurredOn, err := time.Parse("2006-01-02", req.OccurredOn)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "occurred_on must be YYYY-MM-DD")
		return
	}

	amount, err := money.NewFromString(req.Amount, money.GBP)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "amount must be a pounds value like 42.50")
		return
	}

	tx, err := h.svc.CreateManual(c.Request.Context(), finance.ManualTransactionInput{
		OccurredOn:  occurredOn,
		Description: req.Description,
		AmountPence: amount.Amount(),
		Type:        req.Type,
		Category:    req.Category,
		Event:       req.Event,
	})
	if err != nil {
		h.serviceError(c, err, "create transaction")
		return
	}
	c.JSON(http.StatusCreated, toTransactionResponse(tx))
}

// DeleteTransaction handles DELETE /transactions/:id.
func (h *FinanceHandler) DeleteTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.serviceError(c, err, "delete transaction")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteImportBatch handles DELETE /imports/:id/transactions, removing
// everything a bad import wrote.
func (h *FinanceHandler) DeleteImportBatch(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid import job id")
		return
	}

	deleted, err := h.svc.DeleteImportBatch(c.Request.Context(), jobID)
	if err != nil {
		h.serviceError(c, err, "delete import batch")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// serviceError maps service failures onto HTTP statuses. Validation
// messages go back to the caller; everything else is logged and hidden.
func (h *FinanceHandler) serviceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, finance.ErrInvalidInput):
		h.respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, finance.ErrDuplicateTransaction):
		h.respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, finance.ErrSearchUnavailable):
		h.respondError(c, http.StatusServiceUnavailable, "search is not available")
	case errors.Is(err, pgx.ErrNoRows):
		h.respondError(c, http.StatusNotFound, "transaction not found")
	default:
		h.logger.Error(action+" failed",
			slog.Any("error", err),
			slog.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *FinanceHandler) respondError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{Error: message})
}

// parseFilter reads the shared list/export query parameters.
func parseFilter(c *gin.Context) finance.TransactionFilter {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return finance.TransactionFilter{
		Month:    c.Query("month"),
		Category: c.Query("category"),
		Event:    c.Query("event"),
		Type:     c.Query("type"),
		Source:   c.Query("source"),
		Limit:    limit,
		Offset:   offset,
	}
}

func toTransactionResponse(tx *finance.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          tx.ID.String(),
		OccurredOn:  tx.OccurredOn.Format("2006-01-02"),
		Description: tx.Description,
		AmountPence: tx.AmountPence,
		Amount:      displayPence(tx.AmountPence),
		Type:        tx.Type,
		Category:    tx.Category,
		Event:       tx.Event,
		Confidence:  tx.Confidence,
		Source:      tx.Source,
		Page:        tx.Page,
		CreatedAt:   tx.CreatedAt,
	}
	if tx.ImportJobID != nil {
		jobID := tx.ImportJobID.String()
		resp.ImportJobID = &jobID
	}
	return resp
}

func toSearchHit(r categorization.SearchResult) searchHitResponse {
	return searchHitResponse{
		ID:          r.Document.ID,
		Description: r.Document.Description,
		Category:    r.Document.Category,
		Event:       r.Document.Event,
		Type:        r.Document.Type,
		OccurredOn:  r.Document.OccurredOn,
		Pounds:      r.Document.Pounds,
		Score:       r.Score,
	}
}

func displayPence(pence int64) string {
	return money.New(pence, money.GBP).Display()
}
