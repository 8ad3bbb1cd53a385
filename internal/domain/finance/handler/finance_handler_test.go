package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UMHC/umhc-finance/internal/domain/finance"
)

func newTestRouter(t *testing.T) (*gin.Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := finance.NewService(finance.NewRepository(mock), logger)

	engine := gin.New()
	api := engine.Group("/api/v1")
	NewFinanceHandler(svc, logger).RegisterRoutes(api, api)
	return engine, mock
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func ledgerRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "occurred_on", "description", "amount_pence", "type", "category",
		"event", "confidence", "source", "page", "import_job_id", "dedupe_key",
		"created_at", "updated_at",
	})
}

func insertReturnRow() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
		AddRow(uuid.New(), time.Now(), time.Now())
}

func TestListTransactions(t *testing.T) {
	t.Run("returns a filtered page", func(t *testing.T) {
		engine, mock := newTestRouter(t)

		now := time.Now()
		mock.ExpectQuery(`SELECT COUNT`).
			WithArgs("2025-10").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery(`SELECT id, occurred_on, description`).
			WithArgs("2025-10", 50, 0).
			WillReturnRows(ledgerRows().
				AddRow(uuid.New(), time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC),
					"Minibus Hire", int64(24000), finance.TypeExpense, "Transport",
					"Snowdonia", 0.9, finance.SourcePDF, nil, nil, "k1", now, now))

		rec := doJSON(t, engine, http.MethodGet, "/api/v1/transactions?month=2025-10", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `"total_count":1`)
		assert.Contains(t, body, `"description":"Minibus Hire"`)
		assert.Contains(t, body, `"amount_pence":24000`)
		assert.Contains(t, body, `"amount":"£240.00"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a malformed month", func(t *testing.T) {
		engine, mock := newTestRouter(t)

		rec := doJSON(t, engine, http.MethodGet, "/api/v1/transactions?month=October", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "month must be YYYY-MM")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetTransaction(t *testing.T) {
	t.Run("unknown id is a 404", func(t *testing.T) {
		engine, mock := newTestRouter(t)

		id := uuid.New()
		mock.ExpectQuery(`SELECT id, occurred_on, description`).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		rec := doJSON(t, engine, http.MethodGet, "/api/v1/transactions/"+id.String(), "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed id is a 400", func(t *testing.T) {
		engine, _ := newTestRouter(t)

		rec := doJSON(t, engine, http.MethodGet, "/api/v1/transactions/not-a-uuid", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid transaction id")
	})
}

func TestSummaryEndpoint(t *testing.T) {
	engine, mock := newTestRouter(t)

	mock.ExpectQuery(`FROM transactions`).
		WithArgs("2025-10").
		WillReturnRows(pgxmock.NewRows([]string{"income", "expense", "count", "uncategorized"}).
			AddRow(int64(150000), int64(84250), int64(42), int64(3)))
	mock.ExpectQuery(`GROUP BY category`).
		WithArgs("2025-10", 5).
		WillReturnRows(pgxmock.NewRows([]string{"category", "income", "expense", "count"}).
			AddRow("Membership", int64(120000), int64(0), int64(24)))
	mock.ExpectQuery(`GROUP BY event`).
		WithArgs("2025-10", 5).
		WillReturnRows(pgxmock.NewRows([]string{"event", "income", "expense", "count"}).
			AddRow("Snowdonia", int64(48000), int64(36250), int64(11)))

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/transactions/summary?month=2025-10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"income":"£1,500.00"`)
	assert.Contains(t, body, `"net_pence":65750`)
	assert.Contains(t, body, `"name":"Membership"`)
	assert.Contains(t, body, `"name":"Snowdonia"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuickAddEndpoint(t *testing.T) {
	t.Run("records an entry", func(t *testing.T) {
		engine, mock := newTestRouter(t)

		mock.ExpectQuery(`INSERT INTO transactions`).
			WillReturnRows(insertReturnRow())

		rec := doJSON(t, engine, http.MethodPost, "/api/v1/transactions/quickadd",
			`{"text": "minibus fuel £42.50"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `"description":"Minibus fuel"`)
		assert.Contains(t, body, `"amount_pence":4250`)
		assert.Contains(t, body, `"type":"Expense"`)
		assert.Contains(t, body, `"source":"quickadd"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing text is a 400", func(t *testing.T) {
		engine, _ := newTestRouter(t)

		rec := doJSON(t, engine, http.MethodPost, "/api/v1/transactions/quickadd", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "text is required")
	})

	t.Run("duplicate is a 409", func(t *testing.T) {
		engine, mock := newTestRouter(t)

		mock.ExpectQuery(`INSERT INTO transactions`).
			WillReturnError(pgx.ErrNoRows)

		rec := doJSON(t, engine, http.MethodPost, "/api/v1/transactions/quickadd",
			`{"text": "minibus fuel £42.50"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateTransactionEndpoint(t *testing.T) {
	t.Run("creates with explicit fields", func(t *testing.T) {
		engine, mock := newTestRouter(t)

		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC), "Rope replacement",
				int64(8500), finance.TypeExpense, "Equipment", "General", 1.0,
				finance.SourceManual, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(insertReturnRow())

		rec := doJSON(t, engine, http.MethodPost, "/api/v1/transactions",
			`{"occurred_on": "2025-10-12", "description": "Rope replacement",
			  "amount": "£85.00", "type": "Expense", "category": "Equipment", "event": "General"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"amount":"£85.00"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		engine, _ := newTestRouter(t)

		rec := doJSON(t, engine, http.MethodPost, "/api/v1/transactions",
			`{"occurred_on": "12/10/2025", "description": "Rope", "amount": "85", "type": "Expense"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "YYYY-MM-DD")
	})
}

func TestDeleteTransactionEndpoint(t *testing.T) {
	t.Run("deletes and returns no content", func(t *testing.T) {
		engine, mock := newTestRouter(t)

		id := uuid.New()
		mock.ExpectExec(`DELETE FROM transactions`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		rec := doJSON(t, engine, http.MethodDelete, "/api/v1/transactions/"+id.String(), "")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		engine, mock := newTestRouter(t)

		id := uuid.New()
		mock.ExpectExec(`DELETE FROM transactions`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		rec := doJSON(t, engine, http.MethodDelete, "/api/v1/transactions/"+id.String(), "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestExportEndpoint(t *testing.T) {
	engine, mock := newTestRouter(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, occurred_on, description`).
		WillReturnRows(ledgerRows().
			AddRow(uuid.New(), time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC),
				"Minibus Hire", int64(24000), finance.TypeExpense, "Transport",
				"Snowdonia", 0.9, finance.SourcePDF, nil, nil, "k1", now, now))

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/transactions/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "umhc-transactions-")
	assert.Contains(t, rec.Body.String(), "12/10/2025,Minibus Hire,Transport,Snowdonia,,240.00")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchEndpoint_Unavailable(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/transactions/search?q=minibus", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "search is not available")
}
