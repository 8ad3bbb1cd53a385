// Package handler exposes statement imports over HTTP: multipart upload,
// dry-run analysis, job status, and archived statement download.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	authhandler "github.com/UMHC/umhc-finance/internal/domain/auth/handler"
	importservice "github.com/UMHC/umhc-finance/internal/domain/import/service"
)

const defaultMaxUploadMB = 25

// ImportHandler serves the import endpoints.
type ImportHandler struct {
	svc         *importservice.ImportService
	maxUploadMB int
	logger      *slog.Logger
}

// NewImportHandler creates a new import handler.
func NewImportHandler(svc *importservice.ImportService, maxUploadMB int, logger *slog.Logger) *ImportHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	return &ImportHandler{
		svc:         svc,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// RegisterRoutes mounts the import endpoints. Everything here mutates the
// ledger or touches raw statements, so it all goes on the authed group.
func (h *ImportHandler) RegisterRoutes(_, authed gin.IRoutes) {
	authed.POST("/imports", h.Upload)
	authed.POST("/imports/analyze", h.Analyze)
	authed.GET("/imports", h.ListJobs)
	authed.GET("/imports/:id", h.GetJob)
	authed.GET("/imports/:id/file", h.DownloadFile)
}

type errorResponse struct {
	Error string `json:"error"`
}

// readUpload pulls the multipart "file" field, enforcing the size cap.
func (h *ImportHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "multipart field 'file' is required")
		return "", nil, false
	}

	maxBytes := int64(h.maxUploadMB) << 20
	if fileHeader.Size > maxBytes {
		h.respondError(c, http.StatusRequestEntityTooLarge,
			"file exceeds the "+strconv.Itoa(h.maxUploadMB)+"MB upload limit")
		return "", nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "could not read upload")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "could not read upload")
		return "", nil, false
	}
	if int64(len(data)) > maxBytes {
		h.respondError(c, http.StatusRequestEntityTooLarge,
			"file exceeds the "+strconv.Itoa(h.maxUploadMB)+"MB upload limit")
		return "", nil, false
	}
	return fileHeader.Filename, data, true
}

// Upload handles POST /imports: archive the statement, parse it, and write
// new transactions to the ledger.
func (h *ImportHandler) Upload(c *gin.Context) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	var uploadedBy *uuid.UUID
	if claims, ok := authhandler.ClaimsFromContext(c); ok {
		if id, err := uuid.Parse(claims.UserID); err == nil {
			uploadedBy = &id
		}
	}

	result, err := h.svc.Import(c.Request.Context(), filename, data, uploadedBy)
	if err != nil {
		h.serviceError(c, err, "import statement")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Analyze handles POST /imports/analyze: a dry run that reports what the
// parser sees without writing anything.
func (h *ImportHandler) Analyze(c *gin.Context) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	analysis, err := h.svc.Analyze(c.Request.Context(), filename, data)
	if err != nil {
		h.serviceError(c, err, "analyze statement")
		return
	}
	c.JSON(http.StatusOK, toAnalysisResponse(analysis))
}

// ListJobs handles GET /imports?limit=N.
func (h *ImportHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	jobs, err := h.svc.RecentJobs(c.Request.Context(), limit)
	if err != nil {
		h.serviceError(c, err, "list import jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// GetJob handles GET /imports/:id.
func (h *ImportHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid import job id")
		return
	}

	job, err := h.svc.Job(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err, "get import job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// DownloadFile handles GET /imports/:id/file, streaming back the archived
// statement that produced a job.
func (h *ImportHandler) DownloadFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid import job id")
		return
	}

	reader, info, err := h.svc.JobFile(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err, "download statement")
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", `attachment; filename="`+info.Name+`"`)
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, reader, nil)
}

type analysisResponse struct {
	FileType    string     `json:"file_type"`
	PageCount   int        `json:"page_count,omitempty"`
	Delimiter   string     `json:"delimiter,omitempty"`
	SkipLines   int        `json:"skip_lines,omitempty"`
	Headers     []string   `json:"headers,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Columns     any        `json:"columns,omitempty"`
	Dialect     any        `json:"dialect,omitempty"`
	SampleRows  [][]string `json:"sample_rows,omitempty"`
	Excel       any        `json:"excel,omitempty"`
}

func toAnalysisResponse(a *importservice.AnalysisResult) analysisResponse {
	resp := analysisResponse{
		FileType:    a.FileType,
		PageCount:   a.PageCount,
		SkipLines:   a.SkipLines,
		Headers:     a.Headers,
		Fingerprint: a.Fingerprint,
		SampleRows:  a.SampleRows,
	}
	if a.Delimiter != 0 {
		resp.Delimiter = string(a.Delimiter)
	}
	if a.Columns != nil {
		resp.Columns = a.Columns
	}
	if a.Dialect != nil {
		resp.Dialect = a.Dialect
	}
	if a.Excel != nil {
		resp.Excel = a.Excel
	}
	return resp
}

// serviceError maps import failures onto HTTP statuses.
func (h *ImportHandler) serviceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, importservice.ErrEmptyUpload):
		h.respondError(c, http.StatusBadRequest, "uploaded file is empty")
	case errors.Is(err, importservice.ErrUnsupportedFile):
		h.respondError(c, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, importservice.ErrNoArchivedFile):
		h.respondError(c, http.StatusNotFound, "no archived statement for this job")
	case errors.Is(err, pgx.ErrNoRows):
		h.respondError(c, http.StatusNotFound, "import job not found")
	default:
		h.logger.Error(action+" failed",
			slog.Any("error", err),
			slog.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *ImportHandler) respondError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{Error: message})
}
