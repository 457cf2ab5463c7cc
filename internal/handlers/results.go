package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scolarix/scolarix/internal/middleware"
	"github.com/scolarix/scolarix/internal/models"
	"github.com/scolarix/scolarix/internal/services"
	"github.com/scolarix/scolarix/pkg/response"
)

// ResultHandler exposes exam result imports, listings and statistics.
type ResultHandler struct {
	results *services.ResultService
}

// NewResultHandler constructs a ResultHandler.
func NewResultHandler(results *services.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

type importResultsRequest struct {
	FileName string               `json:"file_name" validate:"required,max=255"`
	Rows     []services.ResultRow `json:"rows" validate:"required,min=1,dive"`
}

type resultDTO struct {
	ID          string  `json:"id"`
	StudentName string  `json:"studentName"`
	ClassName   string  `json:"className,omitempty"`
	Subject     string  `json:"subject"`
	Score       float64 `json:"score"`
	OutOf       float64 `json:"outOf"`
	ExamDate    string  `json:"examDate,omitempty"`
}

func toResultDTO(result *models.ExamResult) resultDTO {
	dto := resultDTO{
		ID:          result.ID,
		StudentName: result.StudentName,
		ClassName:   result.ClassName,
		Subject:     result.Subject,
		Score:       result.Score,
		OutOf:       result.OutOf,
	}
	if !result.ExamDate.IsZero() {
		dto.ExamDate = result.ExamDate.UTC().Format(timeFormat)
	}
	return dto
}

// Import handles POST /api/admin/results/import. The spreadsheet is parsed
// client-side; the payload carries structured rows.
func (h *ResultHandler) Import(c *gin.Context) {
	var req importResultsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	importedBy := c.GetString(middleware.CtxEmailKey)
	batch, err := h.results.Import(requestContext(c), req.FileName, importedBy, req.Rows)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessMessage(c, http.StatusCreated, "Results imported", gin.H{
		"batchId":  batch.ID,
		"fileName": batch.FileName,
		"rowCount": batch.RowCount,
	})
}

// List handles GET /api/admin/results with class/subject/student filters and
// page/page_size pagination.
func (h *ResultHandler) List(c *gin.Context) {
	filters := services.ResultFilters{
		ClassName: c.Query("class"),
		Subject:   c.Query("subject"),
		Student:   c.Query("student"),
	}
	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 50)

	results, total, err := h.results.List(requestContext(c), filters, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	dtos := make([]resultDTO, 0, len(results))
	for i := range results {
		dtos = append(dtos, toResultDTO(&results[i]))
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	response.SuccessWithMeta(c, http.StatusOK, dtos, &response.Meta{
		Page:       page,
		PerPage:    pageSize,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// Statistics handles GET /api/admin/results/statistics, computing aggregates
// live with the same filters as List.
func (h *ResultHandler) Statistics(c *gin.Context) {
	filters := services.ResultFilters{
		ClassName: c.Query("class"),
		Subject:   c.Query("subject"),
		Student:   c.Query("student"),
	}

	stats, err := h.results.Statistics(requestContext(c), filters)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// LatestSnapshot handles GET /api/admin/results/snapshot, serving the most
// recent cached statistics computed by the maintenance scheduler.
func (h *ResultHandler) LatestSnapshot(c *gin.Context) {
	snapshot, err := h.results.LatestSnapshot(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if snapshot == nil {
		response.Success(c, http.StatusOK, nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"computedAt": snapshot.ComputedAt.UTC().Format(timeFormat),
		"statistics": snapshot.Payload,
	})
}
