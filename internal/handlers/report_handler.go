package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/services"
)

// ReportHandler serves monthly statistics.
type ReportHandler struct {
	reportService services.ReportServicer
	now           func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer) *ReportHandler {
	return &ReportHandler{reportService: reportService, now: time.Now}
}

// GetMonthlyStats returns income, expenses and category totals for a month
// @Summary     Get monthly statistics
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       month query string false "Month as YYYY-MM (default: current month)"
// @Success     200 {object} models.MonthlyStats "Monthly statistics"
// @Failure     400 {object} ErrorResponse "Invalid month"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/monthly [get]
func (h *ReportHandler) GetMonthlyStats(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	month := h.now().UTC()
	if v := c.Query("month"); v != "" {
		month, err = time.Parse("2006-01", v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid month, use YYYY-MM"))
			return
		}
	}

	stats, err := h.reportService.GetMonthlyStats(c.Request.Context(), userID, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period": stats.Period(), "stats": stats})
}
