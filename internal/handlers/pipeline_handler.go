package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/jobs"
	"spendwise/internal/services"
)

// PipelineHandler lets an external job runner trigger the sweeps. Each
// request runs one sweep synchronously.
type PipelineHandler struct {
	recurringService   services.RecurringServicer
	budgetAlertService services.BudgetAlertServicer
	reportService      services.ReportServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(recurring services.RecurringServicer, alerts services.BudgetAlertServicer, reports services.ReportServicer) *PipelineHandler {
	return &PipelineHandler{
		recurringService:   recurring,
		budgetAlertService: alerts,
		reportService:      reports,
	}
}

// RunRecurring enqueues every due recurring transaction
// @Summary     Dispatch recurring transactions
// @Description Enqueue one work item per due recurring transaction (pipeline endpoint)
// @Tags        pipeline
// @Produce     json
// @Param       X-API-Key header   string                  true "Pipeline API key"
// @Success     200       {object} services.DispatchResult "Dispatch result"
// @Failure     401       {object} ErrorResponse           "Invalid API key"
// @Failure     500       {object} ErrorResponse           "Sweep failed"
// @Failure     503       {object} ErrorResponse           "Pipeline not configured"
// @Router      /pipeline/jobs/recurring [post]
func (h *PipelineHandler) RunRecurring(c *gin.Context) {
	var result services.DispatchResult
	err := jobs.RunNow(c.Request.Context(), jobs.Recurring, func(ctx context.Context) (err error) {
		result, err = h.recurringService.DispatchDue(ctx)
		return err
	})
	respondWithSweep(c, result, err)
}

// RunBudgetAlerts checks every budget and emails users over the threshold
// @Summary     Run budget alerts
// @Description Evaluate all budgets against current-month spending (pipeline endpoint)
// @Tags        pipeline
// @Produce     json
// @Param       X-API-Key header   string                  true "Pipeline API key"
// @Success     200       {object} services.AlertRunResult "Sweep result"
// @Failure     401       {object} ErrorResponse           "Invalid API key"
// @Failure     500       {object} ErrorResponse           "Some budgets failed"
// @Failure     503       {object} ErrorResponse           "Pipeline not configured"
// @Router      /pipeline/jobs/budget-alerts [post]
func (h *PipelineHandler) RunBudgetAlerts(c *gin.Context) {
	var result services.AlertRunResult
	err := jobs.RunNow(c.Request.Context(), jobs.BudgetAlerts, func(ctx context.Context) (err error) {
		result, err = h.budgetAlertService.CheckBudgets(ctx)
		return err
	})
	respondWithSweep(c, result, err)
}

// RunMonthlyReports emails every user last month's report
// @Summary     Send monthly reports
// @Description Build and email the previous month's report for every user (pipeline endpoint)
// @Tags        pipeline
// @Produce     json
// @Param       X-API-Key header   string                   true "Pipeline API key"
// @Success     200       {object} services.ReportRunResult "Sweep result"
// @Failure     401       {object} ErrorResponse            "Invalid API key"
// @Failure     500       {object} ErrorResponse            "Some reports failed"
// @Failure     503       {object} ErrorResponse            "Pipeline not configured"
// @Router      /pipeline/jobs/monthly-reports [post]
func (h *PipelineHandler) RunMonthlyReports(c *gin.Context) {
	var result services.ReportRunResult
	err := jobs.RunNow(c.Request.Context(), jobs.MonthlyReports, func(ctx context.Context) (err error) {
		result, err = h.reportService.GenerateMonthlyReports(ctx)
		return err
	})
	respondWithSweep(c, result, err)
}

// respondWithSweep reports the sweep counts. Sweeps keep going past
// per-item failures, so a failed sweep still returns its counts.
func respondWithSweep(c *gin.Context, result interface{}, err error) {
	if err != nil {
		c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
			"error": gin.H{
				"code":    apperrors.ErrInternalServer.Code,
				"message": "Job finished with failures",
			},
			"result": result,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
