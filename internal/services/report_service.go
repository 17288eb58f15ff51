package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/insights"
	"spendwise/internal/logger"
	"spendwise/internal/models"
	"spendwise/internal/notify"
)

const reportBatchSize = 100

// reportService builds monthly statistics and emails monthly reports.
type reportService struct {
	db        *gorm.DB
	sender    notify.Sender
	generator insights.Generator
	now       func() time.Time
	log       *zap.SugaredLogger
}

// NewReportService creates a new ReportServicer. Insight failures are masked
// by the fixed fallback insights.
func NewReportService(db *gorm.DB, sender notify.Sender, generator insights.Generator) ReportServicer {
	return &reportService{
		db:        db,
		sender:    sender,
		generator: insights.WithFallback(generator),
		now:       time.Now,
		log:       logger.Named("reports"),
	}
}

type categoryRow struct {
	Type     models.TransactionType
	Category string
	Total    decimal.Decimal
	Count    int64
}

// GetMonthlyStats summarises the user's transactions dated in the calendar
// month containing month, across all accounts.
func (s *reportService) GetMonthlyStats(ctx context.Context, userID string, month time.Time) (*models.MonthlyStats, error) {
	start, end := models.MonthBounds(month.UTC())

	var rows []categoryRow
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("type, category, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("user_id = ? AND date >= ? AND date < ?", userID, start, end).
		Group("type, category").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stats := &models.MonthlyStats{
		Month:      start,
		ByCategory: make(map[string]decimal.Decimal),
	}
	for _, r := range rows {
		stats.TransactionCount += r.Count
		switch r.Type {
		case models.TransactionTypeIncome:
			stats.TotalIncome = stats.TotalIncome.Add(r.Total)
		case models.TransactionTypeExpense:
			stats.TotalExpenses = stats.TotalExpenses.Add(r.Total)
			stats.ByCategory[r.Category] = stats.ByCategory[r.Category].Add(r.Total)
		}
	}
	stats.Net = stats.TotalIncome.Sub(stats.TotalExpenses)
	return stats, nil
}

// GenerateMonthlyReports emails every user a report on the previous calendar
// month. One user's failure does not stop the others; failures are joined
// into the returned error.
func (s *reportService) GenerateMonthlyReports(ctx context.Context) (ReportRunResult, error) {
	thisMonth, _ := models.MonthBounds(s.now().UTC())
	lastMonth := thisMonth.AddDate(0, -1, 0)

	var result ReportRunResult
	var errs []error
	var batch []models.User

	err := s.db.WithContext(ctx).FindInBatches(&batch, reportBatchSize, func(_ *gorm.DB, _ int) error {
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Users++
			if err := s.sendReport(ctx, &batch[i], lastMonth); err != nil {
				result.Failed++
				errs = append(errs, err)
				s.log.Errorw("monthly report failed", "user_id", batch[i].ID, "error", err)
				continue
			}
			result.Sent++
		}
		return nil
	}).Error
	if err != nil {
		errs = append(errs, fmt.Errorf("list users: %w", err))
	}

	s.log.Infow("monthly report sweep finished",
		"month", lastMonth.Format("2006-01"),
		"users", result.Users,
		"sent", result.Sent,
		"failed", result.Failed,
	)
	return result, errors.Join(errs...)
}

func (s *reportService) sendReport(ctx context.Context, user *models.User, month time.Time) error {
	stats, err := s.GetMonthlyStats(ctx, user.ID, month)
	if err != nil {
		return fmt.Errorf("monthly stats for %s: %w", user.ID, err)
	}

	tips, err := s.generator.Generate(ctx, stats, stats.Period())
	if err != nil {
		return fmt.Errorf("insights for %s: %w", user.ID, err)
	}

	msg, err := notify.RenderMonthlyReport(user.Email, notify.MonthlyReport{
		UserName: user.DisplayName(),
		Stats:    stats,
		Insights: tips,
	})
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send monthly report to %s: %w", user.ID, err)
	}
	return nil
}
