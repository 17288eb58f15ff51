package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/logger"
	"spendwise/internal/models"
	"spendwise/internal/notify"
)

const alertBatchSize = 200

// budgetAlertService emails users whose spending crosses AlertThreshold.
type budgetAlertService struct {
	db     *gorm.DB
	sender notify.Sender
	now    func() time.Time
	log    *zap.SugaredLogger
}

// NewBudgetAlertService creates a new BudgetAlertServicer.
func NewBudgetAlertService(db *gorm.DB, sender notify.Sender) BudgetAlertServicer {
	return &budgetAlertService{
		db:     db,
		sender: sender,
		now:    time.Now,
		log:    logger.Named("budget-alerts"),
	}
}

// CheckBudgets evaluates every budget against the current month's expenses
// on its owner's default account. Users without a default account are
// skipped. A failed budget does not stop the sweep; failures are joined into
// the returned error.
func (s *budgetAlertService) CheckBudgets(ctx context.Context) (AlertRunResult, error) {
	now := s.now().UTC()
	var result AlertRunResult
	var errs []error
	var batch []models.Budget

	err := s.db.WithContext(ctx).FindInBatches(&batch, alertBatchSize, func(_ *gorm.DB, _ int) error {
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			checked, alerted, err := s.checkBudget(ctx, &batch[i], now)
			if checked {
				result.Checked++
			}
			if alerted {
				result.Alerted++
			}
			if err != nil {
				result.Failed++
				errs = append(errs, err)
				s.log.Errorw("budget alert failed", "budget_id", batch[i].ID, "user_id", batch[i].UserID, "error", err)
			}
		}
		return nil
	}).Error
	if err != nil {
		errs = append(errs, fmt.Errorf("list budgets: %w", err))
	}

	s.log.Infow("budget alert sweep finished",
		"checked", result.Checked,
		"alerted", result.Alerted,
		"failed", result.Failed,
	)
	return result, errors.Join(errs...)
}

func (s *budgetAlertService) checkBudget(ctx context.Context, budget *models.Budget, now time.Time) (checked, alerted bool, err error) {
	db := s.db.WithContext(ctx)

	account, err := defaultAccount(db, budget.UserID)
	if errors.Is(err, apperrors.ErrNoDefaultAccount) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	start, end := models.MonthBounds(now)
	spent, err := sumExpenses(db, budget.UserID, account.ID, start, end)
	if err != nil {
		return true, false, err
	}
	percentage := PercentageUsed(spent, budget.Amount)
	if percentage.LessThan(AlertThreshold) || budget.AlertedIn(now) {
		return true, false, nil
	}

	// The row lock serializes concurrent sweeps; the loser sees the new
	// last_alert_sent and backs off. The alert is recorded before the send,
	// so a failed send rolls the record back and a failed record never
	// sends.
	err = db.Transaction(func(tx *gorm.DB) error {
		var locked models.Budget
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, "id = ?", budget.ID).Error; err != nil {
			return fmt.Errorf("lock budget: %w", err)
		}
		if locked.AlertedIn(now) {
			return nil
		}

		var user models.User
		if err := tx.First(&user, "id = ?", budget.UserID).Error; err != nil {
			return fmt.Errorf("load budget owner: %w", err)
		}

		msg, err := notify.RenderBudgetAlert(user.Email, notify.BudgetAlert{
			UserName:       user.DisplayName(),
			AccountName:    account.Name,
			PercentageUsed: percentage,
			BudgetAmount:   locked.Amount,
			TotalExpenses:  spent,
		})
		if err != nil {
			return err
		}

		if err := tx.Model(&locked).Update("last_alert_sent", now).Error; err != nil {
			return fmt.Errorf("record budget alert: %w", err)
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			return fmt.Errorf("send budget alert: %w", err)
		}
		alerted = true
		return nil
	})
	if err != nil {
		return true, false, err
	}
	return true, alerted, nil
}
