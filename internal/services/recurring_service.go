package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spendwise/internal/jobs"
	"spendwise/internal/logger"
	"spendwise/internal/models"
	"spendwise/internal/recurrence"
)

const dispatchBatchSize = 500

// recurringService dispatches due recurring transactions to the work queue
// and generates their occurrences.
type recurringService struct {
	db    *gorm.DB
	queue jobs.Enqueuer
	now   func() time.Time
	log   *zap.SugaredLogger
}

// NewRecurringService creates a new RecurringServicer.
func NewRecurringService(db *gorm.DB, queue jobs.Enqueuer) RecurringServicer {
	return &recurringService{
		db:    db,
		queue: queue,
		now:   time.Now,
		log:   logger.Named("recurring"),
	}
}

// DispatchDue enqueues one work item per due recurring transaction. It only
// reads the ledger, so running it twice merely enqueues duplicates that the
// processor rejects.
func (s *recurringService) DispatchDue(ctx context.Context) (DispatchResult, error) {
	now := s.now().UTC()
	var result DispatchResult
	var batch []models.Transaction

	err := s.db.WithContext(ctx).
		Select("id", "user_id").
		Scopes(models.DueRecurring(now)).
		FindInBatches(&batch, dispatchBatchSize, func(_ *gorm.DB, _ int) error {
			items := make([]jobs.WorkItem, 0, len(batch))
			for _, t := range batch {
				items = append(items, jobs.NewRecurringWorkItem(t.ID, t.UserID))
			}
			if err := s.queue.Enqueue(ctx, items...); err != nil {
				return fmt.Errorf("enqueue recurring batch: %w", err)
			}
			result.Enqueued += len(items)
			return nil
		}).Error
	if err != nil {
		return result, fmt.Errorf("dispatch due recurring transactions: %w", err)
	}

	s.log.Infow("dispatched recurring transactions", "enqueued", result.Enqueued)
	return result, nil
}

// ProcessWorkItem generates the next occurrence of one recurring
// transaction. Everything happens in one database transaction: the template
// is locked, re-checked, claimed with a guarded update, copied, and the copy's
// balance effect applied. A template that is gone or no longer due is a no-op.
func (s *recurringService) ProcessWorkItem(ctx context.Context, item jobs.WorkItem) (ProcessResult, error) {
	result := ProcessResult{TransactionID: item.TransactionID}
	if item.Kind != jobs.KindRecurringTransaction {
		return result, fmt.Errorf("unsupported work item kind %q", item.Kind)
	}

	now := s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var template models.Transaction
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", item.TransactionID)
		if item.UserID != "" {
			q = q.Where("user_id = ?", item.UserID)
		}
		if err := q.First(&template).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.log.Warnw("recurring transaction not found, skipping", "transaction_id", item.TransactionID)
				return nil
			}
			return fmt.Errorf("load recurring transaction: %w", err)
		}

		if !template.IsDue(now) {
			return nil
		}
		if template.RecurringInterval == nil {
			return fmt.Errorf("recurring transaction %s has no interval", template.ID)
		}

		next, err := recurrence.NextAfter(template.Date, *template.RecurringInterval, now)
		if err != nil {
			return fmt.Errorf("compute next occurrence: %w", err)
		}

		claim := tx.Model(&models.Transaction{}).
			Where("id = ?", template.ID).
			Scopes(models.DueRecurring(now)).
			Updates(map[string]interface{}{
				"last_processed":      now,
				"next_recurring_date": next,
			})
		if claim.Error != nil {
			return fmt.Errorf("claim recurring transaction: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		generated := &models.Transaction{
			UserID:      template.UserID,
			AccountID:   template.AccountID,
			Type:        template.Type,
			Amount:      template.Amount,
			Date:        now,
			Category:    template.Category,
			Description: strings.TrimSpace(template.Description + RecurringSuffix),
			Status:      models.TransactionStatusCompleted,
		}
		if err := tx.Create(generated).Error; err != nil {
			return fmt.Errorf("create generated transaction: %w", err)
		}

		delta, err := SignedAmount(generated.Type, generated.Amount)
		if err != nil {
			return err
		}
		if err := ApplyBalanceDelta(tx, generated.AccountID, delta); err != nil {
			return err
		}

		result.Processed = true
		result.GeneratedID = generated.ID
		return nil
	})
	if err != nil {
		return ProcessResult{TransactionID: item.TransactionID}, fmt.Errorf("process recurring transaction %s: %w", item.TransactionID, err)
	}

	if result.Processed {
		s.log.Infow("generated recurring transaction",
			"transaction_id", item.TransactionID,
			"generated_id", result.GeneratedID,
		)
	}
	return result, nil
}
