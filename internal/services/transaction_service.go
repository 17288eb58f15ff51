package services

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/models"
	"spendwise/internal/pagination"
	"spendwise/internal/recurrence"
)

// RecurringSuffix marks ledger entries generated from a recurring template.
const RecurringSuffix = " (Recurring)"

// transactionService handles transaction-related business logic.
type transactionService struct {
	db             *gorm.DB
	accountService AccountServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, accountService AccountServicer) TransactionServicer {
	return &transactionService{
		db:             db,
		accountService: accountService,
	}
}

// CreateTransaction records a ledger entry and applies its balance effect in
// the same atomic unit. Recurring entries get their first next date here.
func (s *transactionService) CreateTransaction(userID string, input CreateTransactionInput) (*models.Transaction, error) {
	if !input.Amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}
	if input.AccountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category is required")
	}
	delta, err := SignedAmount(input.Type, input.Amount)
	if err != nil {
		return nil, err
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}
	date = date.UTC()

	transaction := &models.Transaction{
		UserID:      userID,
		AccountID:   input.AccountID,
		Type:        input.Type,
		Amount:      input.Amount,
		Date:        date,
		Category:    input.Category,
		Description: input.Description,
		Status:      models.TransactionStatusCompleted,
	}

	if input.IsRecurring {
		if input.RecurringInterval == nil || !input.RecurringInterval.Valid() {
			return nil, apperrors.ErrInvalidRecurringInterval
		}
		next, err := recurrence.Next(date, *input.RecurringInterval)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidRecurringInterval, err)
		}
		interval := *input.RecurringInterval
		transaction.IsRecurring = true
		transaction.RecurringInterval = &interval
		transaction.NextRecurringDate = &next
	} else if input.RecurringInterval != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidRecurringInterval, "recurring interval requires a recurring transaction")
	}

	// Ownership check; another user's account reads as not found.
	if _, err := s.accountService.GetAccountByID(userID, input.AccountID); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return ApplyBalanceDelta(tx, transaction.AccountID, delta)
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's transactions.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	return listTransactions(base, page, filter)
}

// GetAccountTransactions retrieves a paginated, filtered list of transactions for a specific account.
func (s *transactionService) GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if _, err := s.accountService.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}

	base := s.db.Model(&models.Transaction{}).Where("user_id = ? AND account_id = ?", userID, accountID)
	return listTransactions(base, page, filter)
}

func listTransactions(base *gorm.DB, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	result, err := pagination.Fetch[models.Transaction](applyTransactionFilters(base, filter), page, "date DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", f.ToDate.UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if f.IsRecurring != nil {
		q = q.Where("is_recurring = ?", *f.IsRecurring)
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// BulkDeleteTransactions deletes the caller's transactions among ids and
// reverses their balance effect per account, all in one atomic unit. Ids
// that do not exist or belong to someone else are ignored. Returns the
// number of transactions deleted.
func (s *transactionService) BulkDeleteTransactions(userID string, transactionIDs []string) (int, error) {
	if len(transactionIDs) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one transaction ID is required")
	}

	var deleted int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var transactions []models.Transaction
		if err := tx.Where("id IN ? AND user_id = ?", transactionIDs, userID).
			Find(&transactions).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(transactions) == 0 {
			return nil
		}

		reversals := make(map[string]decimal.Decimal)
		ids := make([]string, 0, len(transactions))
		for _, t := range transactions {
			signed, err := SignedAmount(t.Type, t.Amount)
			if err != nil {
				return err
			}
			reversals[t.AccountID] = reversals[t.AccountID].Sub(signed)
			ids = append(ids, t.ID)
		}

		if err := tx.Where("id IN ?", ids).Delete(&models.Transaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		// Fixed order keeps lock acquisition consistent across concurrent deletes.
		accountIDs := make([]string, 0, len(reversals))
		for id := range reversals {
			accountIDs = append(accountIDs, id)
		}
		sort.Strings(accountIDs)
		for _, accountID := range accountIDs {
			if err := ApplyBalanceDelta(tx, accountID, reversals[accountID]); err != nil {
				return err
			}
		}

		deleted = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
