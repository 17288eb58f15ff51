package services

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/models"
)

// SignedAmount returns the balance effect of a transaction: +amount for
// income, -amount for expenses.
func SignedAmount(transactionType models.TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	switch transactionType {
	case models.TransactionTypeIncome:
		return amount, nil
	case models.TransactionTypeExpense:
		return amount.Neg(), nil
	default:
		return decimal.Zero, apperrors.ErrInvalidTransactionType
	}
}

// ApplyBalanceDelta adds delta to the account balance in a single UPDATE on
// the caller's transaction handle, so it commits or rolls back together with
// the ledger write that caused it.
func ApplyBalanceDelta(tx *gorm.DB, accountID string, delta decimal.Decimal) error {
	result := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}
