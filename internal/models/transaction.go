package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"spendwise/internal/recurrence"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "INCOME"
	TransactionTypeExpense TransactionType = "EXPENSE"
)

// Valid reports whether t is a supported transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is a single ledger entry. Amount is a positive magnitude; the
// sign comes from Type. Recurring templates carry an interval and the date
// of their next occurrence.
type Transaction struct {
	Base
	UserID            string               `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID         string               `gorm:"type:uuid;not null;index" json:"account_id"`
	Type              TransactionType      `gorm:"not null" json:"type"`
	Amount            decimal.Decimal      `gorm:"type:decimal(20,2);not null" json:"amount"`
	Date              time.Time            `gorm:"not null;index" json:"date"`
	Category          string               `gorm:"not null" json:"category"`
	Description       string               `json:"description,omitempty"`
	IsRecurring       bool                 `gorm:"not null;default:false" json:"is_recurring"`
	RecurringInterval *recurrence.Interval `json:"recurring_interval,omitempty"`
	NextRecurringDate *time.Time           `gorm:"index" json:"next_recurring_date,omitempty"`
	LastProcessed     *time.Time           `json:"last_processed,omitempty"`
	Status            TransactionStatus    `gorm:"not null;default:'COMPLETED'" json:"status"`

	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}

// IsDue reports whether a recurring transaction has an occurrence waiting to
// be generated at now. Must stay in step with DueRecurring.
func (t *Transaction) IsDue(now time.Time) bool {
	if !t.IsRecurring || t.Status != TransactionStatusCompleted {
		return false
	}
	if t.LastProcessed == nil {
		return true
	}
	return t.NextRecurringDate != nil && !t.NextRecurringDate.After(now)
}

// DueRecurring is the SQL form of IsDue.
func DueRecurring(now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_recurring = ? AND status = ?", true, TransactionStatusCompleted).
			Where("(last_processed IS NULL OR next_recurring_date <= ?)", now)
	}
}
