package models

import (
	"github.com/shopspring/decimal"
)

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeCurrent AccountType = "CURRENT"
	AccountTypeSavings AccountType = "SAVINGS"
)

// Valid reports whether t is a supported account type.
func (t AccountType) Valid() bool {
	return t == AccountTypeCurrent || t == AccountTypeSavings
}

// Account is a bank-like account. Balance is only mutated through the
// balance reconciler together with the ledger write that caused it.
type Account struct {
	Base
	UserID    string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name      string          `gorm:"not null" json:"name"`
	Type      AccountType     `gorm:"not null" json:"type"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	IsDefault bool            `gorm:"not null;default:false" json:"is_default"`

	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}
