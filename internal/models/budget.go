package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget is a user's monthly spending threshold, evaluated against the
// expenses of their default account.
type Budget struct {
	Base
	UserID        string          `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	LastAlertSent *time.Time      `json:"last_alert_sent,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// AlertedIn reports whether an alert was already sent in the calendar month
// containing now.
func (b *Budget) AlertedIn(now time.Time) bool {
	if b.LastAlertSent == nil {
		return false
	}
	last := b.LastAlertSent.In(now.Location())
	return last.Year() == now.Year() && last.Month() == now.Month()
}
