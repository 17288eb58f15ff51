package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyStats summarises one user's ledger activity for a calendar month.
// It is computed on demand and never persisted.
type MonthlyStats struct {
	Month            time.Time                  `json:"month"`
	TotalIncome      decimal.Decimal            `json:"total_income"`
	TotalExpenses    decimal.Decimal            `json:"total_expenses"`
	Net              decimal.Decimal            `json:"net"`
	ByCategory       map[string]decimal.Decimal `json:"by_category"`
	TransactionCount int64                      `json:"transaction_count"`
}

// Period formats the month as "January 2024".
func (s *MonthlyStats) Period() string {
	return s.Month.Format("January 2006")
}

// CategoryTotal is one row of a by-category breakdown.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// SortedCategories returns the expense breakdown largest first, ties by name.
func (s *MonthlyStats) SortedCategories() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(s.ByCategory))
	for c, total := range s.ByCategory {
		out = append(out, CategoryTotal{Category: c, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Total.Cmp(out[j].Total); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// MonthBounds returns the half-open range [first of month, first of next
// month) containing t, in t's location.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
