package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/models"
)

// AlertThreshold is the percentage of the budget at which users are alerted.
var AlertThreshold = decimal.NewFromInt(80)

var hundred = decimal.NewFromInt(100)

// budgetService handles budget-related business logic.
type budgetService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB) BudgetServicer {
	return &budgetService{db: db, now: time.Now}
}

// GetBudget returns the user's budget.
func (s *budgetService) GetBudget(userID string) (*models.Budget, error) {
	return findBudget(s.db, userID)
}

func findBudget(db *gorm.DB, userID string) (*models.Budget, error) {
	var budget models.Budget
	if err := db.Where("user_id = ?", userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpsertBudget creates the user's budget or replaces its amount. The alert
// state is kept so a raised budget does not re-alert within the month.
func (s *budgetService) UpsertBudget(userID string, amount decimal.Decimal) (*models.Budget, error) {
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}

	budget := &models.Budget{UserID: userID, Amount: amount.Round(2)}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(budget).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return findBudget(s.db, userID)
}

// GetBudgetProgress reports this month's expenses on the default account
// against the budget.
func (s *budgetService) GetBudgetProgress(userID string) (*BudgetProgress, error) {
	budget, err := findBudget(s.db, userID)
	if err != nil {
		return nil, err
	}
	account, err := defaultAccount(s.db, userID)
	if err != nil {
		return nil, err
	}

	start, end := models.MonthBounds(s.now().UTC())
	spent, err := sumExpenses(s.db, userID, account.ID, start, end)
	if err != nil {
		return nil, err
	}

	return &BudgetProgress{
		BudgetID:        budget.ID,
		AccountID:       account.ID,
		AccountName:     account.Name,
		Budget:          budget.Amount,
		CurrentExpenses: spent,
		Remaining:       budget.Amount.Sub(spent),
		PercentageUsed:  PercentageUsed(spent, budget.Amount),
	}, nil
}

// PercentageUsed returns spent as a percentage of budget, rounded to two
// places. A non-positive budget counts as fully used.
func PercentageUsed(spent, budget decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return hundred
	}
	return spent.Div(budget).Mul(hundred).Round(2)
}

type sumRow struct {
	Total decimal.Decimal
}

// sumExpenses totals EXPENSE amounts on an account dated in [start, end).
func sumExpenses(db *gorm.DB, userID, accountID string, start, end time.Time) (decimal.Decimal, error) {
	var row sumRow
	err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND account_id = ? AND type = ?", userID, accountID, models.TransactionTypeExpense).
		Where("date >= ? AND date < ?", start.UTC(), end.UTC()).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return row.Total, nil
}
