package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"spendwise/internal/models"
	"spendwise/internal/recurrence"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Dec parses a decimal literal, failing the test on bad input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

// CreateTestUser creates a user with a unique external id and email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	n := nextID()
	return CreateTestUserWithEmail(t, db, fmt.Sprintf("user%d@test.com", n))
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		ExternalID: fmt.Sprintf("ext_%d", nextID()),
		Email:      email,
		Name:       "Test User",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates a default current account with zero balance.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string) *models.Account {
	t.Helper()
	return CreateTestAccountWithBalance(t, db, userID, decimal.Zero, true)
}

// CreateTestAccountWithBalance creates a current account with the given
// balance and default flag.
func CreateTestAccountWithBalance(t *testing.T, db *gorm.DB, userID string, balance decimal.Decimal, isDefault bool) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:    userID,
		Name:      fmt.Sprintf("Test Account %d", nextID()),
		Type:      models.AccountTypeCurrent,
		Balance:   balance,
		IsDefault: isDefault,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestTransaction creates a completed one-off transaction dated now.
// The account balance is not touched.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, accountID string, txType models.TransactionType, amount decimal.Decimal) *models.Transaction {
	t.Helper()
	return CreateTestTransactionOn(t, db, userID, accountID, txType, amount, time.Now().UTC())
}

// CreateTestTransactionOn creates a completed one-off transaction on date.
func CreateTestTransactionOn(t *testing.T, db *gorm.DB, userID, accountID string, txType models.TransactionType, amount decimal.Decimal, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:    userID,
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Date:      date,
		Category:  "other",
		Status:    models.TransactionStatusCompleted,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestRecurringTransaction creates a recurring template. lastProcessed
// may be nil for a template that has never generated an occurrence.
func CreateTestRecurringTransaction(t *testing.T, db *gorm.DB, userID, accountID string, interval recurrence.Interval, date time.Time, next time.Time, lastProcessed *time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:            userID,
		AccountID:         accountID,
		Type:              models.TransactionTypeExpense,
		Amount:            decimal.NewFromInt(50),
		Date:              date,
		Category:          "rent",
		Description:       "Rent",
		IsRecurring:       true,
		RecurringInterval: &interval,
		NextRecurringDate: &next,
		LastProcessed:     lastProcessed,
		Status:            models.TransactionStatusCompleted,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test recurring transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates the user's monthly budget.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, amount decimal.Decimal) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		UserID: userID,
		Amount: amount,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// ReloadAccount reads the account back from the database.
func ReloadAccount(t *testing.T, db *gorm.DB, id string) *models.Account {
	t.Helper()

	var account models.Account
	if err := db.First(&account, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload account %s: %v", id, err)
	}
	return &account
}
