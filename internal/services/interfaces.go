package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/jobs"
	"spendwise/internal/models"
	"spendwise/internal/pagination"
	"spendwise/internal/recurrence"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	EnsureUser(externalID, email, name string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(userID, name string, accountType models.AccountType, balance decimal.Decimal, isDefault bool) (*models.Account, error)
	GetUserAccounts(userID string) ([]models.Account, error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	GetDefaultAccount(userID string) (*models.Account, error)
	SetDefaultAccount(userID, accountID string) (*models.Account, error)
	DeleteAccount(userID, accountID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate    *time.Time
	ToDate      *time.Time
	Type        *models.TransactionType
	Category    *string
	IsRecurring *bool
}

// CreateTransactionInput carries the fields of a new ledger entry.
type CreateTransactionInput struct {
	AccountID         string
	Type              models.TransactionType
	Amount            decimal.Decimal
	Date              time.Time
	Category          string
	Description       string
	IsRecurring       bool
	RecurringInterval *recurrence.Interval
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, input CreateTransactionInput) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	BulkDeleteTransactions(userID string, transactionIDs []string) (int, error)
}

// BudgetProgress compares the current month's expenses on the default
// account with the user's budget.
type BudgetProgress struct {
	BudgetID        string          `json:"budget_id"`
	AccountID       string          `json:"account_id"`
	AccountName     string          `json:"account_name"`
	Budget          decimal.Decimal `json:"budget"`
	CurrentExpenses decimal.Decimal `json:"current_expenses"`
	Remaining       decimal.Decimal `json:"remaining"`
	PercentageUsed  decimal.Decimal `json:"percentage_used"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	GetBudget(userID string) (*models.Budget, error)
	UpsertBudget(userID string, amount decimal.Decimal) (*models.Budget, error)
	GetBudgetProgress(userID string) (*BudgetProgress, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}

// DispatchResult reports one recurring sweep.
type DispatchResult struct {
	Enqueued int `json:"enqueued"`
}

// ProcessResult reports the outcome of one recurring work item. Processed
// is false when the item was a no-op.
type ProcessResult struct {
	Processed     bool   `json:"processed"`
	GeneratedID   string `json:"generated_id,omitempty"`
	TransactionID string `json:"transaction_id"`
}

// RecurringServicer dispatches and processes recurring transactions.
type RecurringServicer interface {
	DispatchDue(ctx context.Context) (DispatchResult, error)
	ProcessWorkItem(ctx context.Context, item jobs.WorkItem) (ProcessResult, error)
}

// AlertRunResult reports one budget alert sweep.
type AlertRunResult struct {
	Checked int `json:"checked"`
	Alerted int `json:"alerted"`
	Failed  int `json:"failed"`
}

// BudgetAlertServicer checks budgets and notifies users nearing their limit.
type BudgetAlertServicer interface {
	CheckBudgets(ctx context.Context) (AlertRunResult, error)
}

// ReportRunResult reports one monthly report sweep.
type ReportRunResult struct {
	Users  int `json:"users"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ReportServicer builds monthly statistics and sends report emails.
type ReportServicer interface {
	GenerateMonthlyReports(ctx context.Context) (ReportRunResult, error)
	GetMonthlyStats(ctx context.Context, userID string, month time.Time) (*models.MonthlyStats, error)
}
