package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"spendwise/internal/jobs"
	"spendwise/internal/middleware"
	"spendwise/internal/models"
	"spendwise/internal/pagination"
	"spendwise/internal/services"
	"spendwise/internal/validator"
)

const (
	testUserID    = "0191b0b6-7a1c-7000-8000-000000000001"
	testAccountID = "0191b0b6-7a1c-7000-8000-0000000000a1"
	testTxID      = "0191b0b6-7a1c-7000-8000-0000000000f1"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// --- mock services ---

type mockAccountService struct {
	createAccountFn     func(userID, name string, accountType models.AccountType, balance decimal.Decimal, isDefault bool) (*models.Account, error)
	getUserAccountsFn   func(userID string) ([]models.Account, error)
	getAccountByIDFn    func(userID, accountID string) (*models.Account, error)
	getDefaultAccountFn func(userID string) (*models.Account, error)
	setDefaultAccountFn func(userID, accountID string) (*models.Account, error)
	deleteAccountFn     func(userID, accountID string) error
}

func (m *mockAccountService) CreateAccount(userID, name string, accountType models.AccountType, balance decimal.Decimal, isDefault bool) (*models.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(userID, name, accountType, balance, isDefault)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) GetUserAccounts(userID string) ([]models.Account, error) {
	if m.getUserAccountsFn != nil {
		return m.getUserAccountsFn(userID)
	}
	return []models.Account{}, nil
}

func (m *mockAccountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	if m.getAccountByIDFn != nil {
		return m.getAccountByIDFn(userID, accountID)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) GetDefaultAccount(userID string) (*models.Account, error) {
	if m.getDefaultAccountFn != nil {
		return m.getDefaultAccountFn(userID)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) SetDefaultAccount(userID, accountID string) (*models.Account, error) {
	if m.setDefaultAccountFn != nil {
		return m.setDefaultAccountFn(userID, accountID)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) DeleteAccount(userID, accountID string) error {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(userID, accountID)
	}
	return nil
}

type mockTransactionService struct {
	createTransactionFn      func(userID string, input services.CreateTransactionInput) (*models.Transaction, error)
	getUserTransactionsFn    func(userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getAccountTransactionsFn func(userID, accountID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn     func(userID, transactionID string) (*models.Transaction, error)
	bulkDeleteFn             func(userID string, ids []string) (int, error)
}

func (m *mockTransactionService) CreateTransaction(userID string, input services.CreateTransactionInput) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(userID, input)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getUserTransactionsFn != nil {
		return m.getUserTransactionsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getAccountTransactionsFn != nil {
		return m.getAccountTransactionsFn(userID, accountID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(userID, transactionID)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) BulkDeleteTransactions(userID string, ids []string) (int, error) {
	if m.bulkDeleteFn != nil {
		return m.bulkDeleteFn(userID, ids)
	}
	return len(ids), nil
}

type mockBudgetService struct {
	getBudgetFn         func(userID string) (*models.Budget, error)
	upsertBudgetFn      func(userID string, amount decimal.Decimal) (*models.Budget, error)
	getBudgetProgressFn func(userID string) (*services.BudgetProgress, error)
}

func (m *mockBudgetService) GetBudget(userID string) (*models.Budget, error) {
	if m.getBudgetFn != nil {
		return m.getBudgetFn(userID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpsertBudget(userID string, amount decimal.Decimal) (*models.Budget, error) {
	if m.upsertBudgetFn != nil {
		return m.upsertBudgetFn(userID, amount)
	}
	return &models.Budget{UserID: userID, Amount: amount}, nil
}

func (m *mockBudgetService) GetBudgetProgress(userID string) (*services.BudgetProgress, error) {
	if m.getBudgetProgressFn != nil {
		return m.getBudgetProgressFn(userID)
	}
	return &services.BudgetProgress{}, nil
}

type mockRecurringService struct {
	dispatchDueFn func(ctx context.Context) (services.DispatchResult, error)
}

func (m *mockRecurringService) DispatchDue(ctx context.Context) (services.DispatchResult, error) {
	if m.dispatchDueFn != nil {
		return m.dispatchDueFn(ctx)
	}
	return services.DispatchResult{}, nil
}

func (m *mockRecurringService) ProcessWorkItem(_ context.Context, item jobs.WorkItem) (services.ProcessResult, error) {
	return services.ProcessResult{TransactionID: item.TransactionID}, nil
}

type mockBudgetAlertService struct {
	checkBudgetsFn func(ctx context.Context) (services.AlertRunResult, error)
}

func (m *mockBudgetAlertService) CheckBudgets(ctx context.Context) (services.AlertRunResult, error) {
	if m.checkBudgetsFn != nil {
		return m.checkBudgetsFn(ctx)
	}
	return services.AlertRunResult{}, nil
}

type mockReportService struct {
	generateFn func(ctx context.Context) (services.ReportRunResult, error)
	statsFn    func(ctx context.Context, userID string, month time.Time) (*models.MonthlyStats, error)
}

func (m *mockReportService) GenerateMonthlyReports(ctx context.Context) (services.ReportRunResult, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx)
	}
	return services.ReportRunResult{}, nil
}

func (m *mockReportService) GetMonthlyStats(ctx context.Context, userID string, month time.Time) (*models.MonthlyStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID, month)
	}
	start, _ := models.MonthBounds(month)
	return &models.MonthlyStats{Month: start, ByCategory: map[string]decimal.Decimal{}}, nil
}

type auditEntry struct {
	userID, action, resourceType, resourceID string
	changes                                  map[string]interface{}
}

type mockAuditService struct {
	entries []auditEntry
}

func (m *mockAuditService) Log(userID, action, resourceType, resourceID, _ string, changes map[string]interface{}) {
	m.entries = append(m.entries, auditEntry{userID, action, resourceType, resourceID, changes})
}

// verify interface compliance
var (
	_ services.AccountServicer     = (*mockAccountService)(nil)
	_ services.TransactionServicer = (*mockTransactionService)(nil)
	_ services.BudgetServicer      = (*mockBudgetService)(nil)
	_ services.RecurringServicer   = (*mockRecurringService)(nil)
	_ services.BudgetAlertServicer = (*mockBudgetAlertService)(nil)
	_ services.ReportServicer      = (*mockReportService)(nil)
	_ services.AuditServicer       = (*mockAuditService)(nil)
)

// --- test helpers ---

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
