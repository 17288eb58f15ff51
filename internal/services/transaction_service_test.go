package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/models"
	"spendwise/internal/pagination"
	"spendwise/internal/recurrence"
	"spendwise/internal/testutil"
)

func TestCreateTransaction(t *testing.T) {
	t.Run("expense_updates_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewTransactionService(db, NewAccountService(db))
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, testutil.Dec(t, "1000"), true)

		tx, err := svc.CreateTransaction(user.ID, CreateTransactionInput{
			AccountID: account.ID,
			Type:      models.TransactionTypeExpense,
			Amount:    testutil.Dec(t, "150"),
			Category:  "groceries",
		})
		testutil.AssertNoError(t, err)

		if tx.Status != models.TransactionStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", tx.Status)
		}
		if tx.IsRecurring || tx.NextRecurringDate != nil {
			t.Error("one-off transaction should carry no recurrence")
		}
		testutil.AssertBalance(t, db, account.ID, "850")
	})

	t.Run("income_updates_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewTransactionService(db, NewAccountService(db))
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, testutil.Dec(t, "100"), true)

		_, err := svc.CreateTransaction(user.ID, CreateTransactionInput{
			AccountID: account.ID,
			Type:      models.TransactionTypeIncome,
			Amount:    testutil.Dec(t, "49.5"),
			Category:  "salary",
		})
		testutil.AssertNoError(t, err)

		testutil.AssertBalance(t, db, account.ID, "149.5")
	})

	t.Run("recurring_sets_next_date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewTransactionService(db, NewAccountService(db))
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		monthly := recurrence.Monthly

		tx, err := svc.CreateTransaction(user.ID, CreateTransactionInput{
			AccountID:         account.ID,
			Type:              models.TransactionTypeExpense,
			Amount:            testutil.Dec(t, "20"),
			Date:              time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			Category:          "subscriptions",
			IsRecurring:       true,
			RecurringInterval: &monthly,
		})
		testutil.AssertNoError(t, err)

		want := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
		if tx.NextRecurringDate == nil || !tx.NextRecurringDate.Equal(want) {
			t.Errorf("expected next date %v, got %v", want, tx.NextRecurringDate)
		}
		if tx.LastProcessed != nil {
			t.Error("new recurring transaction should be unprocessed")
		}
	})

	tests := []struct {
		name  string
		input func(accountID string) CreateTransactionInput
		code  string
	}{
		{
			name: "zero_amount",
			input: func(id string) CreateTransactionInput {
				return CreateTransactionInput{AccountID: id, Type: models.TransactionTypeExpense, Amount: decimal.Zero, Category: "x"}
			},
			code: "INVALID_AMOUNT",
		},
		{
			name: "negative_amount",
			input: func(id string) CreateTransactionInput {
				return CreateTransactionInput{AccountID: id, Type: models.TransactionTypeExpense, Amount: decimal.NewFromInt(-5), Category: "x"}
			},
			code: "INVALID_AMOUNT",
		},
		{
			name: "invalid_type",
			input: func(id string) CreateTransactionInput {
				return CreateTransactionInput{AccountID: id, Type: "TRANSFER", Amount: decimal.NewFromInt(5), Category: "x"}
			},
			code: "INVALID_TRANSACTION_TYPE",
		},
		{
			name: "missing_category",
			input: func(id string) CreateTransactionInput {
				return CreateTransactionInput{AccountID: id, Type: models.TransactionTypeIncome, Amount: decimal.NewFromInt(5)}
			},
			code: "INVALID_INPUT",
		},
		{
			name: "recurring_without_interval",
			input: func(id string) CreateTransactionInput {
				return CreateTransactionInput{AccountID: id, Type: models.TransactionTypeIncome, Amount: decimal.NewFromInt(5), Category: "x", IsRecurring: true}
			},
			code: "INVALID_RECURRING_INTERVAL",
		},
		{
			name: "interval_without_recurring",
			input: func(id string) CreateTransactionInput {
				weekly := recurrence.Weekly
				return CreateTransactionInput{AccountID: id, Type: models.TransactionTypeIncome, Amount: decimal.NewFromInt(5), Category: "x", RecurringInterval: &weekly}
			},
			code: "INVALID_RECURRING_INTERVAL",
		},
		{
			name: "unknown_interval",
			input: func(id string) CreateTransactionInput {
				bad := recurrence.Interval("HOURLY")
				return CreateTransactionInput{AccountID: id, Type: models.TransactionTypeIncome, Amount: decimal.NewFromInt(5), Category: "x", IsRecurring: true, RecurringInterval: &bad}
			},
			code: "INVALID_RECURRING_INTERVAL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			svc := NewTransactionService(db, NewAccountService(db))
			user := testutil.CreateTestUser(t, db)
			account := testutil.CreateTestAccountWithBalance(t, db, user.ID, testutil.Dec(t, "100"), true)

			_, err := svc.CreateTransaction(user.ID, tt.input(account.ID))
			testutil.AssertAppError(t, err, tt.code)
			testutil.AssertBalance(t, db, account.ID, "100")
		})
	}

	t.Run("other_users_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewTransactionService(db, NewAccountService(db))
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, owner.ID, testutil.Dec(t, "100"), true)

		_, err := svc.CreateTransaction(intruder.ID, CreateTransactionInput{
			AccountID: account.ID,
			Type:      models.TransactionTypeExpense,
			Amount:    testutil.Dec(t, "10"),
			Category:  "x",
		})
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
		testutil.AssertBalance(t, db, account.ID, "100")
	})
}

func TestBalanceEqualsOpeningPlusSignedSum(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewTransactionService(db, NewAccountService(db))
	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccountWithBalance(t, db, user.ID, testutil.Dec(t, "500"), true)

	entries := []struct {
		typ    models.TransactionType
		amount string
	}{
		{models.TransactionTypeIncome, "1200"},
		{models.TransactionTypeExpense, "75.5"},
		{models.TransactionTypeExpense, "300"},
		{models.TransactionTypeIncome, "12.25"},
		{models.TransactionTypeExpense, "0.75"},
	}
	var ids []string
	for _, e := range entries {
		tx, err := svc.CreateTransaction(user.ID, CreateTransactionInput{
			AccountID: account.ID,
			Type:      e.typ,
			Amount:    testutil.Dec(t, e.amount),
			Category:  "misc",
		})
		testutil.AssertNoError(t, err)
		ids = append(ids, tx.ID)
	}

	_, err := svc.BulkDeleteTransactions(user.ID, ids[1:2])
	testutil.AssertNoError(t, err)

	var remaining []models.Transaction
	db.Where("account_id = ?", account.ID).Find(&remaining)
	sum := testutil.Dec(t, "500")
	for _, tx := range remaining {
		signed, err := SignedAmount(tx.Type, tx.Amount)
		testutil.AssertNoError(t, err)
		sum = sum.Add(signed)
	}

	testutil.AssertBalance(t, db, account.ID, sum.String())
	testutil.AssertBalance(t, db, account.ID, "1411.5")
}

func TestGetUserTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewTransactionService(db, NewAccountService(db))
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccount(t, db, user.ID)
	otherAccount := testutil.CreateTestAccount(t, db, other.ID)

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		testutil.CreateTestTransactionOn(t, db, user.ID, account.ID, models.TransactionTypeExpense, testutil.Dec(t, "10"), base.AddDate(0, 0, i))
	}
	testutil.CreateTestTransactionOn(t, db, user.ID, account.ID, models.TransactionTypeIncome, testutil.Dec(t, "99"), base.AddDate(0, 0, 10))
	testutil.CreateTestTransaction(t, db, other.ID, otherAccount.ID, models.TransactionTypeExpense, testutil.Dec(t, "1"))

	t.Run("paginates_newest_first", func(t *testing.T) {
		page, err := svc.GetUserTransactions(user.ID, pagination.PageRequest{Page: 1, PageSize: 4}, TransactionFilter{})
		testutil.AssertNoError(t, err)

		if page.TotalItems != 6 || page.TotalPages != 2 || len(page.Data) != 4 {
			t.Fatalf("unexpected page: total=%d pages=%d len=%d", page.TotalItems, page.TotalPages, len(page.Data))
		}
		if page.Data[0].Type != models.TransactionTypeIncome {
			t.Error("expected newest transaction first")
		}
	})

	t.Run("filters_by_type", func(t *testing.T) {
		typ := models.TransactionTypeExpense
		page, err := svc.GetUserTransactions(user.ID, pagination.PageRequest{}, TransactionFilter{Type: &typ})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 5 {
			t.Errorf("expected 5 expenses, got %d", page.TotalItems)
		}
	})

	t.Run("filters_by_date", func(t *testing.T) {
		from := base.AddDate(0, 0, 1)
		to := base.AddDate(0, 0, 3)
		page, err := svc.GetUserTransactions(user.ID, pagination.PageRequest{}, TransactionFilter{FromDate: &from, ToDate: &to})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 3 {
			t.Errorf("expected 3 transactions in range, got %d", page.TotalItems)
		}
	})
}

func TestGetAccountTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewTransactionService(db, NewAccountService(db))
	user := testutil.CreateTestUser(t, db)
	intruder := testutil.CreateTestUser(t, db)
	primary := testutil.CreateTestAccountWithBalance(t, db, user.ID, decimal.Zero, true)
	spare := testutil.CreateTestAccountWithBalance(t, db, user.ID, decimal.Zero, false)

	testutil.CreateTestTransaction(t, db, user.ID, primary.ID, models.TransactionTypeExpense, testutil.Dec(t, "1"))
	testutil.CreateTestTransaction(t, db, user.ID, primary.ID, models.TransactionTypeExpense, testutil.Dec(t, "2"))
	testutil.CreateTestTransaction(t, db, user.ID, spare.ID, models.TransactionTypeExpense, testutil.Dec(t, "3"))

	page, err := svc.GetAccountTransactions(user.ID, primary.ID, pagination.PageRequest{}, TransactionFilter{})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 2 {
		t.Errorf("expected 2 transactions, got %d", page.TotalItems)
	}

	_, err = svc.GetAccountTransactions(intruder.ID, primary.ID, pagination.PageRequest{}, TransactionFilter{})
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}

func TestGetTransactionByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewTransactionService(db, NewAccountService(db))
	user := testutil.CreateTestUser(t, db)
	intruder := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccount(t, db, user.ID)
	tx := testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, testutil.Dec(t, "5"))

	got, err := svc.GetTransactionByID(user.ID, tx.ID)
	testutil.AssertNoError(t, err)
	if got.ID != tx.ID {
		t.Errorf("expected %s, got %s", tx.ID, got.ID)
	}

	_, err = svc.GetTransactionByID(intruder.ID, tx.ID)
	testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
}

func TestBulkDeleteTransactions(t *testing.T) {
	t.Run("reverses_each_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewTransactionService(db, NewAccountService(db))
		user := testutil.CreateTestUser(t, db)
		first := testutil.CreateTestAccountWithBalance(t, db, user.ID, testutil.Dec(t, "1000"), true)
		second := testutil.CreateTestAccountWithBalance(t, db, user.ID, testutil.Dec(t, "500"), false)

		a := testutil.CreateTestTransaction(t, db, user.ID, first.ID, models.TransactionTypeExpense, testutil.Dec(t, "100"))
		b := testutil.CreateTestTransaction(t, db, user.ID, first.ID, models.TransactionTypeIncome, testutil.Dec(t, "40"))
		c := testutil.CreateTestTransaction(t, db, user.ID, second.ID, models.TransactionTypeExpense, testutil.Dec(t, "25"))
		keep := testutil.CreateTestTransaction(t, db, user.ID, second.ID, models.TransactionTypeExpense, testutil.Dec(t, "1"))

		n, err := svc.BulkDeleteTransactions(user.ID, []string{a.ID, b.ID, c.ID})
		testutil.AssertNoError(t, err)
		if n != 3 {
			t.Errorf("expected 3 deleted, got %d", n)
		}

		// first: -(-100 + 40) = +60; second: -(-25) = +25
		testutil.AssertBalance(t, db, first.ID, "1060")
		testutil.AssertBalance(t, db, second.ID, "525")

		if _, err := svc.GetTransactionByID(user.ID, keep.ID); err != nil {
			t.Errorf("untouched transaction should remain: %v", err)
		}
	})

	t.Run("ignores_other_users_transactions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewTransactionService(db, NewAccountService(db))
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, owner.ID, testutil.Dec(t, "100"), true)
		tx := testutil.CreateTestTransaction(t, db, owner.ID, account.ID, models.TransactionTypeExpense, testutil.Dec(t, "10"))

		n, err := svc.BulkDeleteTransactions(intruder.ID, []string{tx.ID})
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected nothing deleted, got %d", n)
		}
		testutil.AssertBalance(t, db, account.ID, "100")
		if _, err := svc.GetTransactionByID(owner.ID, tx.ID); err != nil {
			t.Errorf("owner's transaction should remain: %v", err)
		}
	})

	t.Run("empty_ids", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewTransactionService(db, NewAccountService(db))
		user := testutil.CreateTestUser(t, db)

		_, err := svc.BulkDeleteTransactions(user.ID, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}
