package services

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"spendwise/internal/models"
	"spendwise/internal/testutil"
)

func TestSignedAmount(t *testing.T) {
	amount := testutil.Dec(t, "150.25")

	income, err := SignedAmount(models.TransactionTypeIncome, amount)
	testutil.AssertNoError(t, err)
	if !income.Equal(amount) {
		t.Errorf("income should be positive, got %s", income)
	}

	expense, err := SignedAmount(models.TransactionTypeExpense, amount)
	testutil.AssertNoError(t, err)
	if !expense.Equal(amount.Neg()) {
		t.Errorf("expense should be negative, got %s", expense)
	}

	_, err = SignedAmount("TRANSFER", amount)
	testutil.AssertAppError(t, err, "INVALID_TRANSACTION_TYPE")
}

func TestApplyBalanceDelta(t *testing.T) {
	t.Run("expense_reduces_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, testutil.Dec(t, "1000"), true)

		delta, err := SignedAmount(models.TransactionTypeExpense, testutil.Dec(t, "150"))
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, ApplyBalanceDelta(db, account.ID, delta))

		testutil.AssertBalance(t, db, account.ID, "850")
	})

	t.Run("missing_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)

		err := ApplyBalanceDelta(db, "0191b0b6-0000-7000-8000-000000000000", testutil.Dec(t, "1"))
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("rolls_back_with_caller", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, testutil.Dec(t, "1000"), true)

		boom := errors.New("boom")
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := ApplyBalanceDelta(tx, account.ID, testutil.Dec(t, "-200")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		testutil.AssertBalance(t, db, account.ID, "1000")
	})
}
