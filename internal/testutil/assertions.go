package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "spendwise/internal/errors"
)

// AssertAppError fails unless err carries an *AppError with code somewhere
// in its chain.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected error %s, got nil", code)
	case !errors.As(err, &appErr):
		t.Fatalf("expected error %s, got %T: %v", code, err, err)
	case appErr.Code != code:
		t.Errorf("expected error %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

// AssertNoError stops the test on a non-nil err.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDecimal compares amounts by value, so "10" equals "10.00".
func AssertDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(Dec(t, want)) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// AssertBalance fails unless the stored account balance equals want.
func AssertBalance(t *testing.T, db *gorm.DB, accountID string, want string) {
	t.Helper()
	AssertDecimal(t, ReloadAccount(t, db, accountID).Balance, want)
}
