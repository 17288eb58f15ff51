package services

import (
	"testing"

	"spendwise/internal/models"
	"spendwise/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)

	svc.Log(user.ID, AuditBulkDelete, "transaction", "", "10.0.0.1", map[string]interface{}{"requested": 3, "deleted": 2})
	svc.Log(user.ID, AuditUpsertBudget, "budget", "b-1", "10.0.0.1", nil)
	// Unencodable changes still produce an entry.
	svc.Log(user.ID, AuditCreateAccount, "account", "a-1", "", map[string]interface{}{"bad": make(chan int)})

	var entries []models.AuditLog
	if err := db.Where("user_id = ?", user.ID).Order("action").Find(&entries).Error; err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	byAction := map[string]models.AuditLog{}
	for _, e := range entries {
		byAction[e.Action] = e
	}
	if got := byAction[AuditBulkDelete].Changes; got != `{"deleted":2,"requested":3}` {
		t.Errorf("unexpected changes %q", got)
	}
	if got := byAction[AuditUpsertBudget]; got.Changes != "" || got.ResourceID != "b-1" || got.IPAddress != "10.0.0.1" {
		t.Errorf("unexpected budget entry %+v", got)
	}
	if got := byAction[AuditCreateAccount].Changes; got != "{}" {
		t.Errorf("expected {} for unencodable changes, got %q", got)
	}
}
