package services

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"spendwise/internal/logger"
	"spendwise/internal/models"
)

// Audit actions recorded for ledger mutations.
const (
	AuditCreateTransaction = "CREATE_TRANSACTION"
	AuditBulkDelete        = "BULK_DELETE_TRANSACTIONS"
	AuditSetDefaultAccount = "SET_DEFAULT_ACCOUNT"
	AuditDeleteAccount     = "DELETE_ACCOUNT"
	AuditCreateAccount     = "CREATE_ACCOUNT"
	AuditUpsertBudget      = "UPSERT_BUDGET"
)

type auditService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, log: logger.Named("audit")}
}

// Log appends an audit entry. It never fails the caller: a write error only
// shows up in the log.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      s.encodeChanges(action, changes),
	}
	if err := s.db.Create(entry).Error; err != nil {
		s.log.Errorw("audit entry dropped",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource", resourceType+"/"+resourceID,
		)
	}
}

func (s *auditService) encodeChanges(action string, changes map[string]interface{}) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		s.log.Warnw("unencodable audit changes", "action", action, "error", err)
		return "{}"
	}
	return string(data)
}
