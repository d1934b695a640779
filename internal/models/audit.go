package models

import (
	"time"
)

// Audit actions
const (
	AuditCreate   = "CREATE"
	AuditUpdate   = "UPDATE"
	AuditDelete   = "DELETE"
	AuditClose    = "CLOSE"
	AuditApprove  = "APPROVE"
	AuditReject   = "REJECT"
	AuditPay      = "PAY"
	AuditRetain   = "RETAIN"
	AuditRelease  = "RELEASE"
	AuditIdentify = "IDENTIFY"
)

// AuditLog represents a ledger audit entry
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Action    string    `gorm:"size:50;not null" json:"action"`
	Entity    string    `gorm:"size:50;not null;index:idx_audit_logs_entity" json:"entity"` // Fortnight, Advance, AdjustmentReport, ...
	EntityID  uint      `gorm:"index:idx_audit_logs_entity" json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
