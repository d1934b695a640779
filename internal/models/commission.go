package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commission item status constants
const (
	ItemStatusUnidentified = "unidentified" // draft, no broker yet
	ItemStatusProvisional  = "provisional"  // draft, broker chosen but reversible
	ItemStatusIdentified   = "identified"   // broker fixed at fortnight close
	ItemStatusPending      = "pending"      // unclaimed pool after close
	ItemStatusInReview     = "in_review"    // part of a pending adjustment report
	ItemStatusAssigned     = "assigned"     // resolved through an adjustment or the house broker
)

// AgingDays is the age after which unattributed items must go to the house broker
const AgingDays = 90

// CommissionImport is one insurer report loaded into a draft fortnight
type CommissionImport struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	FortnightID uint            `gorm:"not null;index" json:"fortnight_id"`
	InsurerID   uint            `gorm:"not null;index" json:"insurer_id"`
	FileName    string          `gorm:"size:255" json:"file_name"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	ItemCount   int             `gorm:"not null" json:"item_count"`
	CreatedBy   uint            `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for CommissionImport
func (CommissionImport) TableName() string {
	return "comm_imports"
}

// CommissionItem is a single line of an insurer report
type CommissionItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ImportID        uint            `gorm:"not null;index" json:"import_id"`
	FortnightID     uint            `gorm:"not null;index" json:"fortnight_id"`
	InsurerID       uint            `gorm:"not null;index" json:"insurer_id"`
	PolicyNumber    string          `gorm:"size:64;index" json:"policy_number"`
	InsuredName     string          `gorm:"size:255" json:"insured_name"`
	GrossAmount     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"gross_amount"`
	BrokerID        *uint           `gorm:"index" json:"broker_id"`
	PercentOverride *Fraction       `json:"percent_override,omitempty"`
	Status          string          `gorm:"size:20;not null;index" json:"status"`
	AssignedAt      *time.Time      `json:"assigned_at"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for CommissionItem
func (CommissionItem) TableName() string {
	return "comm_items"
}

// IsUnattributed returns true while no broker owns the item
func (i *CommissionItem) IsUnattributed() bool {
	return i.BrokerID == nil
}

// MayTempIdentify returns true if the item can be provisionally attributed
func (i *CommissionItem) MayTempIdentify() bool {
	return i.Status == ItemStatusUnidentified || i.Status == ItemStatusProvisional
}

// MayTempUnidentify returns true if a provisional attribution can be undone
func (i *CommissionItem) MayTempUnidentify() bool {
	return i.Status == ItemStatusProvisional
}

// MayClaim returns true if the item sits in the unclaimed pool
func (i *CommissionItem) MayClaim() bool {
	return i.Status == ItemStatusPending && i.BrokerID == nil
}

// IsAged returns true once the item has waited AgingDays without a broker
func (i *CommissionItem) IsAged(now time.Time) bool {
	if !i.IsUnattributed() {
		return false
	}
	if i.Status != ItemStatusUnidentified && i.Status != ItemStatusPending {
		return false
	}
	return !i.CreatedAt.After(now.AddDate(0, 0, -AgingDays))
}
