package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Adjustment report status constants
const (
	AdjustmentStatusPending  = "pending"
	AdjustmentStatusApproved = "approved"
	AdjustmentStatusRejected = "rejected"
	AdjustmentStatusPaid     = "paid"
)

// Payment timing constants for approved adjustments
const (
	PaymentTimingNow           = "now"
	PaymentTimingNextFortnight = "next_fortnight"
)

// AdjustmentReport is a broker's claim over unidentified commission items
type AdjustmentReport struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	BrokerID        uint            `gorm:"not null;index" json:"broker_id"`
	Status          string          `gorm:"size:16;not null;index" json:"status"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	PaymentTiming   *string         `gorm:"size:20" json:"payment_timing,omitempty"`
	FortnightID     *uint           `gorm:"index" json:"fortnight_id,omitempty"`
	BrokerNotes     *string         `gorm:"type:text" json:"broker_notes,omitempty"`
	AdminNotes      *string         `gorm:"type:text" json:"admin_notes,omitempty"`
	RejectionReason *string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	SubmittedBy     uint            `json:"submitted_by"`
	ReviewedBy      *uint           `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	PaymentBatchID  *string         `gorm:"size:36;index" json:"payment_batch_id,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Items []AdjustmentReportItem `gorm:"foreignKey:ReportID" json:"items,omitempty"`
}

// TableName specifies the table name for AdjustmentReport
func (AdjustmentReport) TableName() string {
	return "adjustment_reports"
}

// MayApprove returns true if the report is awaiting review
func (r *AdjustmentReport) MayApprove() bool {
	return r.Status == AdjustmentStatusPending
}

// MayReject returns true if the report is awaiting review
func (r *AdjustmentReport) MayReject() bool {
	return r.Status == AdjustmentStatusPending
}

// MayMarkPaid returns true if the report is approved for immediate payment.
// Next-fortnight reports are paid by the fortnight close instead.
func (r *AdjustmentReport) MayMarkPaid() bool {
	if r.Status != AdjustmentStatusApproved {
		return false
	}
	return r.PaymentTiming != nil && *r.PaymentTiming == PaymentTimingNow
}

// IsFoldable returns true if the report should join the next draft's gross
func (r *AdjustmentReport) IsFoldable() bool {
	return r.Status == AdjustmentStatusApproved &&
		r.PaymentTiming != nil && *r.PaymentTiming == PaymentTimingNextFortnight &&
		r.FortnightID == nil
}

// AdjustmentReportItem links a claimed commission item to its report
type AdjustmentReportItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ReportID     uint            `gorm:"not null;index" json:"report_id"`
	ItemID       uint            `gorm:"not null;index" json:"item_id"`
	RawAmount    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"raw_amount"`
	BrokerAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"broker_amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TableName specifies the table name for AdjustmentReportItem
func (AdjustmentReportItem) TableName() string {
	return "adjustment_report_items"
}
