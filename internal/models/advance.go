package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Advance status constants
const (
	AdvanceStatusPending = "pending"
	AdvanceStatusPartial = "partial"
	AdvanceStatusPaid    = "paid"
)

// Advance payment type constants
const (
	PaymentTypeFortnightDiscount = "fortnight_discount"
	PaymentTypeExternalCash      = "external_cash"
	PaymentTypeExternalTransfer  = "external_transfer"
)

// Advance is cash lent to a broker and recovered from later commissions
type Advance struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	BrokerID     uint            `gorm:"not null;index" json:"broker_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Reason       string          `gorm:"type:text;not null" json:"reason"`
	Status       string          `gorm:"size:16;not null;index" json:"status"`
	IsRecurring  bool            `gorm:"not null" json:"is_recurring"`
	RecurrenceID *uint           `gorm:"uniqueIndex:idx_advances_recurrence_period" json:"recurrence_id,omitempty"`
	PeriodKey    *string         `gorm:"size:12;uniqueIndex:idx_advances_recurrence_period" json:"period_key,omitempty"`
	CreatedBy    uint            `json:"created_by"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Advance
func (Advance) TableName() string {
	return "advances"
}

// RemainingAfter returns the outstanding balance given the amount already recovered
func (a *Advance) RemainingAfter(paid decimal.Decimal) decimal.Decimal {
	return a.Amount.Sub(paid)
}

// MayReceivePayment returns true if the advance still has a balance
func (a *Advance) MayReceivePayment() bool {
	return a.Status == AdvanceStatusPending || a.Status == AdvanceStatusPartial
}

// AdvanceRecurrence generates one advance per matching fortnight
type AdvanceRecurrence struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	BrokerID        uint            `gorm:"not null;index" json:"broker_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Reason          string          `gorm:"type:text;not null" json:"reason"`
	FortnightType   string          `gorm:"size:8;not null" json:"fortnight_type"`
	StartDate       time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate         *time.Time      `gorm:"type:date" json:"end_date"`
	RecurrenceCount int             `gorm:"not null" json:"recurrence_count"`
	LastGeneratedAt *time.Time      `json:"last_generated_at"`
	IsActive        bool            `gorm:"not null;index" json:"is_active"`
	CreatedBy       uint            `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for AdvanceRecurrence
func (AdvanceRecurrence) TableName() string {
	return "advance_recurrences"
}

// Halves lists the month halves this recurrence fires on
func (r *AdvanceRecurrence) Halves() []string {
	if r.FortnightType == HalfBoth {
		return []string{HalfQ1, HalfQ2}
	}
	return []string{r.FortnightType}
}

// AppliesTo returns true if the recurrence should generate an advance for the given period
func (r *AdvanceRecurrence) AppliesTo(half string, periodStart, periodEnd time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.FortnightType != HalfBoth && r.FortnightType != half {
		return false
	}
	if r.StartDate.After(periodEnd) {
		return false
	}
	return r.EndDate == nil || !r.EndDate.Before(periodStart)
}

// AdvancePaymentLog is an append-only recovery of part of an advance
type AdvancePaymentLog struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AdvanceID      uint            `gorm:"not null;index" json:"advance_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PaymentType    string          `gorm:"size:24;not null" json:"payment_type"`
	Reference      *string         `gorm:"size:128" json:"reference,omitempty"`
	FortnightID    *uint           `gorm:"index" json:"fortnight_id,omitempty"`
	BankTransferID *uint           `gorm:"index" json:"bank_transfer_id,omitempty"`
	AppliedBy      uint            `json:"applied_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName specifies the table name for AdvancePaymentLog
func (AdvancePaymentLog) TableName() string {
	return "advance_logs"
}

// TemporaryDiscount stages an advance deduction against a draft fortnight
type TemporaryDiscount struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	FortnightID uint            `gorm:"not null;uniqueIndex:idx_temp_discounts_slot" json:"fortnight_id"`
	BrokerID    uint            `gorm:"not null;uniqueIndex:idx_temp_discounts_slot" json:"broker_id"`
	AdvanceID   uint            `gorm:"not null;uniqueIndex:idx_temp_discounts_slot;index" json:"advance_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	CreatedBy   uint            `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for TemporaryDiscount
func (TemporaryDiscount) TableName() string {
	return "temp_discounts"
}
