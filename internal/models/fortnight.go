package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Fortnight status constants
const (
	FortnightStatusDraft = "draft"
	FortnightStatusPaid  = "paid"
)

// Month halves. BOTH is only valid on recurrences.
const (
	HalfQ1   = "Q1"
	HalfQ2   = "Q2"
	HalfBoth = "BOTH"
)

// Fortnight is a biweekly pay period (quincena)
type Fortnight struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	PeriodStart   time.Time  `gorm:"type:date;not null;index" json:"period_start"`
	PeriodEnd     time.Time  `gorm:"type:date;not null" json:"period_end"`
	Status        string     `gorm:"size:16;not null;uniqueIndex:idx_fortnights_single_draft,where:status = 'draft'" json:"status"`
	NotifyBrokers bool       `gorm:"not null" json:"notify_brokers"`
	CreatedBy     uint       `json:"created_by"`
	PaidAt        *time.Time `json:"paid_at"`
	PaidBy        *uint      `json:"paid_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Fortnight
func (Fortnight) TableName() string {
	return "fortnights"
}

// IsDraft returns true while the fortnight can still be edited
func (f *Fortnight) IsDraft() bool {
	return f.Status == FortnightStatusDraft
}

// MayPay returns true if the fortnight can be closed
func (f *Fortnight) MayPay() bool {
	return f.Status == FortnightStatusDraft
}

// MayDiscard returns true if the fortnight can be thrown away
func (f *Fortnight) MayDiscard() bool {
	return f.Status == FortnightStatusDraft
}

// Half returns Q1 or Q2 depending on the period start
func (f *Fortnight) Half() string {
	return PeriodHalf(f.PeriodStart)
}

// PeriodKey identifies the month half this fortnight pays, e.g. 2026-10-Q1
func (f *Fortnight) PeriodKey() string {
	return PeriodKeyFor(f.PeriodStart, f.Half())
}

// PeriodHalf maps days 1–15 to Q1 and the rest of the month to Q2
func PeriodHalf(t time.Time) string {
	if t.Day() <= 15 {
		return HalfQ1
	}
	return HalfQ2
}

// PeriodKeyFor builds the YYYY-MM-Qn key for the month of t
func PeriodKeyFor(t time.Time, half string) string {
	return fmt.Sprintf("%04d-%02d-%s", t.Year(), int(t.Month()), half)
}

// HalfBounds returns the first and last day of the given half in t's month
func HalfBounds(t time.Time, half string) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	if half == HalfQ1 {
		return first, first.AddDate(0, 0, 14)
	}
	return first.AddDate(0, 0, 15), first.AddDate(0, 1, -1)
}

// Release modes for retained broker totals
const (
	ReleaseModeNow           = "now"
	ReleaseModeNextFortnight = "next_fortnight"
)

// BrokerFortnightTotal is the frozen per-broker result of a paid fortnight.
// Draft fortnights never have rows here; their totals are always derived.
type BrokerFortnightTotal struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	FortnightID        uint            `gorm:"not null;uniqueIndex:idx_fortnight_broker_totals_pair" json:"fortnight_id"`
	BrokerID           uint            `gorm:"not null;uniqueIndex:idx_fortnight_broker_totals_pair;index" json:"broker_id"`
	CommissionAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"commission_amount"`
	AdjustmentAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"adjustment_amount"`
	CarriedAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"carried_amount"`
	GrossAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"gross_amount"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"discount_amount"`
	NetAmount          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"net_amount"`
	ItemCount          int             `gorm:"not null" json:"item_count"`
	IsHouse            bool            `gorm:"not null" json:"is_house"`
	IsRetained         bool            `gorm:"not null;index" json:"is_retained"`
	RetainedAt         *time.Time      `json:"retained_at"`
	RetainReason       *string         `gorm:"type:text" json:"retain_reason,omitempty"`
	ReleasedAt         *time.Time      `json:"released_at"`
	ReleaseMode        *string         `gorm:"size:20" json:"release_mode,omitempty"`
	ReleaseFortnightID *uint           `gorm:"index" json:"release_fortnight_id,omitempty"`
	ReleaseBatchID     *string         `gorm:"size:36" json:"release_batch_id,omitempty"`
	BankAccountNo      string          `gorm:"size:64" json:"bank_account_no"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName specifies the table name for BrokerFortnightTotal
func (BrokerFortnightTotal) TableName() string {
	return "fortnight_broker_totals"
}

// MayRetain returns true if there is a positive payment that can still be withheld
func (t *BrokerFortnightTotal) MayRetain() bool {
	return !t.IsRetained && !t.IsHouse && t.ReleasedAt == nil && t.NetAmount.IsPositive()
}

// MayRelease returns true if the total is currently withheld
func (t *BrokerFortnightTotal) MayRelease() bool {
	return t.IsRetained
}

// IsPayable returns true if the total belongs in the fortnight's payment instructions.
// Released totals are paid through their release instead.
func (t *BrokerFortnightTotal) IsPayable() bool {
	return !t.IsHouse && !t.IsRetained && t.ReleasedAt == nil && t.NetAmount.IsPositive()
}
