package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bank transfer status constants
const (
	BankTransferStatusAvailable = "available"
	BankTransferStatusPartial   = "partial"
	BankTransferStatusUsed      = "used"
)

// BankTransfer is an incoming transfer recorded by the bank cutoff import.
// Rows belong to the bank registry; this service only reads them and posts usage.
type BankTransfer struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Reference    string          `gorm:"size:128;uniqueIndex;not null" json:"reference"`
	Amount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	UsedAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"used_amount"`
	Status       string          `gorm:"size:16;not null" json:"status"`
	TransferDate *time.Time      `gorm:"type:date" json:"transfer_date"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName specifies the table name for BankTransfer
func (BankTransfer) TableName() string {
	return "bank_transfers"
}

// Remaining returns the amount still usable from the transfer
func (t *BankTransfer) Remaining() decimal.Decimal {
	return t.Amount.Sub(t.UsedAmount)
}

// BankTransferUsage records which advance payment consumed part of a transfer
type BankTransferUsage struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	BankTransferID      uint            `gorm:"not null;index" json:"bank_transfer_id"`
	AdvancePaymentLogID uint            `gorm:"not null;index" json:"advance_payment_log_id"`
	Amount              decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	CreatedAt           time.Time       `json:"created_at"`
}

// TableName specifies the table name for BankTransferUsage
func (BankTransferUsage) TableName() string {
	return "bank_transfer_usages"
}
