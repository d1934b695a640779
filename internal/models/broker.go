package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrFractionRange is returned when a commission share is not within [0, 1]
var ErrFractionRange = errors.New("el porcentaje debe expresarse como fracción entre 0 y 1")

var one = decimal.NewFromInt(1)

// Fraction is a commission share stored as a fraction of one (0.82 means 82%).
// The zero value is a valid 0% share.
type Fraction struct {
	d decimal.Decimal
}

// NewFraction validates d and wraps it. Values such as 82 are rejected, never rescaled.
func NewFraction(d decimal.Decimal) (Fraction, error) {
	if d.IsNegative() || d.GreaterThan(one) {
		return Fraction{}, fmt.Errorf("%w (recibido %s)", ErrFractionRange, d.String())
	}
	return Fraction{d: d}, nil
}

// MustFraction parses s and panics if it is not a valid fraction. Intended for constants and tests.
func MustFraction(s string) Fraction {
	f, err := NewFraction(decimal.RequireFromString(s))
	if err != nil {
		panic(err)
	}
	return f
}

// Decimal returns the raw fraction
func (f Fraction) Decimal() decimal.Decimal {
	return f.d
}

// Apply returns amount × fraction
func (f Fraction) Apply(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(f.d)
}

// Percent returns the share as a 0–100 value for display
func (f Fraction) Percent() decimal.Decimal {
	return f.d.Mul(decimal.NewFromInt(100))
}

func (f Fraction) String() string {
	return f.d.String()
}

// Value implements driver.Valuer
func (f Fraction) Value() (driver.Value, error) {
	return f.d.String(), nil
}

// Scan implements sql.Scanner and re-validates the stored value
func (f *Fraction) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	parsed, err := NewFraction(d)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// GormDataType sets the column type used by migrations
func (Fraction) GormDataType() string {
	return "decimal(5,4)"
}

func (f Fraction) MarshalJSON() ([]byte, error) {
	return f.d.MarshalJSON()
}

func (f *Fraction) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := NewFraction(d)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Broker is a commission earner. The house broker collects items nobody claims.
type Broker struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:255;index" json:"email"`
	UserID         *uint     `gorm:"index" json:"user_id"`
	PercentDefault Fraction  `gorm:"not null" json:"percent_default"`
	IsHouse        bool      `gorm:"not null;index" json:"is_house"`
	Active         bool      `gorm:"not null" json:"active"`
	BankAccountNo  string    `gorm:"size:64" json:"bank_account_no"`
	BankName       string    `gorm:"size:128" json:"bank_name"`
	AccountHolder  string    `gorm:"size:255" json:"account_holder"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for Broker
func (Broker) TableName() string {
	return "brokers"
}

// Share returns the broker's part of a raw commission amount, honoring an optional override
func (b *Broker) Share(raw decimal.Decimal, override *Fraction) decimal.Decimal {
	if override != nil {
		return override.Apply(raw)
	}
	return b.PercentDefault.Apply(raw)
}

// Insurer is the carrier that issues commission reports
type Insurer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Insurer
func (Insurer) TableName() string {
	return "insurers"
}
