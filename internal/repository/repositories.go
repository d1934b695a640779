package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repositories holds all repository instances
type Repositories struct {
	db *gorm.DB

	Broker       BrokerRepository
	Insurer      InsurerRepository
	Fortnight    FortnightRepository
	Commission   CommissionRepository
	Advance      AdvanceRepository
	Recurrence   RecurrenceRepository
	Discount     DiscountRepository
	BrokerTotal  BrokerTotalRepository
	Adjustment   AdjustmentRepository
	BankTransfer BankTransferRepository
	Notification NotificationRepository
	Audit        AuditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Broker:       NewBrokerRepository(db),
		Insurer:      NewInsurerRepository(db),
		Fortnight:    NewFortnightRepository(db),
		Commission:   NewCommissionRepository(db),
		Advance:      NewAdvanceRepository(db),
		Recurrence:   NewRecurrenceRepository(db),
		Discount:     NewDiscountRepository(db),
		BrokerTotal:  NewBrokerTotalRepository(db),
		Adjustment:   NewAdjustmentRepository(db),
		BankTransfer: NewBankTransferRepository(db),
		Notification: NewNotificationRepository(db),
		Audit:        NewAuditRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single database transaction.
// Returning an error from fn rolls back every write made through tx.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// Snapshot runs fn inside a read-only repeatable-read transaction so every
// query observes the same committed state.
func (r *Repositories) Snapshot(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

func (q *ListQuery) offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// forUpdate locks the selected rows until the surrounding transaction ends.
// SQLite ignores the clause and serializes writers instead.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
