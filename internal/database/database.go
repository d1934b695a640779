package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/lissa/commissions-api/internal/models"
	pkgLogger "github.com/lissa/commissions-api/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the ledger database. DSNs starting with sqlite: or file: use SQLite,
// anything else is a PostgreSQL URL.
func Connect(databaseURL, environment string) (*gorm.DB, error) {
	// SQL is only traced outside production
	logLevel := logger.Warn
	if environment != "production" {
		logLevel = logger.Info
	}

	gormLogger := pkgLogger.NewGormLogger(
		logLevel,
		200*time.Millisecond,
	)

	dialector, embedded := Dialector(databaseURL)
	db, err := gorm.Open(dialector, Options(gormLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool; SQLite takes one writer at a time
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	if embedded {
		sqlDB.SetMaxOpenConns(1)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Dialector picks the gorm driver for a DSN and reports whether it is SQLite
func Dialector(databaseURL string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite:")), true
	case strings.HasPrefix(databaseURL, "file:"):
		return sqlite.Open(databaseURL), true
	default:
		return postgres.Open(databaseURL), false
	}
}

// Options returns the gorm settings shared by every dialect.
// TranslateError lets services detect unique violations as gorm.ErrDuplicatedKey.
func Options(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:                 l,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
}

// Migrate creates or updates the ledger schema
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Broker{}, &models.Insurer{},
		&models.Fortnight{}, &models.BrokerFortnightTotal{},
		&models.CommissionImport{}, &models.CommissionItem{},
		&models.Advance{}, &models.AdvanceRecurrence{}, &models.AdvancePaymentLog{}, &models.TemporaryDiscount{},
		&models.AdjustmentReport{}, &models.AdjustmentReportItem{},
		&models.BankTransfer{}, &models.BankTransferUsage{},
		&models.Notification{}, &models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
