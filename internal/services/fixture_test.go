package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lissa/commissions-api/internal/database"
	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var master = Actor{UserID: 1, Role: models.RoleMaster}

// fixture wires every service against a throwaway SQLite ledger
type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	nextUser uint

	repos         *repository.Repositories
	notifications *NotificationService
	audit         *AuditService

	brokers     *BrokerService
	fortnights  *FortnightService
	imports     *ImportService
	classifier  *ClassifierService
	advances    *AdvanceService
	recurrences *RecurrenceService
	discounts   *DiscountService
	adjustments *AdjustmentService
	retentions  *RetentionService
	exports     *ExportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), database.Options(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	repos := repository.NewRepositories(db)
	notifications := NewNotificationService(repos.Notification, []uint{master.UserID})
	audit := NewAuditService(repos.Audit)
	fortnights := NewFortnightService(repos, notifications, audit)

	return &fixture{
		t:             t,
		ctx:           context.Background(),
		db:            db,
		repos:         repos,
		notifications: notifications,
		audit:         audit,
		brokers:       NewBrokerService(repos, audit),
		fortnights:    fortnights,
		imports:       NewImportService(repos, audit),
		classifier:    NewClassifierService(repos, notifications, audit),
		advances:      NewAdvanceService(repos, audit),
		recurrences:   NewRecurrenceService(repos, audit),
		discounts:     NewDiscountService(repos, audit),
		adjustments:   NewAdjustmentService(repos, notifications, audit),
		retentions:    NewRetentionService(repos, notifications, audit),
		exports:       NewExportService(repos, fortnights, store),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// broker registers an active broker; name must be a single word so the email validates
func (f *fixture) broker(name, percent string) *models.Broker {
	f.t.Helper()
	f.nextUser++
	userID := 100 + f.nextUser
	b, err := f.brokers.Create(f.ctx, master, BrokerInput{
		Name:           name,
		Email:          name + "@example.com",
		UserID:         &userID,
		PercentDefault: models.MustFraction(percent),
		BankAccountNo:  "ACC-" + name,
		BankName:       "Banco Atlántida",
	})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) house() *models.Broker {
	f.t.Helper()
	b, err := f.brokers.Create(f.ctx, master, BrokerInput{
		Name:           "Oficina",
		PercentDefault: models.MustFraction("1"),
		IsHouse:        true,
	})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) insurer(name string) *models.Insurer {
	f.t.Helper()
	in, err := f.brokers.CreateInsurer(f.ctx, master, name)
	require.NoError(f.t, err)
	return in
}

func (f *fixture) draft(start, end string) *models.Fortnight {
	f.t.Helper()
	res, err := f.fortnights.CreateDraft(f.ctx, master, CreateDraftInput{
		PeriodStart: date(start),
		PeriodEnd:   date(end),
	})
	require.NoError(f.t, err)
	return res.Fortnight
}

func (f *fixture) ingest(fortnightID, insurerID uint, rows ...ImportRow) []models.CommissionItem {
	f.t.Helper()
	imp, err := f.imports.Ingest(f.ctx, master, ImportBatch{
		FortnightID: fortnightID,
		InsurerID:   insurerID,
		FileName:    "reporte.xlsx",
		Rows:        rows,
	})
	require.NoError(f.t, err)
	items, err := f.repos.Commission.FindItems(f.ctx, repository.ItemFilter{ImportID: imp.ID})
	require.NoError(f.t, err)
	return items
}

// row builds an import line; a non-nil broker pre-identifies it
func row(policy, insured, amount string, broker *models.Broker) ImportRow {
	r := ImportRow{PolicyNumber: policy, InsuredName: insured, GrossAmount: dec(amount)}
	if broker != nil {
		id := broker.ID
		r.BrokerID = &id
	}
	return r
}

func (f *fixture) advance(brokerID uint, amount string) *models.Advance {
	f.t.Helper()
	adv, err := f.advances.Create(f.ctx, master, CreateAdvanceInput{BrokerID: brokerID, Amount: dec(amount), Reason: "Adelanto de prueba"})
	require.NoError(f.t, err)
	return adv
}

func (f *fixture) totals(fortnightID uint) *FortnightTotals {
	f.t.Helper()
	totals, err := f.fortnights.Recalculate(f.ctx, fortnightID)
	require.NoError(f.t, err)
	return totals
}

func (f *fixture) line(fortnightID, brokerID uint) BrokerLine {
	f.t.Helper()
	l, ok := f.totals(fortnightID).Line(brokerID)
	require.True(f.t, ok, "no line for broker %d", brokerID)
	return l
}

// count returns the number of rows of a model
func (f *fixture) count(model interface{}) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(model).Count(&n).Error)
	return n
}

// age backdates an item so the aging rule sees it as created days ago
func (f *fixture) age(itemID uint, days int) {
	f.t.Helper()
	created := time.Now().AddDate(0, 0, -days)
	require.NoError(f.t, f.db.Model(&models.CommissionItem{}).Where("id = ?", itemID).Update("created_at", created).Error)
}

func brokerActor(b *models.Broker) Actor {
	id := b.ID
	return Actor{UserID: *b.UserID, Role: models.RoleBroker, BrokerID: &id}
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, kind, derr.Kind, "unexpected error: %v", err)
}
