package repository

import (
	"context"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdvanceFilter narrows advance listings
type AdvanceFilter struct {
	BrokerID *uint
	Statuses []string
}

// AdvanceRepository defines the interface for advances and their payment logs
type AdvanceRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Advance, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Advance, error)
	FindByRecurrencePeriod(ctx context.Context, recurrenceID uint, periodKey string) (*models.Advance, error)
	List(ctx context.Context, filter AdvanceFilter) ([]models.Advance, error)
	Create(ctx context.Context, advance *models.Advance) error
	Update(ctx context.Context, advance *models.Advance) error
	Delete(ctx context.Context, id uint) error

	CreateLog(ctx context.Context, log *models.AdvancePaymentLog) error
	FindLogs(ctx context.Context, advanceID uint) ([]models.AdvancePaymentLog, error)
	DeleteLogs(ctx context.Context, advanceID uint) error
	SumPaid(ctx context.Context, advanceID uint) (decimal.Decimal, error)
	SumPaidByAdvance(ctx context.Context, advanceIDs []uint) (map[uint]decimal.Decimal, error)
	CountLogsInPaidFortnights(ctx context.Context, advanceID uint) (int64, error)
	FindLogsByFortnight(ctx context.Context, fortnightID uint) ([]models.AdvancePaymentLog, error)
	DeleteLogsByFortnight(ctx context.Context, fortnightID uint) error
	SumFortnightDiscountsByBroker(ctx context.Context, fortnightID uint) (map[uint]decimal.Decimal, error)
}

type advanceRepository struct {
	db *gorm.DB
}

// NewAdvanceRepository creates a new advance repository
func NewAdvanceRepository(db *gorm.DB) AdvanceRepository {
	return &advanceRepository{db: db}
}

func (r *advanceRepository) FindByID(ctx context.Context, id uint) (*models.Advance, error) {
	var advance models.Advance
	err := r.db.WithContext(ctx).First(&advance, id).Error
	if err != nil {
		return nil, err
	}
	return &advance, nil
}

func (r *advanceRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.Advance, error) {
	var advance models.Advance
	err := forUpdate(r.db.WithContext(ctx)).First(&advance, id).Error
	if err != nil {
		return nil, err
	}
	return &advance, nil
}

func (r *advanceRepository) FindByRecurrencePeriod(ctx context.Context, recurrenceID uint, periodKey string) (*models.Advance, error) {
	var advance models.Advance
	err := r.db.WithContext(ctx).
		Where("recurrence_id = ? AND period_key = ?", recurrenceID, periodKey).
		First(&advance).Error
	if err != nil {
		return nil, err
	}
	return &advance, nil
}

func (r *advanceRepository) List(ctx context.Context, filter AdvanceFilter) ([]models.Advance, error) {
	var advances []models.Advance
	db := r.db.WithContext(ctx)
	if filter.BrokerID != nil {
		db = db.Where("broker_id = ?", *filter.BrokerID)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	err := db.Order("created_at ASC, id ASC").Find(&advances).Error
	return advances, err
}

func (r *advanceRepository) Create(ctx context.Context, advance *models.Advance) error {
	return r.db.WithContext(ctx).Create(advance).Error
}

func (r *advanceRepository) Update(ctx context.Context, advance *models.Advance) error {
	return r.db.WithContext(ctx).Save(advance).Error
}

func (r *advanceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Advance{}, id).Error
}

func (r *advanceRepository) CreateLog(ctx context.Context, log *models.AdvancePaymentLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *advanceRepository) FindLogs(ctx context.Context, advanceID uint) ([]models.AdvancePaymentLog, error) {
	var logs []models.AdvancePaymentLog
	err := r.db.WithContext(ctx).
		Where("advance_id = ?", advanceID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}

func (r *advanceRepository) DeleteLogs(ctx context.Context, advanceID uint) error {
	return r.db.WithContext(ctx).Where("advance_id = ?", advanceID).Delete(&models.AdvancePaymentLog{}).Error
}

// SumPaid adds up the payment logs of one advance
func (r *advanceRepository) SumPaid(ctx context.Context, advanceID uint) (decimal.Decimal, error) {
	sums, err := r.SumPaidByAdvance(ctx, []uint{advanceID})
	if err != nil {
		return decimal.Zero, err
	}
	return sums[advanceID], nil
}

// SumPaidByAdvance returns the recovered amount per advance. Advances without logs are absent.
// Amounts are added in Go so the result is exact on every driver.
func (r *advanceRepository) SumPaidByAdvance(ctx context.Context, advanceIDs []uint) (map[uint]decimal.Decimal, error) {
	sums := make(map[uint]decimal.Decimal, len(advanceIDs))
	if len(advanceIDs) == 0 {
		return sums, nil
	}
	var logs []models.AdvancePaymentLog
	err := r.db.WithContext(ctx).
		Select("advance_id", "amount").
		Where("advance_id IN ?", advanceIDs).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		sums[l.AdvanceID] = sums[l.AdvanceID].Add(l.Amount)
	}
	return sums, nil
}

// CountLogsInPaidFortnights counts logs tied to fortnights that are already closed
func (r *advanceRepository) CountLogsInPaidFortnights(ctx context.Context, advanceID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AdvancePaymentLog{}).
		Joins("JOIN fortnights ON fortnights.id = advance_logs.fortnight_id").
		Where("advance_logs.advance_id = ? AND fortnights.status = ?", advanceID, models.FortnightStatusPaid).
		Count(&count).Error
	return count, err
}

func (r *advanceRepository) FindLogsByFortnight(ctx context.Context, fortnightID uint) ([]models.AdvancePaymentLog, error) {
	var logs []models.AdvancePaymentLog
	err := r.db.WithContext(ctx).
		Where("fortnight_id = ?", fortnightID).
		Order("advance_id ASC, id ASC").
		Find(&logs).Error
	return logs, err
}

func (r *advanceRepository) DeleteLogsByFortnight(ctx context.Context, fortnightID uint) error {
	return r.db.WithContext(ctx).Where("fortnight_id = ?", fortnightID).Delete(&models.AdvancePaymentLog{}).Error
}

// SumFortnightDiscountsByBroker adds up the fortnight_discount logs already tied to a fortnight, per broker
func (r *advanceRepository) SumFortnightDiscountsByBroker(ctx context.Context, fortnightID uint) (map[uint]decimal.Decimal, error) {
	var rows []struct {
		BrokerID uint
		Amount   decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.AdvancePaymentLog{}).
		Select("advances.broker_id AS broker_id, advance_logs.amount AS amount").
		Joins("JOIN advances ON advances.id = advance_logs.advance_id").
		Where("advance_logs.fortnight_id = ? AND advance_logs.payment_type = ?", fortnightID, models.PaymentTypeFortnightDiscount).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[uint]decimal.Decimal)
	for _, row := range rows {
		sums[row.BrokerID] = sums[row.BrokerID].Add(row.Amount)
	}
	return sums, nil
}

// RecurrenceRepository defines the interface for advance recurrences
type RecurrenceRepository interface {
	FindByID(ctx context.Context, id uint) (*models.AdvanceRecurrence, error)
	FindActive(ctx context.Context) ([]models.AdvanceRecurrence, error)
	List(ctx context.Context, brokerID *uint) ([]models.AdvanceRecurrence, error)
	Create(ctx context.Context, recurrence *models.AdvanceRecurrence) error
	Update(ctx context.Context, recurrence *models.AdvanceRecurrence) error
}

type recurrenceRepository struct {
	db *gorm.DB
}

// NewRecurrenceRepository creates a new recurrence repository
func NewRecurrenceRepository(db *gorm.DB) RecurrenceRepository {
	return &recurrenceRepository{db: db}
}

func (r *recurrenceRepository) FindByID(ctx context.Context, id uint) (*models.AdvanceRecurrence, error) {
	var recurrence models.AdvanceRecurrence
	err := r.db.WithContext(ctx).First(&recurrence, id).Error
	if err != nil {
		return nil, err
	}
	return &recurrence, nil
}

func (r *recurrenceRepository) FindActive(ctx context.Context) ([]models.AdvanceRecurrence, error) {
	var recurrences []models.AdvanceRecurrence
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&recurrences).Error
	return recurrences, err
}

func (r *recurrenceRepository) List(ctx context.Context, brokerID *uint) ([]models.AdvanceRecurrence, error) {
	var recurrences []models.AdvanceRecurrence
	db := r.db.WithContext(ctx)
	if brokerID != nil {
		db = db.Where("broker_id = ?", *brokerID)
	}
	err := db.Order("id ASC").Find(&recurrences).Error
	return recurrences, err
}

func (r *recurrenceRepository) Create(ctx context.Context, recurrence *models.AdvanceRecurrence) error {
	return r.db.WithContext(ctx).Create(recurrence).Error
}

func (r *recurrenceRepository) Update(ctx context.Context, recurrence *models.AdvanceRecurrence) error {
	return r.db.WithContext(ctx).Save(recurrence).Error
}
