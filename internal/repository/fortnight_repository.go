package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lissa/commissions-api/internal/models"
	"gorm.io/gorm"
)

// FortnightRepository defines the interface for fortnight data access
type FortnightRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Fortnight, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Fortnight, error)
	FindDraft(ctx context.Context) (*models.Fortnight, error)
	List(ctx context.Context, year int) ([]models.Fortnight, error)
	Create(ctx context.Context, fortnight *models.Fortnight) error
	Update(ctx context.Context, fortnight *models.Fortnight) error
	Delete(ctx context.Context, id uint) error
}

type fortnightRepository struct {
	db *gorm.DB
}

// NewFortnightRepository creates a new fortnight repository
func NewFortnightRepository(db *gorm.DB) FortnightRepository {
	return &fortnightRepository{db: db}
}

func (r *fortnightRepository) FindByID(ctx context.Context, id uint) (*models.Fortnight, error) {
	var fortnight models.Fortnight
	err := r.db.WithContext(ctx).First(&fortnight, id).Error
	if err != nil {
		return nil, err
	}
	return &fortnight, nil
}

func (r *fortnightRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.Fortnight, error) {
	var fortnight models.Fortnight
	err := forUpdate(r.db.WithContext(ctx)).First(&fortnight, id).Error
	if err != nil {
		return nil, err
	}
	return &fortnight, nil
}

// FindDraft returns the open fortnight or gorm.ErrRecordNotFound
func (r *fortnightRepository) FindDraft(ctx context.Context) (*models.Fortnight, error) {
	var fortnight models.Fortnight
	err := r.db.WithContext(ctx).
		Where("status = ?", models.FortnightStatusDraft).
		First(&fortnight).Error
	if err != nil {
		return nil, err
	}
	return &fortnight, nil
}

// List returns fortnights newest first, optionally restricted to one calendar year
func (r *fortnightRepository) List(ctx context.Context, year int) ([]models.Fortnight, error) {
	var fortnights []models.Fortnight
	db := r.db.WithContext(ctx)
	if year > 0 {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(1, 0, 0)
		db = db.Where("period_start >= ? AND period_start < ?", from, to)
	}
	if err := db.Order("period_start DESC, id DESC").Find(&fortnights).Error; err != nil {
		return nil, fmt.Errorf("list fortnights: %w", err)
	}
	return fortnights, nil
}

func (r *fortnightRepository) Create(ctx context.Context, fortnight *models.Fortnight) error {
	return r.db.WithContext(ctx).Create(fortnight).Error
}

func (r *fortnightRepository) Update(ctx context.Context, fortnight *models.Fortnight) error {
	return r.db.WithContext(ctx).Save(fortnight).Error
}

func (r *fortnightRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Fortnight{}, id).Error
}

// BrokerTotalRepository defines the interface for frozen fortnight totals
type BrokerTotalRepository interface {
	CreateBatch(ctx context.Context, totals []models.BrokerFortnightTotal) error
	FindByFortnight(ctx context.Context, fortnightID uint) ([]models.BrokerFortnightTotal, error)
	FindOneForUpdate(ctx context.Context, fortnightID, brokerID uint) (*models.BrokerFortnightTotal, error)
	FindRetained(ctx context.Context) ([]models.BrokerFortnightTotal, error)
	FindReleasedInto(ctx context.Context, fortnightID uint) ([]models.BrokerFortnightTotal, error)
	Update(ctx context.Context, total *models.BrokerFortnightTotal) error
}

type brokerTotalRepository struct {
	db *gorm.DB
}

// NewBrokerTotalRepository creates a new broker total repository
func NewBrokerTotalRepository(db *gorm.DB) BrokerTotalRepository {
	return &brokerTotalRepository{db: db}
}

func (r *brokerTotalRepository) CreateBatch(ctx context.Context, totals []models.BrokerFortnightTotal) error {
	if len(totals) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&totals).Error
}

func (r *brokerTotalRepository) FindByFortnight(ctx context.Context, fortnightID uint) ([]models.BrokerFortnightTotal, error) {
	var totals []models.BrokerFortnightTotal
	err := r.db.WithContext(ctx).
		Where("fortnight_id = ?", fortnightID).
		Order("broker_id ASC").
		Find(&totals).Error
	return totals, err
}

func (r *brokerTotalRepository) FindOneForUpdate(ctx context.Context, fortnightID, brokerID uint) (*models.BrokerFortnightTotal, error) {
	var total models.BrokerFortnightTotal
	err := forUpdate(r.db.WithContext(ctx)).
		Where("fortnight_id = ? AND broker_id = ?", fortnightID, brokerID).
		First(&total).Error
	if err != nil {
		return nil, err
	}
	return &total, nil
}

func (r *brokerTotalRepository) FindRetained(ctx context.Context) ([]models.BrokerFortnightTotal, error) {
	var totals []models.BrokerFortnightTotal
	err := r.db.WithContext(ctx).
		Where("is_retained = ?", true).
		Order("fortnight_id ASC, broker_id ASC").
		Find(&totals).Error
	return totals, err
}

// FindReleasedInto returns retained totals whose net was carried into the given draft
func (r *brokerTotalRepository) FindReleasedInto(ctx context.Context, fortnightID uint) ([]models.BrokerFortnightTotal, error) {
	var totals []models.BrokerFortnightTotal
	err := r.db.WithContext(ctx).
		Where("release_fortnight_id = ? AND release_mode = ?", fortnightID, models.ReleaseModeNextFortnight).
		Order("broker_id ASC, fortnight_id ASC").
		Find(&totals).Error
	return totals, err
}

func (r *brokerTotalRepository) Update(ctx context.Context, total *models.BrokerFortnightTotal) error {
	return r.db.WithContext(ctx).Save(total).Error
}
