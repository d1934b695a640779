package repository

import (
	"context"

	"github.com/lissa/commissions-api/internal/models"
	"gorm.io/gorm"
)

// DiscountRepository defines the interface for discounts staged on a draft fortnight
type DiscountRepository interface {
	Find(ctx context.Context, fortnightID, brokerID, advanceID uint) (*models.TemporaryDiscount, error)
	FindByFortnight(ctx context.Context, fortnightID uint) ([]models.TemporaryDiscount, error)
	FindByBroker(ctx context.Context, fortnightID, brokerID uint) ([]models.TemporaryDiscount, error)
	FindByAdvance(ctx context.Context, advanceID uint) ([]models.TemporaryDiscount, error)
	Create(ctx context.Context, discount *models.TemporaryDiscount) error
	Update(ctx context.Context, discount *models.TemporaryDiscount) error
	Delete(ctx context.Context, id uint) error
	DeleteByFortnight(ctx context.Context, fortnightID uint) error
	DeleteByAdvance(ctx context.Context, advanceID uint) error
}

type discountRepository struct {
	db *gorm.DB
}

// NewDiscountRepository creates a new discount repository
func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepository{db: db}
}

func (r *discountRepository) Find(ctx context.Context, fortnightID, brokerID, advanceID uint) (*models.TemporaryDiscount, error) {
	var discount models.TemporaryDiscount
	err := r.db.WithContext(ctx).
		Where("fortnight_id = ? AND broker_id = ? AND advance_id = ?", fortnightID, brokerID, advanceID).
		First(&discount).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *discountRepository) FindByFortnight(ctx context.Context, fortnightID uint) ([]models.TemporaryDiscount, error) {
	var discounts []models.TemporaryDiscount
	err := r.db.WithContext(ctx).
		Where("fortnight_id = ?", fortnightID).
		Order("broker_id ASC, advance_id ASC").
		Find(&discounts).Error
	return discounts, err
}

func (r *discountRepository) FindByBroker(ctx context.Context, fortnightID, brokerID uint) ([]models.TemporaryDiscount, error) {
	var discounts []models.TemporaryDiscount
	err := r.db.WithContext(ctx).
		Where("fortnight_id = ? AND broker_id = ?", fortnightID, brokerID).
		Order("advance_id ASC").
		Find(&discounts).Error
	return discounts, err
}

func (r *discountRepository) FindByAdvance(ctx context.Context, advanceID uint) ([]models.TemporaryDiscount, error) {
	var discounts []models.TemporaryDiscount
	err := r.db.WithContext(ctx).Where("advance_id = ?", advanceID).Find(&discounts).Error
	return discounts, err
}

func (r *discountRepository) Create(ctx context.Context, discount *models.TemporaryDiscount) error {
	return r.db.WithContext(ctx).Create(discount).Error
}

func (r *discountRepository) Update(ctx context.Context, discount *models.TemporaryDiscount) error {
	return r.db.WithContext(ctx).Save(discount).Error
}

func (r *discountRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.TemporaryDiscount{}, id).Error
}

func (r *discountRepository) DeleteByFortnight(ctx context.Context, fortnightID uint) error {
	return r.db.WithContext(ctx).Where("fortnight_id = ?", fortnightID).Delete(&models.TemporaryDiscount{}).Error
}

func (r *discountRepository) DeleteByAdvance(ctx context.Context, advanceID uint) error {
	return r.db.WithContext(ctx).Where("advance_id = ?", advanceID).Delete(&models.TemporaryDiscount{}).Error
}
