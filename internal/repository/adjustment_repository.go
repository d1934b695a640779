package repository

import (
	"context"

	"github.com/lissa/commissions-api/internal/models"
	"gorm.io/gorm"
)

// AdjustmentFilter narrows adjustment report listings
type AdjustmentFilter struct {
	BrokerID *uint
	Status   string
}

// AdjustmentRepository defines the interface for adjustment reports
type AdjustmentRepository interface {
	FindByID(ctx context.Context, id uint) (*models.AdjustmentReport, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.AdjustmentReport, error)
	List(ctx context.Context, filter AdjustmentFilter) ([]models.AdjustmentReport, error)
	FindFoldable(ctx context.Context) ([]models.AdjustmentReport, error)
	FindByFortnight(ctx context.Context, fortnightID uint) ([]models.AdjustmentReport, error)
	Create(ctx context.Context, report *models.AdjustmentReport) error
	Update(ctx context.Context, report *models.AdjustmentReport) error
	LinkToFortnight(ctx context.Context, reportIDs []uint, fortnightID uint) error
	UnlinkFortnight(ctx context.Context, fortnightID uint) error
	CountActiveClaims(ctx context.Context, itemIDs []uint) (int64, error)
}

type adjustmentRepository struct {
	db *gorm.DB
}

// NewAdjustmentRepository creates a new adjustment repository
func NewAdjustmentRepository(db *gorm.DB) AdjustmentRepository {
	return &adjustmentRepository{db: db}
}

func (r *adjustmentRepository) FindByID(ctx context.Context, id uint) (*models.AdjustmentReport, error) {
	var report models.AdjustmentReport
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_id ASC")
		}).
		First(&report, id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *adjustmentRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.AdjustmentReport, error) {
	var report models.AdjustmentReport
	err := forUpdate(r.db.WithContext(ctx)).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_id ASC")
		}).
		First(&report, id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *adjustmentRepository) List(ctx context.Context, filter AdjustmentFilter) ([]models.AdjustmentReport, error) {
	var reports []models.AdjustmentReport
	db := r.db.WithContext(ctx)
	if filter.BrokerID != nil {
		db = db.Where("broker_id = ?", *filter.BrokerID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Preload("Items").Order("created_at DESC, id DESC").Find(&reports).Error
	return reports, err
}

// FindFoldable returns approved next-fortnight reports not yet tied to a draft
func (r *adjustmentRepository) FindFoldable(ctx context.Context) ([]models.AdjustmentReport, error) {
	var reports []models.AdjustmentReport
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_timing = ? AND fortnight_id IS NULL",
			models.AdjustmentStatusApproved, models.PaymentTimingNextFortnight).
		Order("id ASC").
		Find(&reports).Error
	return reports, err
}

func (r *adjustmentRepository) FindByFortnight(ctx context.Context, fortnightID uint) ([]models.AdjustmentReport, error) {
	var reports []models.AdjustmentReport
	err := r.db.WithContext(ctx).
		Where("fortnight_id = ?", fortnightID).
		Order("id ASC").
		Find(&reports).Error
	return reports, err
}

// Create stores the report and its items
func (r *adjustmentRepository) Create(ctx context.Context, report *models.AdjustmentReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// Update saves the report header only
func (r *adjustmentRepository) Update(ctx context.Context, report *models.AdjustmentReport) error {
	return r.db.WithContext(ctx).Omit("Items").Save(report).Error
}

func (r *adjustmentRepository) LinkToFortnight(ctx context.Context, reportIDs []uint, fortnightID uint) error {
	if len(reportIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.AdjustmentReport{}).
		Where("id IN ?", reportIDs).
		Update("fortnight_id", fortnightID).Error
}

// UnlinkFortnight detaches unpaid reports from a discarded draft
func (r *adjustmentRepository) UnlinkFortnight(ctx context.Context, fortnightID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.AdjustmentReport{}).
		Where("fortnight_id = ? AND status = ?", fortnightID, models.AdjustmentStatusApproved).
		Update("fortnight_id", nil).Error
}

// CountActiveClaims counts items already claimed by a pending or approved report
func (r *adjustmentRepository) CountActiveClaims(ctx context.Context, itemIDs []uint) (int64, error) {
	var count int64
	if len(itemIDs) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.AdjustmentReportItem{}).
		Joins("JOIN adjustment_reports ON adjustment_reports.id = adjustment_report_items.report_id").
		Where("adjustment_report_items.item_id IN ? AND adjustment_reports.status IN ?", itemIDs,
			[]string{models.AdjustmentStatusPending, models.AdjustmentStatusApproved}).
		Count(&count).Error
	return count, err
}
