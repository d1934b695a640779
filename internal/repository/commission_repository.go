package repository

import (
	"context"
	"time"

	"github.com/lissa/commissions-api/internal/models"
	"gorm.io/gorm"
)

// ItemFilter narrows commission item lookups
type ItemFilter struct {
	IDs         []uint
	FortnightID uint
	ImportID    uint
	BrokerID    *uint
	Statuses    []string
	// Unattributed restricts results to items with no broker
	Unattributed bool
}

// CommissionRepository defines the interface for insurer imports and their items
type CommissionRepository interface {
	CreateImport(ctx context.Context, imp *models.CommissionImport, items []models.CommissionItem) error
	FindImportByID(ctx context.Context, id uint) (*models.CommissionImport, error)
	FindImportsByFortnight(ctx context.Context, fortnightID uint) ([]models.CommissionImport, error)
	DeleteImport(ctx context.Context, id uint) error
	DeleteImportsByFortnight(ctx context.Context, fortnightID uint) error

	FindItemByID(ctx context.Context, id uint) (*models.CommissionItem, error)
	FindItemByIDForUpdate(ctx context.Context, id uint) (*models.CommissionItem, error)
	FindItemsByIDsForUpdate(ctx context.Context, ids []uint) ([]models.CommissionItem, error)
	FindItems(ctx context.Context, filter ItemFilter) ([]models.CommissionItem, error)
	UpdateItem(ctx context.Context, item *models.CommissionItem) error
	UpdateItemsStatus(ctx context.Context, fortnightID uint, from, to string) (int64, error)
	DeleteItemsByFortnight(ctx context.Context, fortnightID uint) error
}

type commissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository creates a new commission repository
func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepository{db: db}
}

// CreateImport stores the import header and its items together
func (r *commissionRepository) CreateImport(ctx context.Context, imp *models.CommissionImport, items []models.CommissionItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(imp).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ImportID = imp.ID
			items[i].FortnightID = imp.FortnightID
			items[i].InsurerID = imp.InsurerID
		}
		return tx.CreateInBatches(&items, 200).Error
	})
}

func (r *commissionRepository) FindImportByID(ctx context.Context, id uint) (*models.CommissionImport, error) {
	var imp models.CommissionImport
	err := r.db.WithContext(ctx).First(&imp, id).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

func (r *commissionRepository) FindImportsByFortnight(ctx context.Context, fortnightID uint) ([]models.CommissionImport, error) {
	var imports []models.CommissionImport
	err := r.db.WithContext(ctx).
		Where("fortnight_id = ?", fortnightID).
		Order("id ASC").
		Find(&imports).Error
	return imports, err
}

// DeleteImport removes an import and every item it produced
func (r *commissionRepository) DeleteImport(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("import_id = ?", id).Delete(&models.CommissionItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.CommissionImport{}, id).Error
	})
}

func (r *commissionRepository) DeleteImportsByFortnight(ctx context.Context, fortnightID uint) error {
	return r.db.WithContext(ctx).Where("fortnight_id = ?", fortnightID).Delete(&models.CommissionImport{}).Error
}

func (r *commissionRepository) FindItemByID(ctx context.Context, id uint) (*models.CommissionItem, error) {
	var item models.CommissionItem
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *commissionRepository) FindItemByIDForUpdate(ctx context.Context, id uint) (*models.CommissionItem, error) {
	var item models.CommissionItem
	err := forUpdate(r.db.WithContext(ctx)).First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *commissionRepository) FindItemsByIDsForUpdate(ctx context.Context, ids []uint) ([]models.CommissionItem, error) {
	var items []models.CommissionItem
	if len(ids) == 0 {
		return items, nil
	}
	err := forUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// FindItems returns items ordered by id so callers get a stable sequence
func (r *commissionRepository) FindItems(ctx context.Context, filter ItemFilter) ([]models.CommissionItem, error) {
	var items []models.CommissionItem
	db := r.db.WithContext(ctx)
	if len(filter.IDs) > 0 {
		db = db.Where("id IN ?", filter.IDs)
	}
	if filter.FortnightID != 0 {
		db = db.Where("fortnight_id = ?", filter.FortnightID)
	}
	if filter.ImportID != 0 {
		db = db.Where("import_id = ?", filter.ImportID)
	}
	if filter.BrokerID != nil {
		db = db.Where("broker_id = ?", *filter.BrokerID)
	}
	if filter.Unattributed {
		db = db.Where("broker_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	err := db.Order("id ASC").Find(&items).Error
	return items, err
}

func (r *commissionRepository) UpdateItem(ctx context.Context, item *models.CommissionItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// UpdateItemsStatus moves every item of a fortnight from one status to another
func (r *commissionRepository) UpdateItemsStatus(ctx context.Context, fortnightID uint, from, to string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CommissionItem{}).
		Where("fortnight_id = ? AND status = ?", fortnightID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	return result.RowsAffected, result.Error
}

func (r *commissionRepository) DeleteItemsByFortnight(ctx context.Context, fortnightID uint) error {
	return r.db.WithContext(ctx).Where("fortnight_id = ?", fortnightID).Delete(&models.CommissionItem{}).Error
}
