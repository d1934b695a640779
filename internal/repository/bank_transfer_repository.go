package repository

import (
	"context"

	"github.com/lissa/commissions-api/internal/models"
	"gorm.io/gorm"
)

// BankTransferRepository reads registry-owned transfers and posts usage against them
type BankTransferRepository interface {
	FindByIDForUpdate(ctx context.Context, id uint) (*models.BankTransfer, error)
	FindByReference(ctx context.Context, reference string) (*models.BankTransfer, error)
	Create(ctx context.Context, transfer *models.BankTransfer) error
	Update(ctx context.Context, transfer *models.BankTransfer) error
	CreateUsage(ctx context.Context, usage *models.BankTransferUsage) error
	FindUsages(ctx context.Context, transferID uint) ([]models.BankTransferUsage, error)
	FindUsagesByLogs(ctx context.Context, logIDs []uint) ([]models.BankTransferUsage, error)
	DeleteUsage(ctx context.Context, id uint) error
}

type bankTransferRepository struct {
	db *gorm.DB
}

// NewBankTransferRepository creates a new bank transfer repository
func NewBankTransferRepository(db *gorm.DB) BankTransferRepository {
	return &bankTransferRepository{db: db}
}

func (r *bankTransferRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.BankTransfer, error) {
	var transfer models.BankTransfer
	err := forUpdate(r.db.WithContext(ctx)).First(&transfer, id).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *bankTransferRepository) FindByReference(ctx context.Context, reference string) (*models.BankTransfer, error) {
	var transfer models.BankTransfer
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&transfer).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// Create is used by the registry import and by tests
func (r *bankTransferRepository) Create(ctx context.Context, transfer *models.BankTransfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *bankTransferRepository) Update(ctx context.Context, transfer *models.BankTransfer) error {
	return r.db.WithContext(ctx).Save(transfer).Error
}

func (r *bankTransferRepository) CreateUsage(ctx context.Context, usage *models.BankTransferUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *bankTransferRepository) FindUsages(ctx context.Context, transferID uint) ([]models.BankTransferUsage, error) {
	var usages []models.BankTransferUsage
	err := r.db.WithContext(ctx).Where("bank_transfer_id = ?", transferID).Order("id ASC").Find(&usages).Error
	return usages, err
}

func (r *bankTransferRepository) FindUsagesByLogs(ctx context.Context, logIDs []uint) ([]models.BankTransferUsage, error) {
	var usages []models.BankTransferUsage
	if len(logIDs) == 0 {
		return usages, nil
	}
	err := r.db.WithContext(ctx).Where("advance_payment_log_id IN ?", logIDs).Order("id ASC").Find(&usages).Error
	return usages, err
}

func (r *bankTransferRepository) DeleteUsage(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.BankTransferUsage{}, id).Error
}
