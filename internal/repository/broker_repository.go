package repository

import (
	"context"
	"errors"

	"github.com/lissa/commissions-api/internal/models"
	"gorm.io/gorm"
)

// BrokerRepository defines the interface for broker data access
type BrokerRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Broker, error)
	FindByUserID(ctx context.Context, userID uint) (*models.Broker, error)
	FindHouse(ctx context.Context) (*models.Broker, error)
	FindAll(ctx context.Context) ([]models.Broker, error)
	Create(ctx context.Context, broker *models.Broker) error
	Update(ctx context.Context, broker *models.Broker) error
}

type brokerRepository struct {
	db *gorm.DB
}

// NewBrokerRepository creates a new broker repository
func NewBrokerRepository(db *gorm.DB) BrokerRepository {
	return &brokerRepository{db: db}
}

func (r *brokerRepository) FindByID(ctx context.Context, id uint) (*models.Broker, error) {
	var broker models.Broker
	err := r.db.WithContext(ctx).First(&broker, id).Error
	if err != nil {
		return nil, err
	}
	return &broker, nil
}

func (r *brokerRepository) FindByUserID(ctx context.Context, userID uint) (*models.Broker, error) {
	var broker models.Broker
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&broker).Error
	if err != nil {
		return nil, err
	}
	return &broker, nil
}

// FindHouse returns the office broker that collects aged items
func (r *brokerRepository) FindHouse(ctx context.Context) (*models.Broker, error) {
	var brokers []models.Broker
	err := r.db.WithContext(ctx).Where("is_house = ?", true).Order("id ASC").Limit(2).Find(&brokers).Error
	if err != nil {
		return nil, err
	}
	if len(brokers) != 1 {
		if len(brokers) == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.New("more than one house broker configured")
	}
	return &brokers[0], nil
}

func (r *brokerRepository) FindAll(ctx context.Context) ([]models.Broker, error) {
	var brokers []models.Broker
	err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&brokers).Error
	return brokers, err
}

func (r *brokerRepository) Create(ctx context.Context, broker *models.Broker) error {
	return r.db.WithContext(ctx).Create(broker).Error
}

func (r *brokerRepository) Update(ctx context.Context, broker *models.Broker) error {
	return r.db.WithContext(ctx).Save(broker).Error
}

// InsurerRepository defines the interface for insurer data access
type InsurerRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Insurer, error)
	FindAll(ctx context.Context) ([]models.Insurer, error)
	Create(ctx context.Context, insurer *models.Insurer) error
}

type insurerRepository struct {
	db *gorm.DB
}

// NewInsurerRepository creates a new insurer repository
func NewInsurerRepository(db *gorm.DB) InsurerRepository {
	return &insurerRepository{db: db}
}

func (r *insurerRepository) FindByID(ctx context.Context, id uint) (*models.Insurer, error) {
	var insurer models.Insurer
	err := r.db.WithContext(ctx).First(&insurer, id).Error
	if err != nil {
		return nil, err
	}
	return &insurer, nil
}

func (r *insurerRepository) FindAll(ctx context.Context) ([]models.Insurer, error) {
	var insurers []models.Insurer
	err := r.db.WithContext(ctx).Order("name ASC").Find(&insurers).Error
	return insurers, err
}

func (r *insurerRepository) Create(ctx context.Context, insurer *models.Insurer) error {
	return r.db.WithContext(ctx).Create(insurer).Error
}
