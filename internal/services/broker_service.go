package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"gorm.io/gorm"
)

// BrokerInput creates or replaces a broker's editable fields
type BrokerInput struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Email          string          `json:"email" validate:"omitempty,email"`
	UserID         *uint           `json:"user_id"`
	PercentDefault models.Fraction `json:"percent_default"`
	IsHouse        bool            `json:"is_house"`
	Active         *bool           `json:"active"`
	BankAccountNo  string          `json:"bank_account_no" validate:"max=64"`
	BankName       string          `json:"bank_name" validate:"max=128"`
	AccountHolder  string          `json:"account_holder" validate:"max=255"`
}

// BrokerService maintains the broker and insurer catalogs
type BrokerService struct {
	repos *repository.Repositories
	audit *AuditService
}

func NewBrokerService(repos *repository.Repositories, audit *AuditService) *BrokerService {
	return &BrokerService{repos: repos, audit: audit}
}

func (s *BrokerService) List(ctx context.Context) ([]models.Broker, error) {
	return s.repos.Broker.FindAll(ctx)
}

func (s *BrokerService) Get(ctx context.Context, id uint) (*models.Broker, error) {
	b, err := s.repos.Broker.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "corredor", id)
	}
	return b, nil
}

// Create registers a broker. Only one house broker may exist.
func (s *BrokerService) Create(ctx context.Context, actor Actor, in BrokerInput) (*models.Broker, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	broker := &models.Broker{Active: true}
	applyBrokerInput(broker, in)

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if broker.IsHouse {
			if err := ensureNoOtherHouse(ctx, tx, 0); err != nil {
				return err
			}
		}
		return tx.Broker.Create(ctx, broker)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditCreate, "Broker", broker.ID,
		fmt.Sprintf("Corredor %s con %s%%", broker.Name, broker.PercentDefault.Percent().StringFixed(2)))
	return broker, nil
}

// Update replaces the broker's editable fields. Past frozen totals keep their values.
func (s *BrokerService) Update(ctx context.Context, actor Actor, id uint, in BrokerInput) (*models.Broker, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var broker *models.Broker
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		broker, err = tx.Broker.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "corredor", id)
		}
		applyBrokerInput(broker, in)
		if broker.IsHouse {
			if err := ensureNoOtherHouse(ctx, tx, broker.ID); err != nil {
				return err
			}
		}
		return tx.Broker.Update(ctx, broker)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditUpdate, "Broker", broker.ID, "Datos del corredor actualizados")
	return broker, nil
}

func applyBrokerInput(b *models.Broker, in BrokerInput) {
	b.Name = strings.TrimSpace(in.Name)
	b.Email = strings.TrimSpace(in.Email)
	b.UserID = in.UserID
	b.PercentDefault = in.PercentDefault
	b.IsHouse = in.IsHouse
	if in.Active != nil {
		b.Active = *in.Active
	}
	b.BankAccountNo = in.BankAccountNo
	b.BankName = in.BankName
	b.AccountHolder = in.AccountHolder
}

func ensureNoOtherHouse(ctx context.Context, tx *repository.Repositories, selfID uint) error {
	house, err := tx.Broker.FindHouse(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return conflictError("ya existe más de un corredor casa")
	}
	if house.ID != selfID {
		return conflictError("el corredor %d ya es el corredor casa", house.ID)
	}
	return nil
}

func (s *BrokerService) ListInsurers(ctx context.Context) ([]models.Insurer, error) {
	return s.repos.Insurer.FindAll(ctx)
}

// CreateInsurer registers an insurer; names are unique
func (s *BrokerService) CreateInsurer(ctx context.Context, actor Actor, name string) (*models.Insurer, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("el nombre de la aseguradora es obligatorio")
	}
	insurer := &models.Insurer{Name: name}
	if err := s.repos.Insurer.Create(ctx, insurer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflictError("la aseguradora %q ya existe", name)
		}
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditCreate, "Insurer", insurer.ID, name)
	return insurer, nil
}
