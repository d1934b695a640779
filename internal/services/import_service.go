package services

import (
	"context"
	"fmt"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// ImportRow is one validated line of an insurer report.
// GrossAmount is signed; chargebacks arrive negative.
type ImportRow struct {
	PolicyNumber string          `json:"policy_number" validate:"max=64"`
	InsuredName  string          `json:"insured_name" validate:"max=255"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	// BrokerID pre-identifies the line when the insurer report already names the broker
	BrokerID *uint `json:"broker_id"`
}

// ImportBatch is what the import producer hands over for a draft fortnight
type ImportBatch struct {
	FortnightID uint        `json:"fortnight_id" validate:"required"`
	InsurerID   uint        `json:"insurer_id" validate:"required"`
	FileName    string      `json:"file_name" validate:"max=255"`
	Rows        []ImportRow `json:"rows" validate:"required,min=1,dive"`
}

type ImportService struct {
	repos *repository.Repositories
	audit *AuditService
}

func NewImportService(repos *repository.Repositories, audit *AuditService) *ImportService {
	return &ImportService{repos: repos, audit: audit}
}

// Ingest stores the batch as an import of the draft with one item per row
func (s *ImportService) Ingest(ctx context.Context, actor Actor, batch ImportBatch) (*models.CommissionImport, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if err := validateInput(batch); err != nil {
		return nil, err
	}
	for i, row := range batch.Rows {
		if row.GrossAmount.IsZero() {
			return nil, validationError("la fila %d tiene monto cero", i+1)
		}
	}

	var imp *models.CommissionImport
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		f, err := lockDraft(ctx, tx, batch.FortnightID)
		if err != nil {
			return err
		}
		if _, err := tx.Insurer.FindByID(ctx, batch.InsurerID); err != nil {
			return notFound(err, "aseguradora", batch.InsurerID)
		}

		known := make(map[uint]bool)
		items := make([]models.CommissionItem, 0, len(batch.Rows))
		total := decimal.Zero
		for i, row := range batch.Rows {
			item := models.CommissionItem{
				PolicyNumber: row.PolicyNumber,
				InsuredName:  row.InsuredName,
				GrossAmount:  row.GrossAmount.Round(2),
				Status:       models.ItemStatusUnidentified,
			}
			if row.BrokerID != nil {
				if !known[*row.BrokerID] {
					if _, err := tx.Broker.FindByID(ctx, *row.BrokerID); err != nil {
						return validationError("la fila %d referencia al corredor %d que no existe", i+1, *row.BrokerID)
					}
					known[*row.BrokerID] = true
				}
				brokerID := *row.BrokerID
				item.BrokerID = &brokerID
				item.Status = models.ItemStatusProvisional
			}
			total = total.Add(item.GrossAmount)
			items = append(items, item)
		}

		imp = &models.CommissionImport{
			FortnightID: f.ID,
			InsurerID:   batch.InsurerID,
			FileName:    batch.FileName,
			TotalAmount: total,
			ItemCount:   len(items),
			CreatedBy:   actor.UserID,
		}
		return tx.Commission.CreateImport(ctx, imp, items)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[ImportService] import ingested", "import_id", imp.ID, "fortnight_id", imp.FortnightID, "items", imp.ItemCount)
	s.audit.Record(ctx, actor, models.AuditCreate, "CommissionImport", imp.ID,
		fmt.Sprintf("Reporte %q con %d partidas por %s", imp.FileName, imp.ItemCount, money(imp.TotalAmount)))
	return imp, nil
}

// DeleteImport removes an import and its items from the draft
func (s *ImportService) DeleteImport(ctx context.Context, actor Actor, importID uint) error {
	if err := requireMaster(actor); err != nil {
		return err
	}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		imp, err := tx.Commission.FindImportByID(ctx, importID)
		if err != nil {
			return notFound(err, "importación", importID)
		}
		if _, err := lockDraft(ctx, tx, imp.FortnightID); err != nil {
			return err
		}
		return tx.Commission.DeleteImport(ctx, imp.ID)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, actor, models.AuditDelete, "CommissionImport", importID, "Importación eliminada del borrador")
	return nil
}

// ListImports returns the imports loaded into a fortnight
func (s *ImportService) ListImports(ctx context.Context, fortnightID uint) ([]models.CommissionImport, error) {
	if _, err := s.repos.Fortnight.FindByID(ctx, fortnightID); err != nil {
		return nil, notFound(err, "quincena", fortnightID)
	}
	return s.repos.Commission.FindImportsByFortnight(ctx, fortnightID)
}

// ListItems returns a fortnight's items, optionally filtered by status
func (s *ImportService) ListItems(ctx context.Context, fortnightID uint, statuses []string) ([]models.CommissionItem, error) {
	if _, err := s.repos.Fortnight.FindByID(ctx, fortnightID); err != nil {
		return nil, notFound(err, "quincena", fortnightID)
	}
	return s.repos.Commission.FindItems(ctx, repository.ItemFilter{FortnightID: fortnightID, Statuses: statuses})
}
