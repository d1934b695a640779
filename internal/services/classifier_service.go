package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/pkg/logger"
)

// ItemFailure reports why one item of a batch could not be processed
type ItemFailure struct {
	ItemID uint   `json:"item_id"`
	Error  string `json:"error"`
}

// BatchResult lists the outcome of a per-item batch
type BatchResult struct {
	Succeeded []uint        `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
}

// RouteResult lists the items handed to the house broker
type RouteResult struct {
	HouseBrokerID uint   `json:"house_broker_id"`
	Routed        []uint `json:"routed"`
}

// ClassifierService resolves which broker owns each commission item
type ClassifierService struct {
	repos         *repository.Repositories
	notifications *NotificationService
	audit         *AuditService
	now           func() time.Time
}

func NewClassifierService(repos *repository.Repositories, notifications *NotificationService, audit *AuditService) *ClassifierService {
	return &ClassifierService{
		repos:         repos,
		notifications: notifications,
		audit:         audit,
		now:           time.Now,
	}
}

// Groups returns the grouping of a fortnight's unidentified items
func (s *ClassifierService) Groups(ctx context.Context, fortnightID uint) (*Grouping, error) {
	if _, err := s.repos.Fortnight.FindByID(ctx, fortnightID); err != nil {
		return nil, notFound(err, "quincena", fortnightID)
	}
	items, err := s.repos.Commission.FindItems(ctx, repository.ItemFilter{
		FortnightID:  fortnightID,
		Statuses:     []string{models.ItemStatusUnidentified},
		Unattributed: true,
	})
	if err != nil {
		return nil, err
	}
	return GroupItems(items), nil
}

// PendingGroups returns the grouping of the unclaimed pool across closed fortnights
func (s *ClassifierService) PendingGroups(ctx context.Context) (*Grouping, error) {
	items, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}
	return GroupItems(items), nil
}

func (s *ClassifierService) pool(ctx context.Context) ([]models.CommissionItem, error) {
	return s.repos.Commission.FindItems(ctx, repository.ItemFilter{
		Statuses:     []string{models.ItemStatusPending},
		Unattributed: true,
	})
}

// TempIdentify provisionally attributes an item of the draft to a broker
func (s *ClassifierService) TempIdentify(ctx context.Context, actor Actor, itemID, brokerID uint, override *models.Fraction) (*models.CommissionItem, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	item, err := s.identify(ctx, itemID, brokerID, override)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditIdentify, "CommissionItem", item.ID,
		fmt.Sprintf("Partida asignada provisionalmente al corredor %d", brokerID))
	return item, nil
}

// TempIdentifyBatch attributes each item in its own transaction so one failure does not undo the rest
func (s *ClassifierService) TempIdentifyBatch(ctx context.Context, actor Actor, itemIDs []uint, brokerID uint, override *models.Fraction) (*BatchResult, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return nil, validationError("debe indicar al menos una partida")
	}

	result := &BatchResult{Succeeded: []uint{}, Failed: []ItemFailure{}}
	for _, id := range itemIDs {
		if _, err := s.identify(ctx, id, brokerID, override); err != nil {
			result.Failed = append(result.Failed, ItemFailure{ItemID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	if len(result.Succeeded) > 0 {
		s.audit.Record(ctx, actor, models.AuditIdentify, "CommissionItem", result.Succeeded[0],
			fmt.Sprintf("%d partidas asignadas provisionalmente al corredor %d (%d fallidas)",
				len(result.Succeeded), brokerID, len(result.Failed)))
	}
	return result, nil
}

// TempIdentifyGroup attributes every item of a grouping entry of the fortnight
func (s *ClassifierService) TempIdentifyGroup(ctx context.Context, actor Actor, fortnightID uint, entryID int, brokerID uint, override *models.Fraction) (*BatchResult, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	g, err := s.Groups(ctx, fortnightID)
	if err != nil {
		return nil, err
	}
	entry, ok := g.Entry(entryID)
	if !ok {
		return nil, &DomainError{Kind: KindNotFound, Message: fmt.Sprintf("grupo %d no encontrado", entryID)}
	}
	return s.TempIdentifyBatch(ctx, actor, entry.ItemIDs, brokerID, override)
}

func (s *ClassifierService) identify(ctx context.Context, itemID, brokerID uint, override *models.Fraction) (*models.CommissionItem, error) {
	var item *models.CommissionItem
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		item, err = tx.Commission.FindItemByIDForUpdate(ctx, itemID)
		if err != nil {
			return notFound(err, "partida", itemID)
		}
		if _, err := lockDraft(ctx, tx, item.FortnightID); err != nil {
			return err
		}
		if !item.MayTempIdentify() {
			return conflictError("la partida %d está en estado %s y no puede asignarse", item.ID, item.Status)
		}
		broker, err := tx.Broker.FindByID(ctx, brokerID)
		if err != nil {
			return notFound(err, "corredor", brokerID)
		}
		if !broker.Active {
			return validationError("el corredor %d está inactivo", broker.ID)
		}
		item.BrokerID = &broker.ID
		item.PercentOverride = override
		item.Status = models.ItemStatusProvisional
		return tx.Commission.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// TempUnidentify undoes a provisional attribution
func (s *ClassifierService) TempUnidentify(ctx context.Context, actor Actor, itemID uint) (*models.CommissionItem, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	var item *models.CommissionItem
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		item, err = tx.Commission.FindItemByIDForUpdate(ctx, itemID)
		if err != nil {
			return notFound(err, "partida", itemID)
		}
		if _, err := lockDraft(ctx, tx, item.FortnightID); err != nil {
			return err
		}
		if !item.MayTempUnidentify() {
			return conflictError("la partida %d no tiene una asignación provisional", item.ID)
		}
		item.BrokerID = nil
		item.PercentOverride = nil
		item.Status = models.ItemStatusUnidentified
		return tx.Commission.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditUpdate, "CommissionItem", item.ID, "Asignación provisional revertida")
	return item, nil
}

// AgedItems lists unattributed items that have waited at least AgingDays
func (s *ClassifierService) AgedItems(ctx context.Context, now time.Time) ([]models.CommissionItem, error) {
	items, err := s.repos.Commission.FindItems(ctx, repository.ItemFilter{
		Statuses:     []string{models.ItemStatusUnidentified, models.ItemStatusPending},
		Unattributed: true,
	})
	if err != nil {
		return nil, err
	}
	aged := make([]models.CommissionItem, 0)
	for _, it := range items {
		if it.IsAged(now) {
			aged = append(aged, it)
		}
	}
	return aged, nil
}

// RouteAgedToHouse hands every aged item to the house broker. Pool items are assigned outright;
// items still in the draft become provisional so the close freezes them for the house.
func (s *ClassifierService) RouteAgedToHouse(ctx context.Context, actor Actor, now time.Time) (*RouteResult, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	result := &RouteResult{Routed: []uint{}}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		house, err := tx.Broker.FindHouse(ctx)
		if err != nil {
			return conflictError("no se pudo determinar el corredor casa: %v", err)
		}
		result.HouseBrokerID = house.ID

		items, err := tx.Commission.FindItems(ctx, repository.ItemFilter{
			Statuses:     []string{models.ItemStatusUnidentified, models.ItemStatusPending},
			Unattributed: true,
		})
		if err != nil {
			return err
		}
		ids := make([]uint, 0)
		for _, it := range items {
			if it.IsAged(now) {
				ids = append(ids, it.ID)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		locked, err := tx.Commission.FindItemsByIDsForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		for i := range locked {
			it := &locked[i]
			// re-check under lock
			if !it.IsAged(now) {
				continue
			}
			it.BrokerID = &house.ID
			if it.Status == models.ItemStatusPending {
				it.Status = models.ItemStatusAssigned
				assignedAt := now
				it.AssignedAt = &assignedAt
			} else {
				it.Status = models.ItemStatusProvisional
			}
			if err := tx.Commission.UpdateItem(ctx, it); err != nil {
				return err
			}
			result.Routed = append(result.Routed, it.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(result.Routed) > 0 {
		s.audit.Record(ctx, actor, models.AuditUpdate, "CommissionItem", result.Routed[0],
			fmt.Sprintf("%d partidas con más de %d días enviadas al corredor casa %d",
				len(result.Routed), models.AgingDays, result.HouseBrokerID))
	}
	return result, nil
}

// NotifyAging tells masters how many items have crossed the aging threshold.
// It never moves items; routing stays an explicit operator action.
func (s *ClassifierService) NotifyAging(ctx context.Context) (int, error) {
	aged, err := s.AgedItems(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if len(aged) == 0 {
		return 0, nil
	}
	msg := fmt.Sprintf("Hay %d partidas sin corredor con más de %d días. Revise y envíelas al corredor casa.",
		len(aged), models.AgingDays)
	if err := s.notifications.NotifyMasters(ctx, "Partidas vencidas", msg, models.NotificationTypeItemsAging, nil); err != nil {
		return 0, err
	}
	logger.Info("[ClassifierService] aging notification sent", "count", len(aged))
	return len(aged), nil
}
