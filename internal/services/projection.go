package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/shopspring/decimal"
)

// BrokerLine is one broker's settlement for a fortnight
type BrokerLine struct {
	BrokerID      uint            `json:"broker_id"`
	BrokerName    string          `json:"broker_name"`
	Commission    decimal.Decimal `json:"commission"`
	Adjustments   decimal.Decimal `json:"adjustments"`
	Carried       decimal.Decimal `json:"carried"`
	Gross         decimal.Decimal `json:"gross"`
	Discounts     decimal.Decimal `json:"discounts"`
	Net           decimal.Decimal `json:"net"`
	ItemCount     int             `json:"item_count"`
	IsHouse       bool            `json:"is_house"`
	IsRetained    bool            `json:"is_retained"`
	ReleaseMode   *string         `json:"release_mode,omitempty"`
	BankAccountNo string          `json:"bank_account_no"`
}

// InsurerLine totals the raw amounts a fortnight received from one insurer
type InsurerLine struct {
	InsurerID uint            `json:"insurer_id"`
	Name      string          `json:"name"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// FortnightTotals is the read-only projection of a fortnight.
// It carries no timestamps so recomputing an unchanged fortnight yields an equal value.
type FortnightTotals struct {
	FortnightID        uint            `json:"fortnight_id"`
	Status             string          `json:"status"`
	PeriodKey          string          `json:"period_key"`
	Brokers            []BrokerLine    `json:"brokers"`
	House              *BrokerLine     `json:"house,omitempty"`
	Insurers           []InsurerLine   `json:"insurers"`
	Gross              decimal.Decimal `json:"gross"`
	Discounts          decimal.Decimal `json:"discounts"`
	Net                decimal.Decimal `json:"net"`
	RetainedNet        decimal.Decimal `json:"retained_net"`
	UnidentifiedCount  int             `json:"unidentified_count"`
	UnidentifiedAmount decimal.Decimal `json:"unidentified_amount"`
}

// Line returns the broker's line, including the house broker
func (t *FortnightTotals) Line(brokerID uint) (BrokerLine, bool) {
	if t.House != nil && t.House.BrokerID == brokerID {
		return *t.House, true
	}
	for _, l := range t.Brokers {
		if l.BrokerID == brokerID {
			return l, true
		}
	}
	return BrokerLine{}, false
}

func (l *BrokerLine) settle() {
	l.Commission = l.Commission.Round(2)
	l.Gross = l.Commission.Add(l.Adjustments).Add(l.Carried)
	l.Net = l.Gross.Sub(l.Discounts)
}

// computeDraft derives every total of a draft fortnight from the persisted ledger.
// Nothing it returns is stored.
func computeDraft(ctx context.Context, tx *repository.Repositories, f *models.Fortnight) (*FortnightTotals, error) {
	brokers, err := brokerIndex(ctx, tx)
	if err != nil {
		return nil, err
	}

	items, err := tx.Commission.FindItems(ctx, repository.ItemFilter{FortnightID: f.ID})
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	reports, err := tx.Adjustment.FindByFortnight(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("load adjustment reports: %w", err)
	}
	carried, err := tx.BrokerTotal.FindReleasedInto(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("load carried totals: %w", err)
	}
	discounts, err := tx.Discount.FindByFortnight(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("load staged discounts: %w", err)
	}
	applied, err := tx.Advance.SumFortnightDiscountsByBroker(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("load applied discounts: %w", err)
	}

	lines := make(map[uint]*BrokerLine)
	line := func(brokerID uint) *BrokerLine {
		if l, ok := lines[brokerID]; ok {
			return l
		}
		l := &BrokerLine{BrokerID: brokerID}
		if b, ok := brokers[brokerID]; ok {
			l.BrokerName = b.Name
			l.IsHouse = b.IsHouse
			l.BankAccountNo = b.BankAccountNo
		}
		lines[brokerID] = l
		return l
	}

	totals := &FortnightTotals{
		FortnightID: f.ID,
		Status:      f.Status,
		PeriodKey:   f.PeriodKey(),
	}

	for i := range items {
		item := &items[i]
		switch {
		case item.Status == models.ItemStatusProvisional && item.BrokerID != nil:
			b, ok := brokers[*item.BrokerID]
			if !ok {
				return nil, fmt.Errorf("item %d references unknown broker %d", item.ID, *item.BrokerID)
			}
			l := line(b.ID)
			l.Commission = l.Commission.Add(b.Share(item.GrossAmount, item.PercentOverride))
			l.ItemCount++
		case item.Status == models.ItemStatusUnidentified:
			totals.UnidentifiedCount++
			totals.UnidentifiedAmount = totals.UnidentifiedAmount.Add(item.GrossAmount)
		}
	}
	for _, r := range reports {
		if r.Status != models.AdjustmentStatusApproved {
			continue
		}
		l := line(r.BrokerID)
		l.Adjustments = l.Adjustments.Add(r.TotalAmount)
	}
	for _, c := range carried {
		l := line(c.BrokerID)
		l.Carried = l.Carried.Add(c.NetAmount)
	}
	for _, d := range discounts {
		l := line(d.BrokerID)
		l.Discounts = l.Discounts.Add(d.Amount)
	}
	for brokerID, amount := range applied {
		l := line(brokerID)
		l.Discounts = l.Discounts.Add(amount)
	}

	for _, l := range lines {
		l.settle()
	}
	totals.attach(lines)
	totals.Insurers, err = insurerLines(ctx, tx, items)
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// snapshotTotals rebuilds the projection of a paid fortnight from its frozen rows
func snapshotTotals(ctx context.Context, tx *repository.Repositories, f *models.Fortnight) (*FortnightTotals, error) {
	brokers, err := brokerIndex(ctx, tx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.BrokerTotal.FindByFortnight(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("load broker totals: %w", err)
	}
	items, err := tx.Commission.FindItems(ctx, repository.ItemFilter{FortnightID: f.ID})
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	totals := &FortnightTotals{
		FortnightID: f.ID,
		Status:      f.Status,
		PeriodKey:   f.PeriodKey(),
	}
	lines := make(map[uint]*BrokerLine, len(rows))
	for _, row := range rows {
		l := &BrokerLine{
			BrokerID:      row.BrokerID,
			Commission:    row.CommissionAmount,
			Adjustments:   row.AdjustmentAmount,
			Carried:       row.CarriedAmount,
			Gross:         row.GrossAmount,
			Discounts:     row.DiscountAmount,
			Net:           row.NetAmount,
			ItemCount:     row.ItemCount,
			IsHouse:       row.IsHouse,
			IsRetained:    row.IsRetained,
			ReleaseMode:   row.ReleaseMode,
			BankAccountNo: row.BankAccountNo,
		}
		if b, ok := brokers[row.BrokerID]; ok {
			l.BrokerName = b.Name
		}
		lines[row.BrokerID] = l
	}
	for i := range items {
		// items still unattributed after close sit in the adjustment pool
		if items[i].IsUnattributed() && items[i].Status == models.ItemStatusPending {
			totals.UnidentifiedCount++
			totals.UnidentifiedAmount = totals.UnidentifiedAmount.Add(items[i].GrossAmount)
		}
	}
	totals.attach(lines)
	totals.Insurers, err = insurerLines(ctx, tx, items)
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// attach orders lines by broker id, separates the house broker and computes aggregates.
// Retained brokers stay listed but are left out of the aggregate net.
func (t *FortnightTotals) attach(lines map[uint]*BrokerLine) {
	t.Brokers = make([]BrokerLine, 0, len(lines))
	for _, l := range lines {
		if l.IsHouse {
			house := *l
			t.House = &house
			continue
		}
		t.Brokers = append(t.Brokers, *l)
	}
	sort.Slice(t.Brokers, func(i, j int) bool {
		return t.Brokers[i].BrokerID < t.Brokers[j].BrokerID
	})
	for _, l := range t.Brokers {
		t.Gross = t.Gross.Add(l.Gross)
		t.Discounts = t.Discounts.Add(l.Discounts)
		if l.IsRetained {
			t.RetainedNet = t.RetainedNet.Add(l.Net)
			continue
		}
		t.Net = t.Net.Add(l.Net)
	}
}

func brokerIndex(ctx context.Context, tx *repository.Repositories) (map[uint]*models.Broker, error) {
	brokers, err := tx.Broker.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load brokers: %w", err)
	}
	index := make(map[uint]*models.Broker, len(brokers))
	for i := range brokers {
		index[brokers[i].ID] = &brokers[i]
	}
	return index, nil
}

func insurerLines(ctx context.Context, tx *repository.Repositories, items []models.CommissionItem) ([]InsurerLine, error) {
	insurers, err := tx.Insurer.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load insurers: %w", err)
	}
	names := make(map[uint]string, len(insurers))
	for _, in := range insurers {
		names[in.ID] = in.Name
	}
	byInsurer := make(map[uint]*InsurerLine)
	for _, item := range items {
		l, ok := byInsurer[item.InsurerID]
		if !ok {
			l = &InsurerLine{InsurerID: item.InsurerID, Name: names[item.InsurerID]}
			byInsurer[item.InsurerID] = l
		}
		l.Total = l.Total.Add(item.GrossAmount)
		l.ItemCount++
	}
	out := make([]InsurerLine, 0, len(byInsurer))
	for _, l := range byInsurer {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InsurerID < out[j].InsurerID })
	return out, nil
}
