package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Payment instruction sources
const (
	SourceFortnight  = "fortnight"
	SourceAdjustment = "adjustment"
	SourceRetention  = "retention"
)

// PaymentInstruction is one export-ready transfer order. This service never moves money itself.
type PaymentInstruction struct {
	BatchID       string          `json:"batch_id"`
	BrokerID      uint            `json:"broker_id"`
	BrokerName    string          `json:"broker_name"`
	AccountHolder string          `json:"account_holder"`
	BankName      string          `json:"bank_name"`
	BankAccountNo string          `json:"bank_account_no"`
	Amount        decimal.Decimal `json:"amount"`
	Concept       string          `json:"concept"`
	Source        string          `json:"source"`
	SourceID      uint            `json:"source_id"`
}

func instructionFor(b *models.Broker, amount decimal.Decimal, batchID, concept, source string, sourceID uint) *PaymentInstruction {
	holder := b.AccountHolder
	if holder == "" {
		holder = b.Name
	}
	return &PaymentInstruction{
		BatchID:       batchID,
		BrokerID:      b.ID,
		BrokerName:    b.Name,
		AccountHolder: holder,
		BankName:      b.BankName,
		BankAccountNo: b.BankAccountNo,
		Amount:        amount,
		Concept:       concept,
		Source:        source,
		SourceID:      sourceID,
	}
}

// AdjustmentDetailRow is one claimed item of an adjustment report
type AdjustmentDetailRow struct {
	ReportID     uint            `json:"report_id"`
	BrokerID     uint            `json:"broker_id"`
	BrokerName   string          `json:"broker_name"`
	Status       string          `json:"status"`
	ItemID       uint            `json:"item_id"`
	PolicyNumber string          `json:"policy_number"`
	InsuredName  string          `json:"insured_name"`
	RawAmount    decimal.Decimal `json:"raw_amount"`
	BrokerAmount decimal.Decimal `json:"broker_amount"`
}

// ExportFile is a rendered export kept in storage
type ExportFile struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// ExportService exposes read-only projections and renders them for operators
type ExportService struct {
	repos      *repository.Repositories
	fortnights *FortnightService
	storage    *storage.LocalStorage
}

func NewExportService(repos *repository.Repositories, fortnights *FortnightService, storage *storage.LocalStorage) *ExportService {
	return &ExportService{repos: repos, fortnights: fortnights, storage: storage}
}

// PaymentInstructions lists the transfers owed by a paid fortnight.
// House, retained and released totals and non-positive nets are left out.
func (s *ExportService) PaymentInstructions(ctx context.Context, fortnightID uint) ([]PaymentInstruction, error) {
	f, err := s.repos.Fortnight.FindByID(ctx, fortnightID)
	if err != nil {
		return nil, notFound(err, "quincena", fortnightID)
	}
	if f.IsDraft() {
		return nil, conflictError("la quincena %d aún no está pagada", f.ID)
	}
	rows, err := s.repos.BrokerTotal.FindByFortnight(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	brokers, err := brokerIndex(ctx, s.repos)
	if err != nil {
		return nil, err
	}
	batch := "QNA-" + f.PeriodKey()
	out := make([]PaymentInstruction, 0, len(rows))
	for _, row := range rows {
		if !row.IsPayable() {
			continue
		}
		b, ok := brokers[row.BrokerID]
		if !ok {
			return nil, fmt.Errorf("broker %d of fortnight %d not found", row.BrokerID, f.ID)
		}
		ins := instructionFor(b, row.NetAmount, batch, "Comisiones quincena "+f.PeriodKey(), SourceFortnight, f.ID)
		// the account frozen at close wins over later edits
		if row.BankAccountNo != "" {
			ins.BankAccountNo = row.BankAccountNo
		}
		out = append(out, *ins)
	}
	return out, nil
}

// AdjustmentDetail flattens the claimed items of the given reports
func (s *ExportService) AdjustmentDetail(ctx context.Context, filter repository.AdjustmentFilter) ([]AdjustmentDetailRow, error) {
	reports, err := s.repos.Adjustment.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	brokers, err := brokerIndex(ctx, s.repos)
	if err != nil {
		return nil, err
	}
	var ids []uint
	for _, r := range reports {
		for _, ri := range r.Items {
			ids = append(ids, ri.ItemID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := s.repos.Commission.FindItems(ctx, repository.ItemFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("load claimed items: %w", err)
	}
	byID := make(map[uint]*models.CommissionItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	rows := make([]AdjustmentDetailRow, 0, len(ids))
	for _, r := range reports {
		for _, ri := range r.Items {
			item, ok := byID[ri.ItemID]
			if !ok {
				return nil, &DomainError{Kind: KindNotFound, Message: fmt.Sprintf("ítem %d no encontrado", ri.ItemID)}
			}
			row := AdjustmentDetailRow{
				ReportID:     r.ID,
				BrokerID:     r.BrokerID,
				Status:       r.Status,
				ItemID:       item.ID,
				PolicyNumber: item.PolicyNumber,
				InsuredName:  item.InsuredName,
				RawAmount:    ri.RawAmount,
				BrokerAmount: ri.BrokerAmount,
			}
			if b, ok := brokers[r.BrokerID]; ok {
				row.BrokerName = b.Name
			}
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ReportID != rows[j].ReportID {
			return rows[i].ReportID < rows[j].ReportID
		}
		return rows[i].ItemID < rows[j].ItemID
	})
	return rows, nil
}

// ExportTotalsXLSX renders broker and insurer totals of a fortnight and stores the workbook
func (s *ExportService) ExportTotalsXLSX(ctx context.Context, fortnightID uint) (*ExportFile, error) {
	totals, err := s.fortnights.Recalculate(ctx, fortnightID)
	if err != nil {
		return nil, err
	}
	data, err := RenderTotalsXLSX(totals)
	if err != nil {
		return nil, fmt.Errorf("render totals workbook: %w", err)
	}
	return s.store(data, fmt.Sprintf("totales_%s.xlsx", totals.PeriodKey))
}

// ExportBankCSV renders the payment instructions of a paid fortnight for the bank upload
func (s *ExportService) ExportBankCSV(ctx context.Context, fortnightID uint) (*ExportFile, error) {
	f, err := s.repos.Fortnight.FindByID(ctx, fortnightID)
	if err != nil {
		return nil, notFound(err, "quincena", fortnightID)
	}
	instructions, err := s.PaymentInstructions(ctx, fortnightID)
	if err != nil {
		return nil, err
	}
	data, err := RenderBankCSV(instructions)
	if err != nil {
		return nil, fmt.Errorf("render bank file: %w", err)
	}
	return s.store(data, fmt.Sprintf("pagos_%s.csv", f.PeriodKey()))
}

func (s *ExportService) store(data []byte, filename string) (*ExportFile, error) {
	path, err := s.storage.Save(data, filename, "exports")
	if err != nil {
		return nil, err
	}
	return &ExportFile{Path: path, Filename: filename, ContentType: storage.ContentType(filename)}, nil
}

// RenderBankCSV writes one line per instruction in the bank's upload layout
func RenderBankCSV(instructions []PaymentInstruction) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write([]string{"Lote", "Cuenta", "Banco", "Titular", "Monto", "Concepto"})
	for _, in := range instructions {
		_ = writer.Write([]string{
			in.BatchID,
			in.BankAccountNo,
			in.BankName,
			in.AccountHolder,
			in.Amount.StringFixed(2),
			in.Concept,
		})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderTotalsXLSX writes a workbook with a broker sheet and an insurer sheet
func RenderTotalsXLSX(totals *FortnightTotals) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	brokerSheet := "Corredores"
	_ = f.SetSheetName("Sheet1", brokerSheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})

	_ = f.SetCellValue(brokerSheet, "A1", "Quincena "+totals.PeriodKey)
	headers := []string{"Corredor", "Comisión", "Ajustes", "Arrastre", "Bruto", "Descuentos", "Neto", "Retenido"}
	writeRow(f, brokerSheet, 3, headers)
	_ = f.SetCellStyle(brokerSheet, "A3", "H3", headerStyle)

	row := 4
	lines := append([]BrokerLine(nil), totals.Brokers...)
	if totals.House != nil {
		lines = append(lines, *totals.House)
	}
	for _, l := range lines {
		name := l.BrokerName
		if l.IsHouse {
			name += " (oficina)"
		}
		retained := ""
		if l.IsRetained {
			retained = "Sí"
		}
		writeRow(f, brokerSheet, row, []interface{}{
			name,
			l.Commission.InexactFloat64(),
			l.Adjustments.InexactFloat64(),
			l.Carried.InexactFloat64(),
			l.Gross.InexactFloat64(),
			l.Discounts.InexactFloat64(),
			l.Net.InexactFloat64(),
			retained,
		})
		row++
	}
	writeRow(f, brokerSheet, row+1, []interface{}{
		"Total", nil, nil, nil,
		totals.Gross.InexactFloat64(),
		totals.Discounts.InexactFloat64(),
		totals.Net.InexactFloat64(),
	})
	_ = f.SetCellStyle(brokerSheet, "B4", fmt.Sprintf("G%d", row+1), moneyStyle)

	insurerSheet := "Aseguradoras"
	if _, err := f.NewSheet(insurerSheet); err != nil {
		return nil, err
	}
	writeRow(f, insurerSheet, 1, []string{"Aseguradora", "Ítems", "Total"})
	_ = f.SetCellStyle(insurerSheet, "A1", "C1", headerStyle)
	for i, in := range totals.Insurers {
		writeRow(f, insurerSheet, i+2, []interface{}{in.Name, in.ItemCount, in.Total.InexactFloat64()})
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow[T any](f *excelize.File, sheet string, row int, values []T) {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return
		}
		_ = f.SetCellValue(sheet, cell, v)
	}
}
