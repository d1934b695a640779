package services

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportService_PaymentInstructions(t *testing.T) {
	l := newLedger(t)
	adv := l.advance(l.ana.ID, "100")
	_, err := l.discounts.Stage(l.ctx, master, StageDiscountInput{
		FortnightID: l.draft.ID, BrokerID: l.ana.ID, AdvanceID: adv.ID, Amount: dec("60"),
	})
	require.NoError(t, err)

	_, err = l.exports.PaymentInstructions(l.ctx, l.draft.ID)
	assertKind(t, err, KindStateConflict)

	_, err = l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.NoError(t, err)

	// the account frozen at close wins over later edits
	_, err = l.brokers.Update(l.ctx, master, l.ana.ID, BrokerInput{
		Name: "Ana", Email: "Ana@example.com", UserID: l.ana.UserID,
		PercentDefault: models.MustFraction("0.80"), BankAccountNo: "ACC-NUEVA", BankName: "Banco Atlántida",
	})
	require.NoError(t, err)

	instructions, err := l.exports.PaymentInstructions(l.ctx, l.draft.ID)
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	ins := instructions[0]
	assert.Equal(t, "QNA-2026-10-Q1", ins.BatchID)
	assert.Equal(t, "ACC-Ana", ins.BankAccountNo)
	assert.True(t, ins.Amount.Equal(dec("580")))
	assert.Equal(t, SourceFortnight, ins.Source)

	file, err := l.exports.ExportBankCSV(l.ctx, l.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "pagos_2026-10-Q1.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
}

func TestRenderBankCSV(t *testing.T) {
	data, err := RenderBankCSV([]PaymentInstruction{
		{BatchID: "QNA-2026-10-Q1", BankAccountNo: "001", BankName: "Banco Atlántida", AccountHolder: "Ana Perez, S.A.", Amount: dec("580"), Concept: "Comisiones"},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Lote", "Cuenta", "Banco", "Titular", "Monto", "Concepto"}, records[0])
	assert.Equal(t, []string{"QNA-2026-10-Q1", "001", "Banco Atlántida", "Ana Perez, S.A.", "580.00", "Comisiones"}, records[1])
}

func TestRenderTotalsXLSX(t *testing.T) {
	l := newLedger(t)
	data, err := RenderTotalsXLSX(l.totals(l.draft.ID))
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"Corredores", "Aseguradoras"}, wb.GetSheetList())
	title, err := wb.GetCellValue("Corredores", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Quincena 2026-10-Q1", title)
	name, err := wb.GetCellValue("Corredores", "A4")
	require.NoError(t, err)
	assert.Equal(t, "Ana", name)
	insurer, err := wb.GetCellValue("Aseguradoras", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Seguros Atlántida", insurer)
}

func TestExportService_AdjustmentDetail(t *testing.T) {
	l, pooled := closedLedger(t)
	report := l.claim(pooled)

	rows, err := l.exports.AdjustmentDetail(l.ctx, repository.AdjustmentFilter{Status: models.AdjustmentStatusPending})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, report.ID, rows[0].ReportID)
	assert.Equal(t, "Carlos Ruiz", rows[0].InsuredName)
	assert.True(t, rows[0].BrokerAmount.Equal(dec("400")))
	assert.Equal(t, "Ana", rows[0].BrokerName)

	rows, err = l.exports.AdjustmentDetail(l.ctx, repository.AdjustmentFilter{Status: models.AdjustmentStatusRejected})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCommissionRepository_FindItemsByIDs(t *testing.T) {
	l := newLedger(t)

	items, err := l.repos.Commission.FindItems(l.ctx, repository.ItemFilter{IDs: []uint{l.items[2].ID, l.items[0].ID}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, l.items[0].ID, items[0].ID)
	assert.Equal(t, l.items[2].ID, items[1].ID)
}
