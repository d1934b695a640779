package services

import (
	"testing"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportService_Ingest(t *testing.T) {
	l := newLedger(t)
	require.Len(t, l.items, 3)

	assert.Equal(t, models.ItemStatusProvisional, l.items[0].Status)
	require.NotNil(t, l.items[0].BrokerID)
	assert.Equal(t, models.ItemStatusUnidentified, l.items[2].Status)
	assert.Nil(t, l.items[2].BrokerID)

	imports, err := l.imports.ListImports(l.ctx, l.draft.ID)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, 3, imports[0].ItemCount)
	assert.True(t, imports[0].TotalAmount.Equal(dec("1300")))

	unidentified, err := l.imports.ListItems(l.ctx, l.draft.ID, []string{models.ItemStatusUnidentified})
	require.NoError(t, err)
	assert.Len(t, unidentified, 1)
}

func TestImportService_IngestRejects(t *testing.T) {
	l := newLedger(t)

	tests := []struct {
		name  string
		batch ImportBatch
		kind  ErrorKind
	}{
		{"zero amount row", ImportBatch{FortnightID: l.draft.ID, InsurerID: l.insurer.ID, FileName: "a.xlsx", Rows: []ImportRow{row("P-1", "X", "0", nil)}}, KindValidation},
		{"unknown insurer", ImportBatch{FortnightID: l.draft.ID, InsurerID: 999, FileName: "a.xlsx", Rows: []ImportRow{row("P-1", "X", "10", nil)}}, KindNotFound},
		{"unknown broker", ImportBatch{FortnightID: l.draft.ID, InsurerID: l.insurer.ID, FileName: "a.xlsx", Rows: []ImportRow{{PolicyNumber: "P-1", GrossAmount: dec("10"), BrokerID: ptr(uint(999))}}}, KindValidation},
		{"unknown fortnight", ImportBatch{FortnightID: 999, InsurerID: l.insurer.ID, FileName: "a.xlsx", Rows: []ImportRow{row("P-1", "X", "10", nil)}}, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.imports.Ingest(l.ctx, master, tt.batch)
			assertKind(t, err, tt.kind)
		})
	}
	assert.Equal(t, int64(3), l.count(&models.CommissionItem{}))
}

func TestImportService_PaidFortnightIsFrozen(t *testing.T) {
	l := newLedger(t)
	_, err := l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.NoError(t, err)

	_, err = l.imports.Ingest(l.ctx, master, ImportBatch{
		FortnightID: l.draft.ID, InsurerID: l.insurer.ID, FileName: "tarde.xlsx",
		Rows: []ImportRow{row("P-9", "Tarde", "10", nil)},
	})
	assertKind(t, err, KindStateConflict)

	err = l.imports.DeleteImport(l.ctx, master, l.items[0].ImportID)
	assertKind(t, err, KindStateConflict)
}

func TestImportService_DeleteImport(t *testing.T) {
	l := newLedger(t)

	require.NoError(t, l.imports.DeleteImport(l.ctx, master, l.items[0].ImportID))
	assert.Equal(t, int64(0), l.count(&models.CommissionItem{}))
	assert.Equal(t, int64(0), l.count(&models.CommissionImport{}))

	_, ok := l.totals(l.draft.ID).Line(l.ana.ID)
	assert.False(t, ok)

	err := l.imports.DeleteImport(l.ctx, master, l.items[0].ImportID)
	assertKind(t, err, KindNotFound)
}

func ptr[T any](v T) *T {
	return &v
}
