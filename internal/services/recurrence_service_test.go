package services

import (
	"testing"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecurrenceService_CreateGeneratesStartMonth(t *testing.T) {
	f := newFixture(t)
	ana := f.broker("Ana", "0.80")

	rec, generated, err := f.recurrences.Create(f.ctx, master, CreateRecurrenceInput{
		BrokerID: ana.ID, Amount: dec("50"), Reason: "Cuota", FortnightType: models.HalfBoth, StartDate: date("2026-09-01"),
	})
	require.NoError(t, err)
	require.Len(t, generated, 2)
	assert.Equal(t, "2026-09-Q1", *generated[0].PeriodKey)
	assert.Equal(t, "2026-09-Q2", *generated[1].PeriodKey)
	assert.True(t, generated[0].IsRecurring)
	assert.Equal(t, 2, rec.RecurrenceCount)
}

func TestRecurrenceService_CreateMidMonthSkipsPastHalf(t *testing.T) {
	f := newFixture(t)
	ana := f.broker("Ana", "0.80")

	_, generated, err := f.recurrences.Create(f.ctx, master, CreateRecurrenceInput{
		BrokerID: ana.ID, Amount: dec("50"), Reason: "Cuota", FortnightType: models.HalfBoth, StartDate: date("2026-09-20"),
	})
	require.NoError(t, err)
	require.Len(t, generated, 1)
	assert.Equal(t, "2026-09-Q2", *generated[0].PeriodKey)

	_, generated, err = f.recurrences.Create(f.ctx, master, CreateRecurrenceInput{
		BrokerID: ana.ID, Amount: dec("50"), Reason: "Cuota", FortnightType: models.HalfQ1, StartDate: date("2026-09-20"),
	})
	require.NoError(t, err)
	assert.Empty(t, generated)
}

func TestRecurrenceService_GenerationPerDraft(t *testing.T) {
	f := newFixture(t)
	ana := f.broker("Ana", "0.80")
	_, _, err := f.recurrences.Create(f.ctx, master, CreateRecurrenceInput{
		BrokerID: ana.ID, Amount: dec("50"), Reason: "Cuota", FortnightType: models.HalfBoth, StartDate: date("2026-09-01"),
	})
	require.NoError(t, err)

	q1, err := f.fortnights.CreateDraft(f.ctx, master, CreateDraftInput{PeriodStart: date("2026-10-01"), PeriodEnd: date("2026-10-15")})
	require.NoError(t, err)
	require.Len(t, q1.GeneratedAdvances, 1)
	assert.Equal(t, "2026-10-Q1", *q1.GeneratedAdvances[0].PeriodKey)

	// the generated advance survives a discard and is not generated twice
	require.NoError(t, f.fortnights.Discard(f.ctx, master, q1.Fortnight.ID))
	again, err := f.fortnights.CreateDraft(f.ctx, master, CreateDraftInput{PeriodStart: date("2026-10-01"), PeriodEnd: date("2026-10-15")})
	require.NoError(t, err)
	assert.Empty(t, again.GeneratedAdvances)
	assert.Equal(t, int64(3), f.count(&models.Advance{}))

	_, err = f.fortnights.Close(f.ctx, master, again.Fortnight.ID)
	require.NoError(t, err)

	q2, err := f.fortnights.CreateDraft(f.ctx, master, CreateDraftInput{PeriodStart: date("2026-10-16"), PeriodEnd: date("2026-10-31")})
	require.NoError(t, err)
	require.Len(t, q2.GeneratedAdvances, 1)
	assert.Equal(t, "2026-10-Q2", *q2.GeneratedAdvances[0].PeriodKey)
}

func TestRecurrenceService_SkipsOtherHalfAndInactive(t *testing.T) {
	f := newFixture(t)
	ana := f.broker("Ana", "0.80")
	beto := f.broker("Beto", "0.70")

	_, _, err := f.recurrences.Create(f.ctx, master, CreateRecurrenceInput{
		BrokerID: ana.ID, Amount: dec("50"), Reason: "Solo Q2", FortnightType: models.HalfQ2, StartDate: date("2026-09-01"),
	})
	require.NoError(t, err)
	paused, _, err := f.recurrences.Create(f.ctx, master, CreateRecurrenceInput{
		BrokerID: beto.ID, Amount: dec("20"), Reason: "Pausada", FortnightType: models.HalfBoth, StartDate: date("2026-09-01"),
	})
	require.NoError(t, err)

	inactive := false
	_, err = f.recurrences.Update(f.ctx, master, paused.ID, UpdateRecurrenceInput{IsActive: &inactive})
	require.NoError(t, err)

	res, err := f.fortnights.CreateDraft(f.ctx, master, CreateDraftInput{PeriodStart: date("2026-10-01"), PeriodEnd: date("2026-10-15")})
	require.NoError(t, err)
	assert.Empty(t, res.GeneratedAdvances)
}

func TestRecurrenceService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ana := f.broker("Ana", "0.80")
	end := date("2026-08-01")

	tests := []struct {
		name string
		in   CreateRecurrenceInput
		kind ErrorKind
	}{
		{"unknown half", CreateRecurrenceInput{BrokerID: ana.ID, Amount: dec("10"), Reason: "x", FortnightType: "Q3", StartDate: date("2026-09-01")}, KindValidation},
		{"zero amount", CreateRecurrenceInput{BrokerID: ana.ID, Amount: dec("0"), Reason: "x", FortnightType: models.HalfQ1, StartDate: date("2026-09-01")}, KindValidation},
		{"end before start", CreateRecurrenceInput{BrokerID: ana.ID, Amount: dec("10"), Reason: "x", FortnightType: models.HalfQ1, StartDate: date("2026-09-01"), EndDate: &end}, KindValidation},
		{"unknown broker", CreateRecurrenceInput{BrokerID: 999, Amount: dec("10"), Reason: "x", FortnightType: models.HalfQ1, StartDate: date("2026-09-01")}, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.recurrences.Create(f.ctx, master, tt.in)
			assertKind(t, err, tt.kind)
		})
	}
	assert.Equal(t, int64(0), f.count(&models.AdvanceRecurrence{}))
}
