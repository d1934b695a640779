package services

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ledger seeds a draft with one broker at 80%, a house broker and three lines:
// 1000 and a -200 chargeback for Ana, 500 left unidentified.
type ledger struct {
	*fixture
	ana     *models.Broker
	house   *models.Broker
	insurer *models.Insurer
	draft   *models.Fortnight
	items   []models.CommissionItem
}

func newLedger(t *testing.T) *ledger {
	f := newFixture(t)
	l := &ledger{fixture: f}
	l.ana = f.broker("Ana", "0.80")
	l.house = f.house()
	l.insurer = f.insurer("Seguros Atlántida")
	l.draft = f.draft("2026-10-01", "2026-10-15")
	l.items = f.ingest(l.draft.ID, l.insurer.ID,
		row("P-100", "Juan Perez", "1000", l.ana),
		row("P-101", "Maria Lopez", "-200", l.ana),
		row("", "Carlos Ruiz", "500", nil),
	)
	return l
}

func TestFortnightService_CreateDraftRejectsSecondDraft(t *testing.T) {
	f := newFixture(t)
	f.draft("2026-10-01", "2026-10-15")

	_, err := f.fortnights.CreateDraft(f.ctx, master, CreateDraftInput{
		PeriodStart: date("2026-10-16"),
		PeriodEnd:   date("2026-10-31"),
	})
	assertKind(t, err, KindStateConflict)
	assert.True(t, errors.Is(err, ErrStateConflict))
	assert.Equal(t, int64(1), f.count(&models.Fortnight{}))
}

func TestFortnightService_CreateDraftValidatesPeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.fortnights.CreateDraft(f.ctx, master, CreateDraftInput{
		PeriodStart: date("2026-10-15"),
		PeriodEnd:   date("2026-10-01"),
	})
	assertKind(t, err, KindValidation)

	_, err = f.fortnights.CreateDraft(f.ctx, Actor{UserID: 9, Role: models.RoleBroker}, CreateDraftInput{
		PeriodStart: date("2026-10-01"),
		PeriodEnd:   date("2026-10-15"),
	})
	assertKind(t, err, KindForbidden)
}

func TestFortnightService_RecalculateDraft(t *testing.T) {
	l := newLedger(t)

	// house lines never reach broker-facing aggregates
	_, err := l.classifier.TempIdentify(l.ctx, master, l.items[2].ID, l.house.ID, nil)
	require.NoError(t, err)

	totals := l.totals(l.draft.ID)
	assert.Equal(t, models.FortnightStatusDraft, totals.Status)
	assert.Equal(t, "2026-10-Q1", totals.PeriodKey)
	require.Len(t, totals.Brokers, 1)

	ana := totals.Brokers[0]
	assert.Equal(t, l.ana.ID, ana.BrokerID)
	assert.True(t, ana.Commission.Equal(dec("640")), "commission %s", ana.Commission)
	assert.True(t, ana.Gross.Equal(dec("640")))
	assert.True(t, ana.Net.Equal(dec("640")))
	assert.Equal(t, 2, ana.ItemCount)

	require.NotNil(t, totals.House)
	assert.True(t, totals.House.Commission.Equal(dec("500")))
	assert.True(t, totals.Gross.Equal(dec("640")))
	assert.True(t, totals.Net.Equal(dec("640")))
	assert.Equal(t, 0, totals.UnidentifiedCount)

	require.Len(t, totals.Insurers, 1)
	assert.True(t, totals.Insurers[0].Total.Equal(dec("1300")))
	assert.Equal(t, 3, totals.Insurers[0].ItemCount)
}

func TestFortnightService_RecalculateHonorsOverride(t *testing.T) {
	l := newLedger(t)
	override := models.MustFraction("0.50")

	_, err := l.classifier.TempIdentify(l.ctx, master, l.items[2].ID, l.ana.ID, &override)
	require.NoError(t, err)

	ana := l.line(l.draft.ID, l.ana.ID)
	assert.True(t, ana.Commission.Equal(dec("890")), "commission %s", ana.Commission)
	assert.Equal(t, 3, ana.ItemCount)
}

func TestFortnightService_RecalculateIsIdempotent(t *testing.T) {
	l := newLedger(t)
	adv := l.advance(l.ana.ID, "100")
	_, err := l.discounts.Stage(l.ctx, master, StageDiscountInput{
		FortnightID: l.draft.ID, BrokerID: l.ana.ID, AdvanceID: adv.ID, Amount: dec("60"),
	})
	require.NoError(t, err)

	first, err := json.Marshal(l.totals(l.draft.ID))
	require.NoError(t, err)
	second, err := json.Marshal(l.totals(l.draft.ID))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestFortnightService_Close(t *testing.T) {
	l := newLedger(t)
	_, err := l.fortnights.SetNotify(l.ctx, master, l.draft.ID, true)
	require.NoError(t, err)

	adv := l.advance(l.ana.ID, "100")
	_, err = l.discounts.Stage(l.ctx, master, StageDiscountInput{
		FortnightID: l.draft.ID, BrokerID: l.ana.ID, AdvanceID: adv.ID, Amount: dec("60"),
	})
	require.NoError(t, err)

	totals, err := l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FortnightStatusPaid, totals.Status)
	assert.True(t, totals.Net.Equal(dec("580")), "net %s", totals.Net)

	closed, err := l.fortnights.Get(l.ctx, l.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FortnightStatusPaid, closed.Status)
	assert.NotNil(t, closed.PaidAt)

	// staged discount became a recovery log
	logs, err := l.advances.History(l.ctx, adv.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.PaymentTypeFortnightDiscount, logs[0].PaymentType)
	assert.True(t, logs[0].Amount.Equal(dec("60")))
	require.NotNil(t, logs[0].FortnightID)
	assert.Equal(t, l.draft.ID, *logs[0].FortnightID)
	assert.Equal(t, int64(0), l.count(&models.TemporaryDiscount{}))

	balance, err := l.advances.Get(l.ctx, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdvanceStatusPartial, balance.Status)
	assert.True(t, balance.Remaining.Equal(dec("40")))

	// frozen snapshot
	rows, err := l.repos.BrokerTotal.FindByFortnight(l.ctx, l.draft.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].NetAmount.Equal(dec("580")))
	assert.Equal(t, "ACC-Ana", rows[0].BankAccountNo)

	items, err := l.repos.Commission.FindItems(l.ctx, repository.ItemFilter{FortnightID: l.draft.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusIdentified, items[0].Status)
	assert.Equal(t, models.ItemStatusIdentified, items[1].Status)
	assert.Equal(t, models.ItemStatusPending, items[2].Status)

	snapshot := l.totals(l.draft.ID)
	assert.True(t, snapshot.Net.Equal(dec("580")))
	assert.Equal(t, 1, snapshot.UnidentifiedCount)

	unread, err := l.notifications.CountUnread(l.ctx, *l.ana.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	_, err = l.fortnights.Close(l.ctx, master, l.draft.ID)
	assertKind(t, err, KindStateConflict)
}

func TestFortnightService_CloseWithoutNotifyWritesNoOutbox(t *testing.T) {
	l := newLedger(t)

	_, err := l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.NoError(t, err)

	unread, err := l.notifications.CountUnread(l.ctx, *l.ana.UserID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestFortnightService_CloseIsAtomic(t *testing.T) {
	l := newLedger(t)
	adv := l.advance(l.ana.ID, "100")
	_, err := l.discounts.Stage(l.ctx, master, StageDiscountInput{
		FortnightID: l.draft.ID, BrokerID: l.ana.ID, AdvanceID: adv.ID, Amount: dec("60"),
	})
	require.NoError(t, err)

	// fail the snapshot write, which happens after the payment logs were inserted
	require.NoError(t, l.db.Callback().Create().Before("gorm:create").Register("test:fail_totals", func(tx *gorm.DB) {
		if tx.Statement.Table == "fortnight_broker_totals" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err = l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.Error(t, err)

	f, err := l.fortnights.Get(l.ctx, l.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FortnightStatusDraft, f.Status)
	assert.Nil(t, f.PaidAt)
	assert.Equal(t, int64(0), l.count(&models.BrokerFortnightTotal{}))
	assert.Equal(t, int64(0), l.count(&models.AdvancePaymentLog{}))
	assert.Equal(t, int64(1), l.count(&models.TemporaryDiscount{}))

	balance, err := l.advances.Get(l.ctx, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdvanceStatusPending, balance.Status)

	items, err := l.repos.Commission.FindItems(l.ctx, repository.ItemFilter{FortnightID: l.draft.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusProvisional, items[0].Status)
	assert.Equal(t, models.ItemStatusUnidentified, items[2].Status)
}

func TestFortnightService_CloseRechecksOvercommit(t *testing.T) {
	l := newLedger(t)
	adv := l.advance(l.ana.ID, "700")
	_, err := l.discounts.Stage(l.ctx, master, StageDiscountInput{
		FortnightID: l.draft.ID, BrokerID: l.ana.ID, AdvanceID: adv.ID, Amount: dec("640"),
	})
	require.NoError(t, err)

	// dropping the 1000 line leaves a gross of -160 under the staged 640
	_, err = l.classifier.TempUnidentify(l.ctx, master, l.items[0].ID)
	require.NoError(t, err)

	_, err = l.fortnights.Close(l.ctx, master, l.draft.ID)
	assertKind(t, err, KindStateConflict)
	assert.Contains(t, err.Error(), "exceden el bruto")

	f, err := l.fortnights.Get(l.ctx, l.draft.ID)
	require.NoError(t, err)
	assert.True(t, f.IsDraft())
}

func TestFortnightService_CloseRechecksAppliedDiscounts(t *testing.T) {
	l := newLedger(t)
	adv := l.advance(l.ana.ID, "700")
	_, err := l.advances.ApplyPayment(l.ctx, master, ApplyPaymentInput{
		AdvanceID: adv.ID, Amount: dec("600"), PaymentType: models.PaymentTypeFortnightDiscount, FortnightID: &l.draft.ID,
	})
	require.NoError(t, err)

	_, err = l.classifier.TempUnidentify(l.ctx, master, l.items[0].ID)
	require.NoError(t, err)

	_, err = l.fortnights.Close(l.ctx, master, l.draft.ID)
	assertKind(t, err, KindStateConflict)
	assert.Contains(t, err.Error(), "-$160.00")
	assert.Equal(t, int64(0), l.count(&models.BrokerFortnightTotal{}))
}

func TestFortnightService_Discard(t *testing.T) {
	l := newLedger(t)
	adv := l.advance(l.ana.ID, "100")
	_, err := l.discounts.Stage(l.ctx, master, StageDiscountInput{
		FortnightID: l.draft.ID, BrokerID: l.ana.ID, AdvanceID: adv.ID, Amount: dec("50"),
	})
	require.NoError(t, err)

	require.NoError(t, l.fortnights.Discard(l.ctx, master, l.draft.ID))

	_, err = l.fortnights.Get(l.ctx, l.draft.ID)
	assertKind(t, err, KindNotFound)
	assert.Equal(t, int64(0), l.count(&models.CommissionItem{}))
	assert.Equal(t, int64(0), l.count(&models.CommissionImport{}))
	assert.Equal(t, int64(0), l.count(&models.TemporaryDiscount{}))
	assert.Equal(t, int64(1), l.count(&models.Advance{}))

	// a new draft can be opened afterwards
	l.draft = l.fixture.draft("2026-10-01", "2026-10-15")
}

func TestFortnightService_DiscardPaidFortnight(t *testing.T) {
	l := newLedger(t)
	_, err := l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.NoError(t, err)

	err = l.fortnights.Discard(l.ctx, master, l.draft.ID)
	assertKind(t, err, KindStateConflict)
}

func TestFortnightService_RefreshLive(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fortnights.RefreshLive(f.ctx))
	assert.Nil(t, f.fortnights.LiveProjection())

	draft := f.draft("2026-10-16", "2026-10-31")
	require.NoError(t, f.fortnights.RefreshLive(f.ctx))
	live := f.fortnights.LiveProjection()
	require.NotNil(t, live)
	assert.Equal(t, draft.ID, live.FortnightID)
	assert.Equal(t, "2026-10-Q2", live.PeriodKey)

	require.NoError(t, f.fortnights.Discard(f.ctx, master, draft.ID))
	assert.Nil(t, f.fortnights.LiveProjection())
}

func TestFortnightService_LiveProjectionIgnoresClosedFortnight(t *testing.T) {
	l := newLedger(t)
	require.NoError(t, l.fortnights.RefreshLive(l.ctx))
	require.NotNil(t, l.fortnights.LiveProjection())

	// a recompute that started before the close finishes after it
	_, err := l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.NoError(t, err)
	late, err := l.fortnights.Recalculate(l.ctx, l.draft.ID)
	require.NoError(t, err)
	require.Equal(t, models.FortnightStatusPaid, late.Status)

	l.fortnights.publishLive(late)
	assert.Nil(t, l.fortnights.LiveProjection())
}

func TestFortnightService_SetNotifyOnPaidFortnight(t *testing.T) {
	l := newLedger(t)
	_, err := l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.NoError(t, err)

	_, err = l.fortnights.SetNotify(l.ctx, master, l.draft.ID, true)
	assertKind(t, err, KindStateConflict)
}
