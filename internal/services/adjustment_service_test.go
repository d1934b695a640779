package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lissa/commissions-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedLedger pays the seeded draft so the unidentified 500 line lands in the pool
func closedLedger(t *testing.T) (*ledger, uint) {
	l := newLedger(t)
	_, err := l.fortnights.Close(l.ctx, master, l.draft.ID)
	require.NoError(t, err)
	return l, l.items[2].ID
}

func (l *ledger) claim(itemID uint) *models.AdjustmentReport {
	l.t.Helper()
	report, err := l.adjustments.Submit(l.ctx, brokerActor(l.ana), SubmitAdjustmentInput{
		BrokerID: l.ana.ID, ItemIDs: []uint{itemID}, Notes: "Cliente referido por mí",
	})
	require.NoError(l.t, err)
	return report
}

func TestAdjustmentService_Submit(t *testing.T) {
	l, pooled := closedLedger(t)

	report := l.claim(pooled)
	assert.Equal(t, models.AdjustmentStatusPending, report.Status)
	require.Len(t, report.Items, 1)
	assert.True(t, report.TotalAmount.Equal(dec("400")))

	it, err := l.repos.Commission.FindItemByID(l.ctx, pooled)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusInReview, it.Status)

	unread, err := l.notifications.CountUnread(l.ctx, master.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	// the item is claimed already
	_, err = l.adjustments.Submit(l.ctx, master, SubmitAdjustmentInput{BrokerID: l.ana.ID, ItemIDs: []uint{pooled}})
	assertKind(t, err, KindStateConflict)
}

func TestAdjustmentService_SubmitRules(t *testing.T) {
	l, pooled := closedLedger(t)
	beto := l.broker("Beto", "0.70")

	_, err := l.adjustments.Submit(l.ctx, brokerActor(beto), SubmitAdjustmentInput{BrokerID: l.ana.ID, ItemIDs: []uint{pooled}})
	assertKind(t, err, KindForbidden)

	_, err = l.adjustments.Submit(l.ctx, brokerActor(l.ana), SubmitAdjustmentInput{BrokerID: l.ana.ID})
	assertKind(t, err, KindValidation)

	_, err = l.adjustments.Submit(l.ctx, brokerActor(l.ana), SubmitAdjustmentInput{BrokerID: l.ana.ID, ItemIDs: []uint{pooled, 999}})
	assertKind(t, err, KindNotFound)

	// attributed items are not in the pool
	_, err = l.adjustments.Submit(l.ctx, brokerActor(l.ana), SubmitAdjustmentInput{BrokerID: l.ana.ID, ItemIDs: []uint{l.items[0].ID}})
	assertKind(t, err, KindStateConflict)

	assert.Equal(t, int64(0), l.count(&models.AdjustmentReport{}))
}

func TestAdjustmentService_ApproveNowAndPay(t *testing.T) {
	l, pooled := closedLedger(t)
	report := l.claim(pooled)

	approved, err := l.adjustments.Approve(l.ctx, master, report.ID, ApproveAdjustmentInput{PaymentTiming: models.PaymentTimingNow})
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentStatusApproved, approved.Status)

	it, err := l.repos.Commission.FindItemByID(l.ctx, pooled)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusAssigned, it.Status)
	require.NotNil(t, it.BrokerID)
	assert.Equal(t, l.ana.ID, *it.BrokerID)

	payout, err := l.adjustments.MarkPaid(l.ctx, master, []uint{report.ID, report.ID})
	require.NoError(t, err)
	_, err = uuid.Parse(payout.BatchID)
	require.NoError(t, err)
	assert.Equal(t, []uint{report.ID}, payout.Reports)
	require.Len(t, payout.Instructions, 1)
	ins := payout.Instructions[0]
	assert.Equal(t, SourceAdjustment, ins.Source)
	assert.Equal(t, "ACC-Ana", ins.BankAccountNo)
	assert.True(t, ins.Amount.Equal(dec("400")))

	paid, err := l.adjustments.Get(l.ctx, master, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentStatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentBatchID)
	assert.Equal(t, payout.BatchID, *paid.PaymentBatchID)

	_, err = l.adjustments.MarkPaid(l.ctx, master, []uint{report.ID})
	assertKind(t, err, KindStateConflict)
}

func TestAdjustmentService_NextFortnightFoldsIntoDraft(t *testing.T) {
	l, pooled := closedLedger(t)
	report := l.claim(pooled)

	_, err := l.adjustments.Approve(l.ctx, master, report.ID, ApproveAdjustmentInput{PaymentTiming: models.PaymentTimingNextFortnight})
	require.NoError(t, err)

	_, err = l.adjustments.MarkPaid(l.ctx, master, []uint{report.ID})
	assertKind(t, err, KindStateConflict)
	assert.Contains(t, err.Error(), "próxima quincena")

	next, err := l.fortnights.CreateDraft(l.ctx, master, CreateDraftInput{PeriodStart: date("2026-10-16"), PeriodEnd: date("2026-10-31")})
	require.NoError(t, err)
	assert.Equal(t, []uint{report.ID}, next.FoldedReports)

	ana := l.line(next.Fortnight.ID, l.ana.ID)
	assert.True(t, ana.Commission.IsZero())
	assert.True(t, ana.Adjustments.Equal(dec("400")))
	assert.True(t, ana.Gross.Equal(dec("400")))

	_, err = l.fortnights.Close(l.ctx, master, next.Fortnight.ID)
	require.NoError(t, err)
	paid, err := l.adjustments.Get(l.ctx, master, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentStatusPaid, paid.Status)
}

func TestAdjustmentService_NextFortnightLinksOpenDraft(t *testing.T) {
	l, pooled := closedLedger(t)
	report := l.claim(pooled)
	next := l.fixture.draft("2026-10-16", "2026-10-31")

	approved, err := l.adjustments.Approve(l.ctx, master, report.ID, ApproveAdjustmentInput{PaymentTiming: models.PaymentTimingNextFortnight})
	require.NoError(t, err)
	require.NotNil(t, approved.FortnightID)
	assert.Equal(t, next.ID, *approved.FortnightID)
	assert.True(t, l.line(next.ID, l.ana.ID).Adjustments.Equal(dec("400")))

	// discarding the draft releases the report for the next one
	require.NoError(t, l.fortnights.Discard(l.ctx, master, next.ID))
	again, err := l.fortnights.CreateDraft(l.ctx, master, CreateDraftInput{PeriodStart: date("2026-10-16"), PeriodEnd: date("2026-10-31")})
	require.NoError(t, err)
	assert.Equal(t, []uint{report.ID}, again.FoldedReports)
}

func TestAdjustmentService_Reject(t *testing.T) {
	l, pooled := closedLedger(t)
	report := l.claim(pooled)

	_, err := l.adjustments.Reject(l.ctx, master, report.ID, "  ")
	assertKind(t, err, KindValidation)

	rejected, err := l.adjustments.Reject(l.ctx, master, report.ID, "La póliza pertenece a otra agencia")
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentStatusRejected, rejected.Status)

	it, err := l.repos.Commission.FindItemByID(l.ctx, pooled)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPending, it.Status)
	assert.Nil(t, it.BrokerID)

	_, err = l.adjustments.Approve(l.ctx, master, report.ID, ApproveAdjustmentInput{PaymentTiming: models.PaymentTimingNow})
	assertKind(t, err, KindStateConflict)

	// back in the pool, so it can be claimed again
	l.claim(pooled)
}

func TestAdjustmentService_BrokerScoping(t *testing.T) {
	l, pooled := closedLedger(t)
	beto := l.broker("Beto", "0.70")
	report := l.claim(pooled)

	_, err := l.adjustments.Get(l.ctx, brokerActor(beto), report.ID)
	assertKind(t, err, KindForbidden)

	own, err := l.adjustments.List(l.ctx, brokerActor(l.ana), "")
	require.NoError(t, err)
	assert.Len(t, own, 1)
	others, err := l.adjustments.List(l.ctx, brokerActor(beto), "")
	require.NoError(t, err)
	assert.Empty(t, others)

	_, err = l.adjustments.Approve(l.ctx, brokerActor(l.ana), report.ID, ApproveAdjustmentInput{PaymentTiming: models.PaymentTimingNow})
	assertKind(t, err, KindForbidden)
}
