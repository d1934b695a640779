package statemachine

import (
	"context"
	"testing"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFortnightFSM_Pay(t *testing.T) {
	ctx := context.Background()
	f := &models.Fortnight{Status: models.FortnightStatusDraft}

	require.NoError(t, NewFortnightFSM(f).Pay(ctx))
	assert.Equal(t, models.FortnightStatusPaid, f.Status)

	// paid is terminal
	assert.Error(t, NewFortnightFSM(f).Pay(ctx))
	assert.Equal(t, models.FortnightStatusPaid, f.Status)
}

func TestAdvanceFSM_Reconcile(t *testing.T) {
	ctx := context.Background()
	adv := &models.Advance{ID: 1, Amount: decimal.NewFromInt(100), Status: models.AdvanceStatusPending}
	m := NewAdvanceFSM(adv)

	tests := []struct {
		name string
		paid int64
		want string
	}{
		{"nothing recovered", 0, models.AdvanceStatusPending},
		{"partial", 40, models.AdvanceStatusPartial},
		{"still partial", 60, models.AdvanceStatusPartial},
		{"settled", 100, models.AdvanceStatusPaid},
		{"reopened", 90, models.AdvanceStatusPartial},
		{"reset", 0, models.AdvanceStatusPending},
	}
	for _, tt := range tests {
		require.NoError(t, m.Reconcile(ctx, decimal.NewFromInt(tt.paid)), tt.name)
		assert.Equal(t, tt.want, adv.Status, tt.name)
		assert.Equal(t, tt.want, m.Current(), tt.name)
	}

	err := m.Reconcile(ctx, decimal.NewFromInt(120))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overpaid by 20.00")
	assert.Equal(t, models.AdvanceStatusPending, adv.Status)
}

func TestAdjustmentFSM(t *testing.T) {
	ctx := context.Background()

	report := &models.AdjustmentReport{Status: models.AdjustmentStatusPending}
	m := NewAdjustmentFSM(report)
	assert.False(t, m.Can("pay"))
	require.NoError(t, m.Approve(ctx))
	assert.Equal(t, models.AdjustmentStatusApproved, report.Status)
	assert.Error(t, m.Reject(ctx))
	require.NoError(t, m.Pay(ctx))
	assert.Equal(t, models.AdjustmentStatusPaid, report.Status)
	assert.Error(t, m.Pay(ctx))

	rejected := &models.AdjustmentReport{Status: models.AdjustmentStatusPending}
	m = NewAdjustmentFSM(rejected)
	require.NoError(t, m.Reject(ctx))
	assert.Equal(t, models.AdjustmentStatusRejected, rejected.Status)
	assert.Error(t, m.Approve(ctx))
	assert.Error(t, m.Pay(ctx))
}
