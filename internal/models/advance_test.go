package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceRecurrence_AppliesTo(t *testing.T) {
	end := day("2026-10-31")
	rec := &AdvanceRecurrence{FortnightType: HalfQ2, StartDate: day("2026-09-20"), EndDate: &end, IsActive: true}

	tests := []struct {
		name  string
		half  string
		start string
		stop  string
		want  bool
	}{
		{"matching half", HalfQ2, "2026-10-16", "2026-10-31", true},
		{"other half", HalfQ1, "2026-10-01", "2026-10-15", false},
		{"before start", HalfQ2, "2026-08-16", "2026-08-31", false},
		{"start inside period", HalfQ2, "2026-09-16", "2026-09-30", true},
		{"after end", HalfQ2, "2026-11-16", "2026-11-30", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.AppliesTo(tt.half, day(tt.start), day(tt.stop)))
		})
	}

	rec.IsActive = false
	assert.False(t, rec.AppliesTo(HalfQ2, day("2026-10-16"), day("2026-10-31")))
}

func TestAdvanceRecurrence_Halves(t *testing.T) {
	assert.Equal(t, []string{HalfQ1, HalfQ2}, (&AdvanceRecurrence{FortnightType: HalfBoth}).Halves())
	assert.Equal(t, []string{HalfQ1}, (&AdvanceRecurrence{FortnightType: HalfQ1}).Halves())
}

func TestCommissionItem_IsAged(t *testing.T) {
	now := day("2026-10-15")
	brokerID := uint(3)

	item := &CommissionItem{Status: ItemStatusPending, CreatedAt: now.AddDate(0, 0, -AgingDays)}
	assert.True(t, item.IsAged(now))
	assert.True(t, item.MayClaim())

	item.CreatedAt = now.AddDate(0, 0, -AgingDays+1)
	assert.False(t, item.IsAged(now))

	claimed := &CommissionItem{Status: ItemStatusInReview, CreatedAt: now.AddDate(0, 0, -200)}
	assert.False(t, claimed.IsAged(now))

	owned := &CommissionItem{Status: ItemStatusProvisional, BrokerID: &brokerID, CreatedAt: time.Time{}}
	assert.False(t, owned.IsAged(now))
	assert.True(t, owned.MayTempUnidentify())
}
