package services

import (
	"testing"
	"time"

	"github.com/playgrid/fieldbook/models"
)

func TestHoursBeforeRefundPolicyDefaultTiers(t *testing.T) {
	policy := CreateHoursBeforeRefundPolicy(nil)
	booking := &models.Booking{TotalAmount: 200000}
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		hoursBefore time.Duration
		want        int64
	}{
		{"well ahead", 72 * time.Hour, 200000},
		{"exactly at full tier", 48 * time.Hour, 200000},
		{"one day out", 30 * time.Hour, 150000},
		{"same day", 10 * time.Hour, 100000},
		{"last minute", 2 * time.Hour, 0},
		{"already started", -time.Hour, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slotStart := now.Add(tc.hoursBefore)
			got := policy.RefundAmount(booking, slotStart, now)
			if got != tc.want {
				t.Errorf("refund = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHoursBeforeRefundPolicyCustomTierOrder(t *testing.T) {
	// unsorted on purpose; the policy orders them itself
	policy := CreateHoursBeforeRefundPolicy([]RefundTier{
		{MinHoursBefore: 12, Percent: 50},
		{MinHoursBefore: 96, Percent: 100},
	})
	booking := &models.Booking{TotalAmount: 100000}
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := policy.RefundAmount(booking, now.Add(100*time.Hour), now); got != 100000 {
		t.Errorf("refund = %d, want 100000", got)
	}
	if got := policy.RefundAmount(booking, now.Add(24*time.Hour), now); got != 50000 {
		t.Errorf("refund = %d, want 50000", got)
	}
	if got := policy.RefundAmount(booking, now.Add(time.Hour), now); got != 0 {
		t.Errorf("refund = %d, want 0", got)
	}
}

func TestFullRefundPolicy(t *testing.T) {
	booking := &models.Booking{TotalAmount: 75000}
	if got := (FullRefundPolicy{}).RefundAmount(booking, time.Time{}, time.Time{}); got != 75000 {
		t.Errorf("refund = %d, want 75000", got)
	}
}
