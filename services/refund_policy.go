package services

import (
	"sort"
	"time"

	"github.com/playgrid/fieldbook/models"
)

// RefundPolicy decides how much of a paid booking comes back when the
// customer cancels. The exact tiers are a product decision; the policy is
// injected so deployments can swap it without touching the state machine.
type RefundPolicy interface {
	RefundAmount(booking *models.Booking, slotStart time.Time, now time.Time) int64
}

type RefundTier struct {
	MinHoursBefore float64
	Percent        int64
}

// HoursBeforeRefundPolicy grades the refund by how far ahead of the first
// slot the cancellation lands.
type HoursBeforeRefundPolicy struct {
	tiers []RefundTier
}

func CreateHoursBeforeRefundPolicy(tiers []RefundTier) *HoursBeforeRefundPolicy {
	if len(tiers) == 0 {
		tiers = []RefundTier{
			{MinHoursBefore: 48, Percent: 100},
			{MinHoursBefore: 24, Percent: 75},
			{MinHoursBefore: 6, Percent: 50},
		}
	}

	sorted := make([]RefundTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinHoursBefore > sorted[j].MinHoursBefore
	})

	return &HoursBeforeRefundPolicy{tiers: sorted}
}

func (p *HoursBeforeRefundPolicy) RefundAmount(booking *models.Booking, slotStart time.Time, now time.Time) int64 {
	hoursBefore := slotStart.Sub(now).Hours()

	for _, tier := range p.tiers {
		if hoursBefore >= tier.MinHoursBefore {
			return booking.TotalAmount * tier.Percent / 100
		}
	}
	return 0
}

// FullRefundPolicy always returns the full amount; used for
// maintenance-initiated cancellations where the customer is not at fault.
type FullRefundPolicy struct{}

func (FullRefundPolicy) RefundAmount(booking *models.Booking, _ time.Time, _ time.Time) int64 {
	return booking.TotalAmount
}
