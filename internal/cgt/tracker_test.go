package cgt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozbooks/agent-smith/internal/common"
	"github.com/ozbooks/agent-smith/internal/model"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestTrackPurchase(t *testing.T) {
	t.Run("each purchase creates a distinct lot", func(t *testing.T) {
		tracker := NewTracker()

		lot1, err := tracker.TrackPurchase("shares", "BHP", 100, date(2024, 1, 10), 45.00, 9.95)
		require.NoError(t, err)
		lot2, err := tracker.TrackPurchase("shares", "BHP", 100, date(2024, 1, 10), 45.00, 9.95)
		require.NoError(t, err)

		assert.NotEqual(t, lot1.ID, lot2.ID)
		assert.Len(t, tracker.Lots("shares", "BHP"), 2)
	})

	t.Run("out of order purchase re-sorts the queue", func(t *testing.T) {
		tracker := NewTracker()

		_, err := tracker.TrackPurchase("shares", "VAS", 10, date(2024, 6, 1), 90.00, 0)
		require.NoError(t, err)
		_, err = tracker.TrackPurchase("shares", "VAS", 10, date(2024, 2, 1), 85.00, 0)
		require.NoError(t, err)

		lots := tracker.Lots("shares", "VAS")
		require.Len(t, lots, 2)
		assert.Equal(t, date(2024, 2, 1), lots[0].AcquiredAt)
		assert.Equal(t, date(2024, 6, 1), lots[1].AcquiredAt)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		tracker := NewTracker()

		_, err := tracker.TrackPurchase("shares", "BHP", 0, date(2024, 1, 1), 45.00, 0)
		assert.ErrorIs(t, err, common.ErrInvalidQuantity)

		_, err = tracker.TrackPurchase("shares", "BHP", -5, date(2024, 1, 1), 45.00, 0)
		assert.ErrorIs(t, err, common.ErrInvalidQuantity)
	})

	t.Run("rejects negative price and fees", func(t *testing.T) {
		tracker := NewTracker()

		_, err := tracker.TrackPurchase("shares", "BHP", 10, date(2024, 1, 1), -1, 0)
		assert.ErrorIs(t, err, common.ErrInvalidQuantity)

		_, err = tracker.TrackPurchase("shares", "BHP", 10, date(2024, 1, 1), 45.00, -1)
		assert.ErrorIs(t, err, common.ErrInvalidQuantity)
	})
}

func TestTrackSale_SingleLotGain(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.TrackPurchase("shares", "BHP", 100, date(2023, 1, 10), 40.00, 19.95)
	require.NoError(t, err)

	event, err := tracker.TrackSale("shares", "BHP", 100, date(2024, 7, 1), 46.30, 19.95)
	require.NoError(t, err)

	// Proceeds: 100*46.30 - 19.95 = 4610.05
	// Cost base: 100*40.00 + 19.95 = 4019.95
	assert.InDelta(t, 4610.05, event.Proceeds, 0.001)
	assert.InDelta(t, 4019.95, event.CostBase, 0.001)
	assert.InDelta(t, 590.10, event.Gain, 0.001)

	require.Len(t, event.Parcels, 1)
	assert.True(t, event.Parcels[0].DiscountEligible)
	assert.InDelta(t, event.Gain, event.DiscountEligibleGain(), 0.001)
}

func TestTrackSale_BHPWorkedExample(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.TrackPurchase("shares", "BHP", 100, date(2023, 1, 1), 45.50, 19.95)
	require.NoError(t, err)

	event, err := tracker.TrackSale("shares", "BHP", 100, date(2024, 6, 1), 52.00, 19.95)
	require.NoError(t, err)

	// (100*52.00 - 19.95) - (100*45.50 + 19.95) = 610.10, held 517 days.
	assert.InDelta(t, 610.10, event.Gain, 0.001)
	require.Len(t, event.Parcels, 1)
	assert.Equal(t, 517, event.Parcels[0].HoldingDays)
	assert.True(t, event.Parcels[0].DiscountEligible)
}

func TestTrackSale_FIFOAcrossLots(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.TrackPurchase("shares", "VAS", 50, date(2023, 3, 1), 88.00, 10.00)
	require.NoError(t, err)
	_, err = tracker.TrackPurchase("shares", "VAS", 50, date(2024, 5, 1), 95.00, 10.00)
	require.NoError(t, err)

	// 70 units: all 50 from the first lot, 20 from the second.
	event, err := tracker.TrackSale("shares", "VAS", 70, date(2024, 9, 1), 100.00, 14.00)
	require.NoError(t, err)

	require.Len(t, event.Parcels, 2)
	assert.InDelta(t, 50, event.Parcels[0].Quantity, 0.0001)
	assert.InDelta(t, 20, event.Parcels[1].Quantity, 0.0001)

	// First lot held > 365 days; second held ~123 days.
	assert.True(t, event.Parcels[0].DiscountEligible)
	assert.False(t, event.Parcels[1].DiscountEligible)

	// Parcel cost bases include the proportional acquisition fees.
	assert.InDelta(t, 50*88.00+10.00, event.Parcels[0].CostBase, 0.001)
	assert.InDelta(t, 20*95.00+10.00*(20.0/50.0), event.Parcels[1].CostBase, 0.001)

	// Parcel gains sum to the event gain.
	sum := event.Parcels[0].Gain + event.Parcels[1].Gain
	assert.InDelta(t, event.Gain, sum, 0.001)

	// Eligible gain covers the first parcel only.
	assert.InDelta(t, event.Parcels[0].Gain, event.DiscountEligibleGain(), 0.001)

	lots := tracker.Lots("shares", "VAS")
	require.Len(t, lots, 2)
	assert.InDelta(t, 0, lots[0].Remaining, 0.0001)
	assert.True(t, lots[0].Exhausted)
	assert.InDelta(t, 30, lots[1].Remaining, 0.0001)
	assert.False(t, lots[1].Exhausted)
}

func TestTrackSale_PartialLotThenRemainder(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.TrackPurchase("crypto", "BTC", 0.5, date(2023, 1, 1), 30000, 25.00)
	require.NoError(t, err)

	first, err := tracker.TrackSale("crypto", "BTC", 0.2, date(2023, 6, 1), 40000, 20.00)
	require.NoError(t, err)
	// Proportional acquisition fees: 25 * 0.2/0.5 = 10.
	assert.InDelta(t, 0.2*30000+10.00, first.CostBase, 0.001)

	second, err := tracker.TrackSale("crypto", "BTC", 0.3, date(2024, 2, 1), 50000, 20.00)
	require.NoError(t, err)
	assert.InDelta(t, 0.3*30000+15.00, second.CostBase, 0.001)

	lots := tracker.Lots("crypto", "BTC")
	require.Len(t, lots, 1)
	assert.InDelta(t, 0, lots[0].Remaining, 0.0001)
	assert.True(t, lots[0].Exhausted)
}

func TestTrackSale_InsufficientLots(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.TrackPurchase("shares", "BHP", 100, date(2023, 1, 1), 40.00, 0)
	require.NoError(t, err)
	_, err = tracker.TrackSale("shares", "BHP", 30, date(2023, 6, 1), 45.00, 0)
	require.NoError(t, err)

	// 70 remain; selling 150 must fail without touching any lot.
	_, err = tracker.TrackSale("shares", "BHP", 150, date(2024, 1, 1), 50.00, 0)
	require.ErrorIs(t, err, common.ErrInsufficientLots)

	lots := tracker.Lots("shares", "BHP")
	require.Len(t, lots, 1)
	assert.InDelta(t, 70, lots[0].Remaining, 0.0001)
	assert.Len(t, tracker.Events(), 1)
}

func TestTrackSale_DiscountBoundary(t *testing.T) {
	tests := []struct {
		name     string
		sellDate time.Time
		eligible bool
	}{
		{name: "exactly 365 days is not eligible", sellDate: date(2024, 1, 1), eligible: false},
		{name: "366 days is eligible", sellDate: date(2024, 1, 2), eligible: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker()
			_, err := tracker.TrackPurchase("shares", "BHP", 10, date(2023, 1, 1), 40.00, 0)
			require.NoError(t, err)

			event, err := tracker.TrackSale("shares", "BHP", 10, tt.sellDate, 50.00, 0)
			require.NoError(t, err)
			require.Len(t, event.Parcels, 1)
			assert.Equal(t, tt.eligible, event.Parcels[0].DiscountEligible)
		})
	}
}

func TestDiscountEligibleGain_ExcludesLosses(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.TrackPurchase("shares", "ZIP", 100, date(2022, 1, 1), 10.00, 0)
	require.NoError(t, err)

	event, err := tracker.TrackSale("shares", "ZIP", 100, date(2024, 1, 1), 2.00, 0)
	require.NoError(t, err)

	require.Len(t, event.Parcels, 1)
	assert.True(t, event.Parcels[0].DiscountEligible)
	assert.Less(t, event.Gain, 0.0)
	assert.Zero(t, event.DiscountEligibleGain())
}

func TestTrackSale_QuantityConservation(t *testing.T) {
	tracker := NewTracker()

	for i := 0; i < 5; i++ {
		_, err := tracker.TrackPurchase("shares", "NDQ", 20, date(2023, time.Month(i+1), 1), 30.00+float64(i), 5.00)
		require.NoError(t, err)
	}

	event, err := tracker.TrackSale("shares", "NDQ", 65, date(2024, 8, 1), 40.00, 9.95)
	require.NoError(t, err)

	var sold float64
	for _, p := range event.Parcels {
		sold += p.Quantity
	}
	var remaining float64
	for _, lot := range tracker.Lots("shares", "NDQ") {
		remaining += lot.Remaining
	}
	assert.InDelta(t, 65, sold, 0.0001)
	assert.InDelta(t, 100-65, remaining, 0.0001)
}

func TestNewTrackerFromLots(t *testing.T) {
	lots := []model.AssetLot{
		{ID: 7, AssetType: "shares", Asset: "BHP", Quantity: 50, Remaining: 30, AcquiredAt: date(2023, 6, 1), UnitCost: 42.00},
		{ID: 3, AssetType: "shares", Asset: "BHP", Quantity: 100, Remaining: 100, AcquiredAt: date(2023, 1, 1), UnitCost: 40.00},
	}

	tracker := NewTrackerFromLots(lots)

	// FIFO order is by acquisition date, not by id.
	got := tracker.Lots("shares", "BHP")
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(7), got[1].ID)

	// New lot ids continue past the highest persisted id.
	lot, err := tracker.TrackPurchase("shares", "BHP", 10, date(2024, 1, 1), 45.00, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), lot.ID)
}

func TestLotIDsUniqueAcrossAssets(t *testing.T) {
	lots := []model.AssetLot{
		{ID: 3, AssetType: "shares", Asset: "BHP", Quantity: 100, Remaining: 100, AcquiredAt: date(2023, 1, 1), UnitCost: 40.00},
	}

	tracker := NewTrackerFromLots(lots)

	// The first lot of a different asset continues the global id sequence
	// rather than restarting at 1 and colliding with BHP's lot.
	lot, err := tracker.TrackPurchase("shares", "VAS", 10, date(2024, 1, 1), 98.00, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), lot.ID)
}

func TestAssetTypesKeepSeparateQueues(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.TrackPurchase("shares", "BTC", 5, date(2023, 1, 1), 20.00, 0)
	require.NoError(t, err)
	_, err = tracker.TrackPurchase("crypto", "BTC", 2, date(2023, 2, 1), 40000.00, 0)
	require.NoError(t, err)

	// Selling the crypto holding must not draw down the shares queue.
	_, err = tracker.TrackSale("crypto", "BTC", 2, date(2024, 6, 1), 45000.00, 0)
	require.NoError(t, err)

	shares := tracker.Lots("shares", "BTC")
	require.Len(t, shares, 1)
	assert.InDelta(t, 5, shares[0].Remaining, 0.0001)

	_, err = tracker.TrackSale("crypto", "BTC", 1, date(2024, 7, 1), 45000.00, 0)
	assert.ErrorIs(t, err, common.ErrInsufficientLots)
}

func TestAssetKeyIsCaseInsensitive(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.TrackPurchase("shares", "bhp", 10, date(2023, 1, 1), 40.00, 0)
	require.NoError(t, err)

	_, err = tracker.TrackSale("Shares", "BHP", 10, date(2024, 6, 1), 45.00, 0)
	require.NoError(t, err)
}
