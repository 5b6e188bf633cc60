// Package cgt implements FIFO capital-gains lot tracking with the
// Australian 12-month discount rule.
package cgt

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ozbooks/agent-smith/internal/common"
	"github.com/ozbooks/agent-smith/internal/model"
)

// discountHoldingDays is the strict boundary for CGT discount eligibility:
// a parcel held exactly 365 days does not qualify, 366 does.
const discountHoldingDays = 365

// Tracker maintains per-asset purchase lots and matches sales against them
// oldest-first. It is an in-memory structure; callers that parallelize
// across sales of the same asset must serialize access.
type Tracker struct {
	lots   map[string][]*model.AssetLot
	events []model.CGTEvent
	nextID int64
}

// NewTracker creates an empty lot tracker.
func NewTracker() *Tracker {
	return &Tracker{lots: make(map[string][]*model.AssetLot)}
}

// NewTrackerFromLots rebuilds a tracker from persisted lots, preserving
// acquisition-date order per asset.
func NewTrackerFromLots(lots []model.AssetLot) *Tracker {
	t := NewTracker()
	for i := range lots {
		lot := lots[i]
		if lot.ID >= t.nextID {
			t.nextID = lot.ID + 1
		}
		key := assetKey(lot.AssetType, lot.Asset)
		t.lots[key] = append(t.lots[key], &lot)
	}
	for _, queue := range t.lots {
		sortLotsByDate(queue)
	}
	return t
}

func assetKey(assetType, asset string) string {
	return strings.ToUpper(assetType) + ":" + strings.ToUpper(asset)
}

func sortLotsByDate(queue []*model.AssetLot) {
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].AcquiredAt.Before(queue[j].AcquiredAt)
	})
}

// TrackPurchase appends a new lot for the asset. Each purchase is a
// distinct lot for audit traceability, never merged with an existing lot
// even at the same date and price. Out-of-order insertion re-sorts the
// queue so FIFO consumption stays chronological.
func (t *Tracker) TrackPurchase(assetType, asset string, quantity float64, date time.Time, unitPrice, fees float64) (*model.AssetLot, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: purchase quantity %.4f", common.ErrInvalidQuantity, quantity)
	}
	if unitPrice < 0 || fees < 0 {
		return nil, fmt.Errorf("%w: negative price or fees", common.ErrInvalidQuantity)
	}

	t.nextID++
	lot := &model.AssetLot{
		ID:         t.nextID,
		AssetType:  assetType,
		Asset:      asset,
		Quantity:   quantity,
		Remaining:  quantity,
		AcquiredAt: date,
		UnitCost:   unitPrice,
		Fees:       fees,
	}

	key := assetKey(assetType, asset)
	queue := append(t.lots[key], lot)
	if n := len(queue); n > 1 && queue[n-2].AcquiredAt.After(date) {
		sortLotsByDate(queue)
	}
	t.lots[key] = queue

	slog.Debug("tracked purchase",
		"asset", asset,
		"quantity", quantity,
		"unit_price", unitPrice,
		"date", date.Format("2006-01-02"))

	return lot, nil
}

// TrackSale matches a sale against the asset's lots FIFO and returns the
// resulting CGT event. The availability check runs before any lot is
// touched: an oversell fails with ErrInsufficientLots and leaves every lot
// unmodified. Discount eligibility is evaluated per matched lot-portion,
// so one sale can be partially discount-eligible.
func (t *Tracker) TrackSale(assetType, asset string, quantity float64, date time.Time, unitPrice, fees float64) (*model.CGTEvent, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: sale quantity %.4f", common.ErrInvalidQuantity, quantity)
	}
	if unitPrice < 0 || fees < 0 {
		return nil, fmt.Errorf("%w: negative price or fees", common.ErrInvalidQuantity)
	}

	queue := t.lots[assetKey(assetType, asset)]

	var available float64
	for _, lot := range queue {
		available += lot.Remaining
	}
	if available < quantity {
		return nil, fmt.Errorf("%w: selling %.4f of %s but only %.4f held",
			common.ErrInsufficientLots, quantity, asset, available)
	}

	proceeds := quantity*unitPrice - fees

	event := model.CGTEvent{
		SaleDate:  date,
		AssetType: assetType,
		Asset:     asset,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Fees:      fees,
		Proceeds:  proceeds,
	}

	remaining := quantity
	for _, lot := range queue {
		if remaining <= 0 {
			break
		}
		if lot.Remaining <= 0 {
			continue
		}

		take := lot.Remaining
		if take > remaining {
			take = remaining
		}

		// Cost base: units at lot price plus the proportional share of the
		// lot's acquisition fees.
		costBase := take*lot.UnitCost + lot.Fees*(take/lot.Quantity)
		// Sale-side fees are apportioned across parcels by quantity.
		parcelProceeds := take*unitPrice - fees*(take/quantity)

		holdingDays := int(date.Sub(lot.AcquiredAt).Hours() / 24)
		parcel := model.CGTParcel{
			LotID:            lot.ID,
			AcquiredAt:       lot.AcquiredAt,
			Quantity:         take,
			CostBase:         costBase,
			Gain:             parcelProceeds - costBase,
			HoldingDays:      holdingDays,
			DiscountEligible: holdingDays > discountHoldingDays,
		}
		event.Parcels = append(event.Parcels, parcel)
		event.CostBase += costBase

		lot.Remaining -= take
		if lot.Remaining == 0 {
			lot.Exhausted = true
		}
		remaining -= take
	}

	event.Gain = event.Proceeds - event.CostBase
	t.events = append(t.events, event)

	slog.Info("tracked sale",
		"asset", asset,
		"quantity", quantity,
		"gain", event.Gain,
		"parcels", len(event.Parcels))

	return &event, nil
}

// Lots returns the current lots for an asset in FIFO order, exhausted lots
// included for audit.
func (t *Tracker) Lots(assetType, asset string) []model.AssetLot {
	queue := t.lots[assetKey(assetType, asset)]
	out := make([]model.AssetLot, len(queue))
	for i, lot := range queue {
		out[i] = *lot
	}
	return out
}

// AllLots returns every tracked lot across assets.
func (t *Tracker) AllLots() []model.AssetLot {
	var out []model.AssetLot
	for _, queue := range t.lots {
		for _, lot := range queue {
			out = append(out, *lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Events returns the CGT events recorded so far, in sale order.
func (t *Tracker) Events() []model.CGTEvent {
	out := make([]model.CGTEvent, len(t.events))
	copy(out, t.events)
	return out
}
