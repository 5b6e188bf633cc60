package model

import "time"

// AssetLot is a discrete parcel of an asset acquired at one time and price.
// Each purchase creates its own lot; lots are never merged, so the audit
// trail maps every sold unit back to a specific acquisition. A lot whose
// remaining quantity reaches zero is retained and marked exhausted.
type AssetLot struct {
	AcquiredAt time.Time
	AssetType  string // e.g. "shares", "crypto"
	Asset      string // e.g. "BHP", "BTC"
	ID         int64
	Quantity   float64 // Original purchase quantity
	Remaining  float64 // Unsold quantity
	UnitCost   float64
	Fees       float64 // Acquisition-side fees (brokerage)
	Exhausted  bool
}

// CGTParcel records the portion of a sale matched against one lot. Discount
// eligibility is evaluated per parcel, so a sale spanning lots with
// different acquisition dates can be partially discount-eligible.
type CGTParcel struct {
	AcquiredAt       time.Time
	LotID            int64
	Quantity         float64
	CostBase         float64 // Lot cost + proportional acquisition fees
	Gain             float64
	HoldingDays      int
	DiscountEligible bool // Strictly more than 365 days held
}

// CGTEvent is the immutable record of one sale matched FIFO against one or
// more lots. Event-level totals aggregate the parcels; the per-parcel
// discount flags are the authoritative eligibility record and are never
// blended.
type CGTEvent struct {
	SaleDate  time.Time
	AssetType string
	Asset     string
	Parcels   []CGTParcel
	Quantity  float64
	UnitPrice float64
	Fees      float64 // Sale-side fees
	Proceeds  float64 // Quantity*UnitPrice - sale fees
	CostBase  float64
	Gain      float64
}

// DiscountEligibleGain returns the portion of the event's gain arising from
// parcels held longer than 12 months. Losses are excluded; the CGT discount
// applies to gains only.
func (e CGTEvent) DiscountEligibleGain() float64 {
	var total float64
	for _, p := range e.Parcels {
		if p.DiscountEligible && p.Gain > 0 {
			total += p.Gain
		}
	}
	return total
}
