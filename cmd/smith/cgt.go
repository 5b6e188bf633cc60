package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ozbooks/agent-smith/internal/cgt"
	"github.com/ozbooks/agent-smith/internal/cli"
	"github.com/ozbooks/agent-smith/internal/model"
	"github.com/ozbooks/agent-smith/internal/storage"
)

func cgtCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cgt",
		Short: "Track asset lots and capital gains (Australian CGT, FIFO)",
	}

	cmd.AddCommand(cgtBuyCmd())
	cmd.AddCommand(cgtSellCmd())
	cmd.AddCommand(cgtHoldingsCmd())
	cmd.AddCommand(cgtEventsCmd())

	return cmd
}

func cgtBuyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy <asset> <quantity> <unit-price>",
		Short: "Record an asset purchase as a new FIFO lot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, unitPrice, err := parseQuantityPrice(args[1], args[2])
			if err != nil {
				return err
			}
			assetType, _ := cmd.Flags().GetString("type")
			fees, _ := cmd.Flags().GetFloat64("fees")
			date, err := parseDateFlag(cmd)
			if err != nil {
				return err
			}

			tracker, db, err := loadTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStorage(db)

			lot, err := tracker.TrackPurchase(assetType, args[0], quantity, date, unitPrice, fees)
			if err != nil {
				return err
			}
			if err := db.SaveLot(cmd.Context(), lot); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("lot %d: %.4f %s @ %.4f (fees %.2f) acquired %s",
				lot.ID, lot.Quantity, lot.Asset, lot.UnitCost, lot.Fees,
				lot.AcquiredAt.Format("2006-01-02"))))
			return nil
		},
	}

	addTradeFlags(cmd)
	return cmd
}

func cgtSellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sell <asset> <quantity> <unit-price>",
		Short: "Record a disposal and compute the capital gain",
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, unitPrice, err := parseQuantityPrice(args[1], args[2])
			if err != nil {
				return err
			}
			assetType, _ := cmd.Flags().GetString("type")
			fees, _ := cmd.Flags().GetFloat64("fees")
			date, err := parseDateFlag(cmd)
			if err != nil {
				return err
			}

			tracker, db, err := loadTracker(cmd)
			if err != nil {
				return err
			}
			defer closeStorage(db)

			event, err := tracker.TrackSale(assetType, args[0], quantity, date, unitPrice, fees)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			for _, lot := range tracker.Lots(assetType, args[0]) {
				if err := db.SaveLot(ctx, &lot); err != nil {
					return err
				}
			}
			if err := db.SaveCGTEvent(ctx, event); err != nil {
				return err
			}

			printEvent(event)
			return nil
		},
		Args: cobra.ExactArgs(3),
	}

	addTradeFlags(cmd)
	return cmd
}

func cgtHoldingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Show remaining lots per asset in FIFO order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(db)

			lots, err := db.GetAllLots(ctx)
			if err != nil {
				return err
			}

			held := map[string][]model.AssetLot{}
			var order []string
			for _, lot := range lots {
				if lot.Exhausted {
					continue
				}
				key := lot.AssetType + " " + lot.Asset
				if _, seen := held[key]; !seen {
					order = append(order, key)
				}
				held[key] = append(held[key], lot)
			}
			if len(held) == 0 {
				fmt.Println(cli.SubtleStyle.Render("no holdings recorded"))
				return nil
			}

			fmt.Println(cli.TitleStyle.Render("Holdings"))
			now := time.Now()
			for _, key := range order {
				var total float64
				for _, lot := range held[key] {
					total += lot.Remaining
				}
				fmt.Printf("\n  %s  (%.4f units)\n", key, total)
				for _, lot := range held[key] {
					days := int(now.Sub(lot.AcquiredAt).Hours() / 24)
					fmt.Printf("    lot %-4d %10.4f @ %-10.4f acquired %s  held %dd\n",
						lot.ID, lot.Remaining, lot.UnitCost,
						lot.AcquiredAt.Format("2006-01-02"), days)
				}
			}
			return nil
		},
	}
}

func cgtEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List disposal events with per-parcel gain breakdowns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fy, _ := cmd.Flags().GetInt("fy")
			start, end := eventRange(fy)

			ctx := cmd.Context()
			db, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(db)

			events, err := db.GetCGTEvents(ctx, start, end)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println(cli.SubtleStyle.Render("no disposal events recorded"))
				return nil
			}

			var totalGain, totalEligible float64
			for i := range events {
				printEvent(&events[i])
				totalGain += events[i].Gain
				totalEligible += events[i].DiscountEligibleGain()
			}

			fmt.Println(cli.RenderBox("Totals", fmt.Sprintf(
				"net gain %.2f\ndiscount-eligible gain %.2f", totalGain, totalEligible)))
			return nil
		},
	}

	cmd.Flags().Int("fy", 0, "Restrict to an Australian financial year, by ending year (e.g. 2026 = 1 Jul 2025 – 30 Jun 2026)")
	return cmd
}

// eventRange maps a financial-year ending year to its 1 July – 30 June
// span; fy 0 means all history.
func eventRange(fy int) (time.Time, time.Time) {
	if fy == 0 {
		return time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	start := time.Date(fy-1, time.July, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(fy, time.June, 30, 23, 59, 59, 0, time.UTC)
	return start, end
}

func printEvent(event *model.CGTEvent) {
	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("%s  sold %.4f %s",
		event.SaleDate.Format("2006-01-02"), event.Quantity, event.Asset)))
	fmt.Printf("  proceeds %.2f  cost base %.2f  gain %.2f  discount-eligible %.2f\n",
		event.Proceeds, event.CostBase, event.Gain, event.DiscountEligibleGain())
	for _, parcel := range event.Parcels {
		marker := " "
		if parcel.DiscountEligible {
			marker = "*"
		}
		fmt.Printf("  %s lot %-4d %.4f units  held %dd  gain %.2f\n",
			marker, parcel.LotID, parcel.Quantity, parcel.HoldingDays, parcel.Gain)
	}
}

func addTradeFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "shares", "Asset type (shares, crypto, ...)")
	cmd.Flags().Float64("fees", 0, "Brokerage or transaction fees")
	cmd.Flags().String("date", "", "Trade date as YYYY-MM-DD (default today)")
}

func parseQuantityPrice(quantityArg, priceArg string) (float64, float64, error) {
	quantity, err := strconv.ParseFloat(quantityArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid quantity %q: %w", quantityArg, err)
	}
	price, err := strconv.ParseFloat(priceArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid unit price %q: %w", priceArg, err)
	}
	return quantity, price, nil
}

func parseDateFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("date")
	if raw == "" {
		return time.Now(), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return date, nil
}

// loadTracker rebuilds the FIFO tracker from every persisted lot. Loading
// the full ledger keeps new lot ids unique across assets; a single-asset
// rebuild would restart the id sequence and collide with other holdings.
func loadTracker(cmd *cobra.Command) (*cgt.Tracker, *storage.SQLiteStorage, error) {
	ctx := cmd.Context()
	db, err := openStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	lots, err := db.GetAllLots(ctx)
	if err != nil {
		closeStorage(db)
		return nil, nil, err
	}

	return cgt.NewTrackerFromLots(lots), db, nil
}
