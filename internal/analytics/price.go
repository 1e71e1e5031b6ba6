// Package analytics computes the price intelligence attached to result
// groups: spread statistics, per-offer positioning and the shopper-facing
// savings insight.
package analytics

import (
	"fmt"
	"math"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

// Annotate fills PriceStats, per-product analysis and the group insight in
// place. Products are expected sorted by price; the function does not
// reorder them.
func Annotate(g *types.ResultGroup) {
	if g == nil || len(g.Products) == 0 {
		return
	}

	prices := make([]float64, len(g.Products))
	for i, p := range g.Products {
		prices[i] = p.Price
	}
	stats := Stats(prices)
	g.PriceStats = stats

	below, above := 0, 0
	for i := range g.Products {
		p := &g.Products[i]
		p.Analysis = types.PriceAnalysis{
			DiffFromAvg: round2(p.Price - stats.Avg),
			Percentile:  percentile(p.Price, stats),
			IsBestDeal:  p.Price == stats.Min,
			IsWorstDeal: p.Price == stats.Max,
		}
		switch {
		case p.Price < stats.Avg:
			below++
		case p.Price > stats.Avg:
			above++
		}
	}

	variation := 0.0
	if stats.Avg > 0 {
		variation = round2(stats.StdDev / stats.Avg * 100)
	}
	g.Insight = types.PriceInsight{
		SavingsPotential:   round2(stats.Max - stats.Min),
		PriceVariation:     variation,
		BelowAvgCount:      below,
		AboveAvgCount:      above,
		HasMultipleVendors: g.VendorCount > 1,
	}
}

// Stats computes min/max/avg/stddev over a non-empty price list.
func Stats(prices []float64) types.PriceStats {
	if len(prices) == 0 {
		return types.PriceStats{}
	}
	min, max, sum := prices[0], prices[0], 0.0
	for _, p := range prices {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
		sum += p
	}
	avg := sum / float64(len(prices))

	var sq float64
	for _, p := range prices {
		d := p - avg
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(prices)))

	return types.PriceStats{
		Min:    min,
		Max:    max,
		Avg:    round2(avg),
		StdDev: round2(std),
		Range:  round2(max - min),
	}
}

// Deal is a cheaper offer for the same grouped product.
type Deal struct {
	Product        types.GroupProduct `json:"product"`
	Savings        float64            `json:"savings"`
	SavingsPercent float64            `json:"savingsPercent"`
	Reason         string             `json:"reason"`
}

// BetterDeals returns the offers in the group strictly cheaper than the
// given product, cheapest first. An unknown product id yields nil.
func BetterDeals(g types.ResultGroup, productID string) []Deal {
	var own *types.GroupProduct
	for i := range g.Products {
		if g.Products[i].ID == productID {
			own = &g.Products[i]
			break
		}
	}
	if own == nil {
		return nil
	}
	var deals []Deal
	for _, p := range g.Products {
		if p.ID == productID || p.Price >= own.Price {
			continue
		}
		savings := own.Price - p.Price
		pct := round2(savings / own.Price * 100)
		reason := fmt.Sprintf("same product %.2f cheaper at %s", savings, p.VendorName)
		if p.Analysis.IsBestDeal {
			reason = fmt.Sprintf("best price for this product, %.2f cheaper at %s", savings, p.VendorName)
		}
		deals = append(deals, Deal{
			Product:        p,
			Savings:        round2(savings),
			SavingsPercent: pct,
			Reason:         reason,
		})
	}
	return deals
}

// percentile places a price on the group's [min, max] span as 0-100. A
// group with a single price point sits at 0.
func percentile(price float64, stats types.PriceStats) float64 {
	if stats.Max == stats.Min {
		return 0
	}
	return round2((price - stats.Min) / (stats.Max - stats.Min) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
