package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"ticketing/internal/domain/events"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Policy controls how simultaneously eligible rules compose. With
// ComposeSurcharge enabled (the default) the best discount and one surcharge
// multiply; disabled, an eligible discount suppresses the surcharge.
type Policy struct {
	ComposeSurcharge bool
}

func DefaultPolicy() Policy {
	return Policy{ComposeSurcharge: true}
}

// CurrentPrice derives the price of a ticket type at a given instant. It is a
// pure function of its inputs: no I/O, no clock reads. The result is never
// persisted; callers stamp it onto a ticket at the moment of reservation.
//
// Of all eligible discount rules (EarlyBird, LastMinute) only the one yielding
// the lowest price applies. Of all eligible DemandBased rules only the largest
// surcharge applies. The final price is
//
//	base × (1 − discount/100) × (1 + surcharge/100)
//
// rounded to cents and never negative.
func (p Policy) CurrentPrice(tt events.TicketType, eventStart time.Time, rules []Rule, now time.Time) decimal.Decimal {
	var bestDiscount, bestSurcharge decimal.Decimal

	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		switch k := rule.Kind.(type) {
		case EarlyBird:
			if !now.Before(k.StartDate) && !now.After(k.EndDate) && k.DiscountPercent.GreaterThan(bestDiscount) {
				bestDiscount = k.DiscountPercent
			}
		case LastMinute:
			windowStart := eventStart.AddDate(0, 0, -k.DaysBeforeEvent)
			if !now.Before(windowStart) && k.DiscountPercent.GreaterThan(bestDiscount) {
				bestDiscount = k.DiscountPercent
			}
		case DemandBased:
			if demandEligible(tt, k) && k.IncreasePercent.GreaterThan(bestSurcharge) {
				bestSurcharge = k.IncreasePercent
			}
		}
	}

	price := tt.BasePrice
	if bestDiscount.IsPositive() {
		price = price.Mul(one.Sub(bestDiscount.Div(hundred)))
	}
	if bestSurcharge.IsPositive() && (p.ComposeSurcharge || !bestDiscount.IsPositive()) {
		price = price.Mul(one.Add(bestSurcharge.Div(hundred)))
	}

	price = price.Round(2)
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

func demandEligible(tt events.TicketType, k DemandBased) bool {
	if tt.Quantity <= 0 {
		return false
	}
	soldPercent := decimal.NewFromInt(int64(tt.Sold)).
		Div(decimal.NewFromInt(int64(tt.Quantity))).
		Mul(hundred)
	return soldPercent.GreaterThanOrEqual(k.ThresholdPercent)
}
