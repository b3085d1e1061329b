package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/models"
)

// AccruedInterest computes simple interest on the remaining principal for the
// partial period between `from` and `to` under the contract's day count.
func AccruedInterest(dc models.DayCount, principalRemaining, annualRate decimal.Decimal, from, to time.Time) decimal.Decimal {
	if !to.After(from) || principalRemaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return principalRemaining.Mul(annualRate).Mul(YearFraction(dc, from, to)).Round(minorUnits)
}

// PayoffAmount combines the settlement components, floored at the currency's
// minor-unit precision.
func PayoffAmount(principalRemaining, interestAccrued, rebate decimal.Decimal) decimal.Decimal {
	payoff := principalRemaining.Add(interestAccrued).Sub(rebate)
	if payoff.IsNegative() {
		return decimal.Zero
	}
	return payoff.RoundFloor(minorUnits)
}
