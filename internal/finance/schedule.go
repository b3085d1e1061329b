package finance

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/models"
)

const minorUnits = 2

// ValidateTerms checks the ranges the schedule builder accepts.
func ValidateTerms(terms models.ContractTerms) error {
	if terms.Principal.LessThanOrEqual(decimal.Zero) {
		return apperrors.Validation("InvalidTerms", "principal must be greater than zero")
	}
	if terms.TermMonths < 1 {
		return apperrors.Validation("InvalidTerms", "term must be at least one period")
	}
	if terms.AnnualRate.IsNegative() {
		return apperrors.Validation("InvalidTerms", "rate must not be negative")
	}
	switch terms.InterestType {
	case models.InterestTypeFlat, models.InterestTypeDeclining:
	default:
		return apperrors.Validation("InvalidTerms", fmt.Sprintf("unknown interest type %q", terms.InterestType))
	}
	switch terms.DayCount {
	case models.DayCountAct360, models.DayCountAct365, models.DayCountThirty360:
	default:
		return apperrors.Validation("InvalidTerms", fmt.Sprintf("unknown day count %q", terms.DayCount))
	}
	return nil
}

// GenerateSchedule produces the installment schedule for the given terms.
// The final installment absorbs all rounding so principal portions sum to the
// original principal exactly, and interest totals are reproducible per
// day-count convention.
func GenerateSchedule(terms models.ContractTerms) ([]models.Installment, error) {
	if err := ValidateTerms(terms); err != nil {
		return nil, err
	}
	if terms.InterestType == models.InterestTypeFlat {
		return flatSchedule(terms), nil
	}
	return decliningSchedule(terms), nil
}

// flatSchedule splits principal evenly and charges the same interest on the
// original principal every period: principal * rate * term_fraction / term.
func flatSchedule(terms models.ContractTerms) []models.Installment {
	n := terms.TermMonths
	termFraction := YearFraction(terms.DayCount, terms.StartDate, DueDate(terms.StartDate, n))
	totalInterest := terms.Principal.Mul(terms.AnnualRate).Mul(termFraction).Round(minorUnits)
	totalPrincipal := terms.Principal

	perInterest := totalInterest.Div(decimal.NewFromInt(int64(n))).Round(minorUnits)
	perPrincipal := totalPrincipal.Div(decimal.NewFromInt(int64(n))).Round(minorUnits)

	schedule := make([]models.Installment, 0, n)
	for period := 1; period <= n; period++ {
		principal, interest := perPrincipal, perInterest
		if period == n {
			// Absorb rounding drift in the last installment.
			principal = totalPrincipal.Sub(perPrincipal.Mul(decimal.NewFromInt(int64(n - 1))))
			interest = totalInterest.Sub(perInterest.Mul(decimal.NewFromInt(int64(n - 1))))
		}
		schedule = append(schedule, newInstallment(period, terms, principal, interest))
	}
	return schedule
}

// decliningSchedule is the classic annuity amortization: a level payment is
// solved from the periodic rate, each period's interest accrues on the
// remaining principal, and the final installment clears the exact remainder.
func decliningSchedule(terms models.ContractTerms) []models.Installment {
	n := terms.TermMonths
	rate := PeriodicRate(terms.DayCount, terms.AnnualRate)

	var payment decimal.Decimal
	if rate.IsZero() {
		payment = terms.Principal.Div(decimal.NewFromInt(int64(n))).Round(minorUnits)
	} else {
		// A = P * r * (1+r)^n / ((1+r)^n - 1); the power is computed in
		// float64, monetary arithmetic stays decimal.
		r := rate.InexactFloat64()
		factor := math.Pow(1+r, float64(n))
		payment = decimal.NewFromFloat(terms.Principal.InexactFloat64() * r * factor / (factor - 1)).Round(minorUnits)
	}

	schedule := make([]models.Installment, 0, n)
	remaining := terms.Principal
	for period := 1; period <= n; period++ {
		interest := remaining.Mul(rate).Round(minorUnits)
		principal := payment.Sub(interest)
		if period == n || principal.GreaterThan(remaining) {
			principal = remaining
		}
		remaining = remaining.Sub(principal)
		schedule = append(schedule, newInstallment(period, terms, principal, interest))
	}
	return schedule
}

func newInstallment(period int, terms models.ContractTerms, principal, interest decimal.Decimal) models.Installment {
	return models.Installment{
		SeqNo:         period,
		DueDate:       DueDate(terms.StartDate, period),
		PrincipalDue:  principal,
		InterestDue:   interest,
		FeeDue:        decimal.Zero,
		PrincipalPaid: decimal.Zero,
		InterestPaid:  decimal.Zero,
		FeePaid:       decimal.Zero,
		Status:        models.InstallmentStatusPending,
	}
}
