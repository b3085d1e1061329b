// Package finance holds the pure money math of the engine: day-count
// conventions, schedule generation and settlement accrual. No I/O, no state.
package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/models"
)

var (
	d360        = decimal.NewFromInt(360)
	d365        = decimal.NewFromInt(365)
	twelve      = decimal.NewFromInt(12)
	avgMonthAct = d365.Div(twelve) // average actual days per monthly period
	thirtyDays  = decimal.NewFromInt(30)
)

// YearFraction converts a date range into a fraction of a year under the
// given day-count convention.
func YearFraction(dc models.DayCount, start, end time.Time) decimal.Decimal {
	if !end.After(start) {
		return decimal.Zero
	}
	switch dc {
	case models.DayCountThirty360:
		return decimal.NewFromInt(int64(days360(start, end))).Div(d360)
	case models.DayCountAct360:
		return decimal.NewFromInt(int64(actualDays(start, end))).Div(d360)
	default: // ACT_365
		return decimal.NewFromInt(int64(actualDays(start, end))).Div(d365)
	}
}

// PeriodicRate is the constant per-month rate implied by the annual rate under
// the convention: 30/360 and ACT/365 both reduce to rate/12, ACT/360 scales
// the average month length against a 360-day denominator.
func PeriodicRate(dc models.DayCount, annualRate decimal.Decimal) decimal.Decimal {
	switch dc {
	case models.DayCountThirty360:
		return annualRate.Mul(thirtyDays).Div(d360)
	case models.DayCountAct360:
		return annualRate.Mul(avgMonthAct).Div(d360)
	default: // ACT_365
		return annualRate.Div(twelve)
	}
}

// DueDate returns the due date of the period-th installment (1-based),
// one calendar month per period from the start date.
func DueDate(start time.Time, period int) time.Time {
	return start.AddDate(0, period, 0)
}

// actualDays counts whole calendar days between two dates.
func actualDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// days360 applies the US 30/360 rule: day-of-month components are clamped to
// 30, the end day only when the start day is 30 or 31.
func days360(start, end time.Time) int {
	y1, m1, d1 := start.Date()
	y2, m2, d2 := end.Date()
	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}
	return (y2-y1)*360 + (int(m2)-int(m1))*30 + (d2 - d1)
}
