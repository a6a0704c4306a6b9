/*
daycount.go - Day-count conventions and rate factors

A rate factor is the multiplier derived from the annual nominal rate and a
day-count convention, applied to an outstanding balance to yield the
interest of a date range:

    rateFactor(from, to) = annualRate * days(from, to) / daysInYear

The convention decides both the day count and the year denominator.
*/
package progressive

import (
	"github.com/shopspring/decimal"
	"github.com/warp/loan-engine/dates"
)

type DayCountConvention string

const (
	Actual365 DayCountConvention = "actual/365"
	Actual360 DayCountConvention = "actual/360"
	Thirty360 DayCountConvention = "30/360"
)

// Days returns the day count from 'from' to 'to' under the convention.
func (c DayCountConvention) Days(from, to dates.Date) int {
	if c != Thirty360 {
		return dates.DaysBetween(from, to)
	}

	// 30/360 US: months count 30 days.
	d1, d2 := from.Day(), to.Day()
	if d1 > 30 {
		d1 = 30
	}
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}
	years := to.Year() - from.Year()
	months := int(to.Month()) - int(from.Month())
	return years*360 + months*30 + (d2 - d1)
}

// DaysInYear returns the year denominator for the convention.
func (c DayCountConvention) DaysInYear() int {
	switch c {
	case Actual360, Thirty360:
		return 360
	default:
		return 365
	}
}

// RateFactor scales an annual rate (a fraction, e.g. 0.095 for 9.5%) to
// the given date range.
func (c DayCountConvention) RateFactor(annualRate decimal.Decimal, from, to dates.Date) decimal.Decimal {
	days := c.Days(from, to)
	if days <= 0 {
		return decimal.Zero
	}
	return annualRate.
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(int64(c.DaysInYear())))
}
