// Package schedule computes the due dates of recurring definitions.
// Everything here is pure: results depend only on the arguments.
package schedule

import (
	"iter"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/ledger"
)

// DefaultHorizonMonths bounds open-ended definitions projected without a range end.
const DefaultHorizonMonths = 12

// Calculator computes occurrences. The zero value uses DefaultHorizonMonths.
type Calculator struct {
	HorizonMonths int
}

// NewCalculator returns a Calculator with the given horizon; non-positive values use the default.
func NewCalculator(horizonMonths int) Calculator {
	return Calculator{HorizonMonths: horizonMonths}
}

func (c Calculator) horizon() int {
	if c.HorizonMonths <= 0 {
		return DefaultHorizonMonths
	}
	return c.HorizonMonths
}

// EffectiveEnd returns the last day occurrences may fall on for def when
// projected up to rangeEnd (zero rangeEnd = unbounded).
func (c Calculator) EffectiveEnd(def ledger.RecurringDefinition, rangeEnd date.Date) date.Date {
	if !def.OpenEnded && !def.EndDate.IsZero() {
		return def.EndDate
	}
	if !rangeEnd.IsZero() {
		return rangeEnd
	}
	return def.StartDate.AddMonthsClamped(c.horizon())
}

// DueDates yields the due dates of def within [rangeStart, rangeEnd] in
// ascending order. A zero bound leaves that side open (the end then falls
// back to the definition end or the horizon). The sequence is finite and
// can be ranged over any number of times.
func (c Calculator) DueDates(def ledger.RecurringDefinition, rangeStart, rangeEnd date.Date) iter.Seq[date.Date] {
	return func(yield func(date.Date) bool) {
		if def.StartDate.IsZero() || !def.Frequency.Valid() {
			return
		}
		lo := def.StartDate
		if !rangeStart.IsZero() {
			lo = date.Max(lo, rangeStart)
		}
		hi := c.EffectiveEnd(def, rangeEnd)
		if !rangeEnd.IsZero() {
			hi = date.Min(hi, rangeEnd)
		}
		if hi.Before(lo) {
			return
		}
		switch def.Frequency {
		case ledger.FrequencyDaily:
			for d := lo; !d.After(hi); d = d.AddDays(1) {
				if !yield(d) {
					return
				}
			}
		case ledger.FrequencyWeekly:
			d := lo
			if off := lo.DaysSince(def.StartDate) % 7; off != 0 {
				d = lo.AddDays(7 - off)
			}
			for ; !d.After(hi); d = d.AddDays(7) {
				if !yield(d) {
					return
				}
			}
		case ledger.FrequencyMonthly:
			months := (lo.Year()-def.StartDate.Year())*12 + int(lo.Month()-def.StartDate.Month())
			for ; ; months++ {
				d := def.StartDate.AddMonthsClamped(months)
				if d.After(hi) {
					return
				}
				if d.Before(lo) {
					continue
				}
				if !yield(d) {
					return
				}
			}
		}
	}
}

// IsDueToday reports whether def has an occurrence on today. It agrees with
// DueDates(def, today, today) being non-empty.
func (c Calculator) IsDueToday(def ledger.RecurringDefinition, today date.Date) bool {
	if def.StartDate.IsZero() || today.Before(def.StartDate) {
		return false
	}
	if today.After(c.EffectiveEnd(def, today)) {
		return false
	}
	switch def.Frequency {
	case ledger.FrequencyDaily:
		return true
	case ledger.FrequencyWeekly:
		return today.DaysSince(def.StartDate)%7 == 0
	case ledger.FrequencyMonthly:
		months := (today.Year()-def.StartDate.Year())*12 + int(today.Month()-def.StartDate.Month())
		return def.StartDate.AddMonthsClamped(months) == today
	}
	return false
}

// Collect drains a sequence into a slice.
func Collect(seq iter.Seq[date.Date]) []date.Date {
	out := make([]date.Date, 0)
	for d := range seq {
		out = append(out, d)
	}
	return out
}
