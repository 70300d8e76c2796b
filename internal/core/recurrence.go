package core

import "time"

// NextOccurrence computes the next occurrence date strictly after from for
// the given frequency and anchor day. It is pure and never fails; callers
// validate frequency at the boundary via ParseFrequency.
//
// Rules per frequency:
//   - daily/weekly/biweekly: from plus 1, 7 or 14 days.
//   - monthly: the following calendar month, on min(anchorDay, length of
//     that month). Anchor 31 in April lands on the 30th.
//   - quarterly: the monthly step first, then two more calendar months,
//     clamping the day again at that second step. Starting from Jan 31 with
//     anchor 31 this yields Feb 29 -> Apr 29, where a single "+3 months
//     with one final clamp" would yield Apr 30. The two-step form is the
//     documented behavior; tests pin it down.
//   - yearly: same month and day next year; Feb 29 clamps to Feb 28 when
//     the target year is not a leap year.
//
// Unknown frequencies fall back to the monthly rule, matching the behavior
// this engine replaces; they cannot occur for definitions that passed
// Validate.
func NextOccurrence(from Date, freq Frequency, anchorDay int) Date {
	switch freq {
	case Daily:
		return addDays(from, 1)
	case Weekly:
		return addDays(from, 7)
	case Biweekly:
		return addDays(from, 14)
	case Monthly:
		return nextMonthlyDate(from, anchorDay)
	case Quarterly:
		next := nextMonthlyDate(from, anchorDay)
		return addMonthsClamped(next, 2)
	case Yearly:
		return nextYearlyDate(from)
	default:
		return nextMonthlyDate(from, anchorDay)
	}
}

func addDays(d Date, n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// nextMonthlyDate advances to the following calendar month and clamps the
// anchor day to that month's length.
func nextMonthlyDate(from Date, anchorDay int) Date {
	year, month := from.Year(), from.Month()+1
	if month > 12 {
		month = 1
		year++
	}
	day := anchorDay
	if max := daysInMonth(year, month); day > max {
		day = max
	}
	if day < 1 {
		day = 1
	}
	return NewDate(year, month, day)
}

// addMonthsClamped shifts the date by n months keeping the day, clamped to
// the target month's length. time.AddDate is avoided because it rolls
// overflowing days into the next month (Jan 31 + 1 month -> Mar 2/3).
func addMonthsClamped(d Date, n int) Date {
	year, month := d.Year(), d.Month()+n
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	day := d.Day()
	if max := daysInMonth(year, month); day > max {
		day = max
	}
	return NewDate(year, month, day)
}

// nextYearlyDate returns the same month and day one year later. A Feb 29
// start clamps to Feb 28 in non-leap target years rather than rolling over
// to Mar 1.
func nextYearlyDate(from Date) Date {
	year := from.Year() + 1
	month, day := from.Month(), from.Day()
	if max := daysInMonth(year, month); day > max {
		day = max
	}
	return NewDate(year, month, day)
}

func daysInMonth(year, month int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Occurrence is one materialized cycle of a recurring definition, produced
// by Advance. The driver turns it into a Transaction dated at Date.
type Occurrence struct {
	Definition RecurringDefinition
	Date       Date
}

// IsDue reports whether the definition should materialize a cycle on the
// given day: it must be active, have a pending NextDue on or before today,
// and today must not be past the inclusive EndDate.
func (rd RecurringDefinition) IsDue(today Date) bool {
	if !rd.Active || rd.NextDue.IsZero() {
		return false
	}
	if rd.NextDue.After(today.Time) {
		return false
	}
	if !rd.EndDate.IsZero() && rd.EndDate.Before(today.Time) {
		return false
	}
	return true
}

// Advance is the schedule state transition: given today, it returns the
// definition with its pointers moved forward one cycle plus the occurrence
// to materialize, or the definition unchanged and nil when nothing is due.
//
// The schedule advances exactly one cycle per call even when several cycles
// have been missed; a backlog drains one occurrence per processing run.
// Re-applying Advance with an unchanged definition and the same today is
// deterministic, which is what makes interrupted runs safe to repeat.
func Advance(rd RecurringDefinition, today Date) (RecurringDefinition, *Occurrence) {
	if !rd.IsDue(today) {
		return rd, nil
	}
	occ := &Occurrence{Definition: rd, Date: rd.NextDue}
	rd.LastExecution = rd.NextDue
	rd.NextDue = NextOccurrence(rd.LastExecution, rd.Frequency, rd.AnchorDay)
	return rd, occ
}
