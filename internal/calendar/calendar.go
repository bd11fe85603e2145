// internal/calendar/calendar.go
package calendar

import "time"

// julianGregorianOffset returns the number of days to add to a Julian calendar
// date to obtain the Gregorian date, indexed by century.
func julianGregorianOffset(year int) int {
	switch {
	case year < 1582:
		return 0
	case year < 1700:
		return 10
	case year < 1800:
		return 11
	case year < 1900:
		return 12
	case year < 2100:
		return 13
	default:
		return 14
	}
}

// OrthodoxEaster returns the Gregorian date of Orthodox Easter for the given
// year. The feast is computed on the Julian calendar (Meeus' Julian algorithm)
// and shifted to the Gregorian calendar by the century offset.
func OrthodoxEaster(year int) time.Time {
	a := year % 4
	b := year % 7
	c := year % 19
	d := (19*c + 15) % 30
	e := (2*a + 4*b - d + 34) % 7
	month := (d + e + 114) / 31
	day := (d+e+114)%31 + 1

	julian := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return julian.AddDate(0, 0, julianGregorianOffset(year))
}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// MatchesMonthDay reports whether the (month, day) event falls on the target
// date. When the target is Feb 28 of a non-leap year, Feb 29 events match as
// well, so leap-day birthdays are not skipped three years out of four. The
// fallback is deliberately Feb 28, never Mar 1.
func MatchesMonthDay(target time.Time, month time.Month, day int) bool {
	if target.Month() == month && target.Day() == day {
		return true
	}
	if target.Month() == time.February && target.Day() == 28 &&
		!IsLeapYear(target.Year()) && month == time.February && day == 29 {
		return true
	}
	return false
}

// TargetDate shifts now forward by daysBefore and truncates to midnight UTC.
// Matching always compares this shifted date; "days until the event" is never
// computed as a separate quantity.
func TargetDate(now time.Time, daysBefore int) time.Time {
	shifted := now.AddDate(0, 0, daysBefore)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
}
