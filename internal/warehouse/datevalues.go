package warehouse

import "ecomdw/internal/calendar"

// DateValues flattens a DateRow into insert values aligned with DateColumns.
// Backends that cannot bind time.Time directly convert the second value.
func DateValues(r calendar.DateRow) []any {
	return []any{
		r.Key, r.Date, r.DayOfWeek, r.DayName, r.DayOfMonth,
		r.DayOfYear, r.WeekOfYear, r.Month, r.MonthName, r.Quarter,
		r.Year, r.IsWeekend, r.IsHoliday,
	}
}
