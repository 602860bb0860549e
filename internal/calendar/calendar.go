// Package calendar derives date-dimension attributes from calendar dates.
//
// Date keys are integers in YYYYMMDD form: natural, stable and sortable.
package calendar

import (
	"fmt"
	"time"
)

// DateRow is one fully-derived date-dimension row.
type DateRow struct {
	Key        int
	Date       time.Time
	DayOfWeek  int // Monday=0 .. Sunday=6
	DayName    string
	DayOfMonth int
	DayOfYear  int
	WeekOfYear int // ISO week number
	Month      int
	MonthName  string
	Quarter    int
	Year       int
	IsWeekend  bool
	IsHoliday  bool // always false; no holiday calendar is defined
}

// Key encodes a date as its YYYYMMDD integer key.
func Key(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// ParseKey decodes a YYYYMMDD key back to a UTC midnight date.
//
// The round-trip is verified: keys like 20230230 that normalize to a
// different date are rejected.
func ParseKey(key int) (time.Time, error) {
	if key < 10000101 || key > 99991231 {
		return time.Time{}, fmt.Errorf("calendar: date key %d out of range", key)
	}
	year := key / 10000
	month := key / 100 % 100
	day := key % 100

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if Key(d) != key {
		return time.Time{}, fmt.Errorf("calendar: invalid date key %d", key)
	}
	return d, nil
}

// Day derives every date-dimension attribute for one calendar date.
func Day(t time.Time) DateRow {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	// time.Weekday counts from Sunday; the dimension counts from Monday.
	dow := (int(d.Weekday()) + 6) % 7
	_, isoWeek := d.ISOWeek()

	return DateRow{
		Key:        Key(d),
		Date:       d,
		DayOfWeek:  dow,
		DayName:    d.Weekday().String(),
		DayOfMonth: d.Day(),
		DayOfYear:  d.YearDay(),
		WeekOfYear: isoWeek,
		Month:      int(d.Month()),
		MonthName:  d.Month().String(),
		Quarter:    (int(d.Month())-1)/3 + 1,
		Year:       d.Year(),
		IsWeekend:  dow == 5 || dow == 6,
		IsHoliday:  false,
	}
}

// Range returns one DateRow per calendar day in [start, end] inclusive.
func Range(start, end time.Time) []DateRow {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if e.Before(s) {
		return nil
	}

	out := make([]DateRow, 0, int(e.Sub(s).Hours()/24)+1)
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, Day(d))
	}
	return out
}
