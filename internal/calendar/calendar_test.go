package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestKeyRoundTrip(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Time{
		date(2022, time.January, 1),
		date(2024, time.February, 29), // leap day
		date(2025, time.December, 31),
	} {
		key := Key(d)
		back, err := ParseKey(key)
		if err != nil {
			t.Fatalf("ParseKey(%d): %v", key, err)
		}
		if !back.Equal(d) {
			t.Fatalf("round trip %s -> %d -> %s", d, key, back)
		}
	}
}

func TestParseKey_RejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, key := range []int{0, 20230230, 20231301, 20230100, 123} {
		if _, err := ParseKey(key); err == nil {
			t.Fatalf("ParseKey(%d): expected error", key)
		}
	}
}

func TestDay_DerivedFields(t *testing.T) {
	t.Parallel()

	// 2024-01-08 is a Monday in ISO week 2.
	row := Day(date(2024, time.January, 8))

	if row.Key != 20240108 {
		t.Fatalf("Key = %d", row.Key)
	}
	if row.DayOfWeek != 0 || row.DayName != "Monday" {
		t.Fatalf("DayOfWeek = %d DayName = %q", row.DayOfWeek, row.DayName)
	}
	if row.WeekOfYear != 2 {
		t.Fatalf("WeekOfYear = %d, want 2", row.WeekOfYear)
	}
	if row.Month != 1 || row.MonthName != "January" || row.Quarter != 1 || row.Year != 2024 {
		t.Fatalf("month fields = %d %q q%d %d", row.Month, row.MonthName, row.Quarter, row.Year)
	}
	if row.DayOfMonth != 8 || row.DayOfYear != 8 {
		t.Fatalf("day fields = %d %d", row.DayOfMonth, row.DayOfYear)
	}
	if row.IsWeekend {
		t.Fatal("Monday must not be a weekend")
	}
	if row.IsHoliday {
		t.Fatal("IsHoliday must always be false")
	}
}

func TestDay_WeekendFlag(t *testing.T) {
	t.Parallel()

	sat := Day(date(2024, time.June, 1))
	sun := Day(date(2024, time.June, 2))
	mon := Day(date(2024, time.June, 3))

	if sat.DayOfWeek != 5 || !sat.IsWeekend {
		t.Fatalf("saturday: dow=%d weekend=%v", sat.DayOfWeek, sat.IsWeekend)
	}
	if sun.DayOfWeek != 6 || !sun.IsWeekend {
		t.Fatalf("sunday: dow=%d weekend=%v", sun.DayOfWeek, sun.IsWeekend)
	}
	if mon.IsWeekend {
		t.Fatal("monday flagged as weekend")
	}
}

func TestDay_Quarters(t *testing.T) {
	t.Parallel()

	for m, want := range map[time.Month]int{
		time.January: 1, time.March: 1,
		time.April: 2, time.June: 2,
		time.July: 3, time.September: 3,
		time.October: 4, time.December: 4,
	} {
		if got := Day(date(2023, m, 15)).Quarter; got != want {
			t.Fatalf("quarter(%s) = %d, want %d", m, got, want)
		}
	}
}

func TestRange_InclusiveBounds(t *testing.T) {
	t.Parallel()

	rows := Range(date(2024, time.February, 27), date(2024, time.March, 2))
	if len(rows) != 5 {
		t.Fatalf("len = %d, want 5 (leap february)", len(rows))
	}
	if rows[0].Key != 20240227 || rows[len(rows)-1].Key != 20240302 {
		t.Fatalf("bounds = %d..%d", rows[0].Key, rows[len(rows)-1].Key)
	}
	if rows[2].Key != 20240229 {
		t.Fatalf("missing leap day, got %d", rows[2].Key)
	}
}

func TestRange_EmptyWhenInverted(t *testing.T) {
	t.Parallel()

	if rows := Range(date(2024, time.March, 2), date(2024, time.March, 1)); rows != nil {
		t.Fatalf("expected nil, got %d rows", len(rows))
	}
}

func TestRange_FullYearCount(t *testing.T) {
	t.Parallel()

	if n := len(Range(date(2024, time.January, 1), date(2024, time.December, 31))); n != 366 {
		t.Fatalf("2024 has %d rows, want 366", n)
	}
	if n := len(Range(date(2023, time.January, 1), date(2023, time.December, 31))); n != 365 {
		t.Fatalf("2023 has %d rows, want 365", n)
	}
}
