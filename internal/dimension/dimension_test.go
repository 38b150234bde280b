package dimension

import (
	"testing"
	"time"

	"marketdw/internal/model"
)

func TestQuarterBoundaries(t *testing.T) {
	cases := []struct {
		month   int
		quarter int
	}{
		{1, 1}, {2, 1}, {3, 1},
		{4, 2}, {6, 2},
		{7, 3}, {9, 3},
		{10, 4}, {11, 4}, {12, 4},
	}
	for _, tc := range cases {
		if got := Quarter(tc.month); got != tc.quarter {
			t.Fatalf("月份 %d 应属于季度 %d, 实际 %d", tc.month, tc.quarter, got)
		}
	}
}

func TestDatePartsExplicitTimestamp(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	d := New(loc)

	ts := time.Date(2024, time.December, 31, 13, 45, 7, 0, time.UTC)
	parts := d.DateParts(ts)

	want := model.DateParts{
		Date:    time.Date(2024, time.December, 31, 0, 0, 0, 0, loc),
		Day:     31,
		Week:    1, // 2024-12-31 belongs to ISO week 1 of 2025
		Month:   12,
		Quarter: 4,
		Year:    2024,
	}
	if !parts.Date.Equal(want.Date) || parts.Day != want.Day || parts.Week != want.Week ||
		parts.Month != want.Month || parts.Quarter != want.Quarter || parts.Year != want.Year {
		t.Fatalf("日期维度不正确: %+v", parts)
	}
}

func TestZeroTimestampUsesConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	fixed := time.Date(2025, time.March, 1, 23, 30, 0, 0, time.UTC)
	d := NewWithClock(loc, func() time.Time { return fixed })

	parts := d.DateParts(time.Time{})
	// 23:30 UTC is already March 2nd at UTC+3.
	if parts.Day != 2 || parts.Month != 3 || parts.Year != 2025 {
		t.Fatalf("零时间戳应取配置时区的当前日期, 实际 %+v", parts)
	}

	tp := d.TimeParts(time.Time{})
	if tp.Hour != 2 || tp.Minute != 30 || tp.Second != 0 {
		t.Fatalf("零时间戳应取配置时区的当前时刻, 实际 %+v", tp)
	}
}

func TestTimePartsRanges(t *testing.T) {
	d := New(time.UTC)
	ts := time.Date(2025, time.June, 15, 23, 59, 59, 0, time.UTC)
	tp := d.TimeParts(ts)
	if tp.Hour != 23 || tp.Minute != 59 || tp.Second != 59 {
		t.Fatalf("时间维度不正确: %+v", tp)
	}
}
