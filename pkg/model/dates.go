package model

import (
	"fmt"
	"time"

	// Schedules carry IANA zone names; embed the database so lookups do not
	// depend on the host image.
	_ "time/tzdata"
)

// DateLayout is the calendar date format used by mappings and payloads
const DateLayout = "2006-01-02"

// ParseTimeOfDay parses an "HH:MM" wall-clock time
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// LoadLocation resolves an IANA timezone name. An empty name means UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// LocalDate returns the calendar date of instant in tz
func LocalDate(instant time.Time, tz string) (string, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(DateLayout), nil
}

// AddDays shifts a calendar date by n days
func AddDays(date string, n int) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d.AddDate(0, 0, n).Format(DateLayout), nil
}

// TriggerInstant combines a calendar date with an "HH:MM" time in tz.
// Wall-clock times that fall into a daylight-saving gap are moved forward
// by the size of the gap (02:30 on a spring-forward night becomes 03:30).
func TriggerInstant(date, timeOfDay, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	t := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
	if t.Hour() != hour || t.Minute() != minute {
		// time.Date resolved the gap backwards into the pre-transition
		// offset; reinterpret the wall clock with that offset instead.
		_, offset := t.Zone()
		wall := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
		t = wall.Add(-time.Duration(offset) * time.Second).In(loc)
	}
	return t, nil
}

// DayBounds returns the half-open interval [start, end) of the calendar
// day containing instant in tz. Days are not assumed to be 24h long.
func DayBounds(instant time.Time, tz string) (start, end time.Time, err error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	local := instant.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end = time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, end, nil
}

// DateBounds returns the half-open interval of a calendar date in tz
func DateBounds(date, tz string) (start, end time.Time, err error) {
	start, err = TriggerInstant(date, "00:00", tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	loc, _ := LoadLocation(tz)
	end = time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
	return start, end, nil
}
