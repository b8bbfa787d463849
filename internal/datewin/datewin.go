// Package datewin parses the date shapes the upstream sheets emit and
// classifies instants into today / this month / other relative to an
// explicit reference instant.
package datewin

import (
	"strings"
	"time"

	"github.com/AngelCh415/nbd-kiosk/internal/models"
)

type Class int

const (
	Other Class = iota
	ThisMonth
	Today
)

func (c Class) String() string {
	switch c {
	case Today:
		return "today"
	case ThisMonth:
		return "month"
	default:
		return "other"
	}
}

const DMY = "02/01/2006"

// instantes con zona explícita
var zoned = []string{time.RFC3339Nano, time.RFC3339}

// sin zona: se interpretan en loc
var local = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2/1/2006",
}

// ParseFlexibleDate accepts ISO-8601 with a time component, YYYY-MM-DD and
// DD/MM/YYYY. The boolean is false for anything else; callers drop the
// record instead of guessing.
func ParseFlexibleDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, l := range zoned {
		if t, err := time.Parse(l, raw); err == nil {
			return t.In(loc), true
		}
	}
	for _, l := range local {
		if t, err := time.ParseInLocation(l, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func FormatDMY(t time.Time) string { return t.Format(DMY) }

// IsCurrentMonth compares calendar month and year in now's location.
func IsCurrentMonth(t, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	y1, m1, _ := t.In(now.Location()).Date()
	y2, m2, _ := now.Date()
	return y1 == y2 && m1 == m2
}

func IsSameDay(t, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func Classify(t, now time.Time) Class {
	switch {
	case IsSameDay(t, now):
		return Today
	case IsCurrentMonth(t, now):
		return ThisMonth
	}
	return Other
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func DayWindow(now time.Time) models.Window {
	s := day(now)
	return models.Window{Name: "today", Start: s, End: s.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}

// WeekWindow runs Monday through Sunday inclusive.
func WeekWindow(now time.Time) models.Window {
	s := day(now)
	back := (int(s.Weekday()) + 6) % 7 // lunes = 0
	s = s.AddDate(0, 0, -back)
	return models.Window{Name: "week", Start: s, End: s.AddDate(0, 0, 7).Add(-time.Nanosecond)}
}

func MonthWindow(now time.Time) models.Window {
	y, m, _ := now.Date()
	s := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return models.Window{Name: "month", Start: s, End: s.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}
