package event

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// DateLayout is the normalized storage format for Record.Date.
	DateLayout = "2006-01-02"
	// ClockLayout is the normalized storage format for Record.Time.
	ClockLayout = "15:04"
)

var (
	ErrEmptyDate = errors.New("empty date")
	ErrEmptyTime = errors.New("empty time")
)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"02.01.2006",
	"Monday 2 Jan 2006",
	"Monday 2 January 2006",
	"Monday, 2 January 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
}

var clockLayouts = []string{
	ClockLayout,
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	extraSpace    = regexp.MustCompile(`\s+`)
	// 8h30, 8.30, 08h00
	clockAlt = regexp.MustCompile(`^(\d{1,2})[h.](\d{2})$`)
)

// ParseDate parses a calendar date in any supported layout and returns it at
// midnight UTC. Supports formats: "2026-04-18", "2026/04/18", "18.04.2026",
// "Saturday 18 Apr 2026", "18th April 2026", "Apr 18 2026", "April 18, 2026".
func ParseDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, ErrEmptyDate
	}
	text = ordinalSuffix.ReplaceAllString(text, "$1")
	text = extraSpace.ReplaceAllString(text, " ")

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", text)
}

// NormalizeDate parses text and returns it in DateLayout.
func NormalizeDate(text string) (string, error) {
	t, err := ParseDate(text)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// NormalizeTime parses a local start time and returns it in ClockLayout.
// Supports "09:00", "9:00", "09:00:00", "9:00 AM", "9AM", "8h30" and "8.30".
func NormalizeTime(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTime
	}
	upper := strings.ToUpper(text)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	if m := clockAlt.FindStringSubmatch(strings.ToLower(text)); m != nil {
		if t, err := time.Parse(ClockLayout, m[1]+":"+m[2]); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized time %q", text)
}

// SortByDate sorts records chronologically (date, then start time, then ID).
// Records with unparseable dates are placed at the end.
func SortByDate(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		di, erri := time.Parse(DateLayout, records[i].Date)
		dj, errj := time.Parse(DateLayout, records[j].Date)

		if erri == nil && errj == nil && !di.Equal(dj) {
			return di.Before(dj)
		}
		if erri != nil || errj != nil {
			if erri == nil {
				return true
			}
			if errj == nil {
				return false
			}
		}
		if records[i].Time != records[j].Time {
			return records[i].Time < records[j].Time
		}
		return records[i].ID < records[j].ID
	})
}
