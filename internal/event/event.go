package event

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Record is the persisted form of a single event occurrence.
type Record struct {
	ID          string    `json:"id"`
	City        string    `json:"city"`
	SourceURL   string    `json:"url,omitempty"`
	Date        string    `json:"date"`           // YYYY-MM-DD
	Time        string    `json:"time,omitempty"` // HH:MM local start, empty for all-day
	Venue       string    `json:"venue,omitempty"`
	Address     string    `json:"address,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// RawFields is one unvalidated item produced by a source feed.
type RawFields struct {
	City      string `json:"city"`
	SourceURL string `json:"url,omitempty"`
	Date      string `json:"date"`
	Time      string `json:"time,omitempty"`
	Venue     string `json:"venue,omitempty"`
	Address   string `json:"address,omitempty"`
}

// letters that NFKD does not decompose into an ASCII base
var foldSpecial = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "ł", "l", "đ", "d", "þ", "th", "ı", "i",
)

// Slug lowercases and ASCII-folds a city name into a URL-safe token.
// Apostrophes are dropped and every other run of non-alphanumerics becomes a
// single dash, so "Malmö" becomes "malmo" and "Val d'Isère" becomes "val-disere".
func Slug(city string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, strings.ToLower(city))
	if err != nil {
		folded = strings.ToLower(city)
	}
	folded = foldSpecial.Replace(folded)

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		switch {
		case r == '\'' || r == '’' || r == '`':
			continue
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

// GenerateID builds the record identity "{city-slug}-{year}".
// It returns an empty string when the city has no ASCII representation.
func GenerateID(city string, year int) string {
	slug := Slug(city)
	if slug == "" {
		return ""
	}
	return fmt.Sprintf("%s-%04d", slug, year)
}

// Year returns the year component of the record date, or 0 if the date is invalid.
func (r *Record) Year() int {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return 0
	}
	return d.Year()
}

// Start returns the nominal start of the event as a floating local time
// (expressed in UTC) and whether the event is all-day.
func (r *Record) Start() (time.Time, bool, error) {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing date %q: %w", r.Date, err)
	}
	if r.Time == "" {
		return d, true, nil
	}
	c, err := time.Parse(ClockLayout, r.Time)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing time %q: %w", r.Time, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, time.UTC), false, nil
}

// IsPast reports whether the event day is entirely before now's calendar day.
// Returns false if the date cannot be parsed.
func (r *Record) IsPast(now time.Time) bool {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d.Before(today)
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines turns CRLF and lone CR line breaks into LF.
func NormalizeNewlines(s string) string {
	return lineBreaks.Replace(s)
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
