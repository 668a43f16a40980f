package calendar

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	ics "github.com/arran4/golang-ical"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

// floatingLayout is a DATE-TIME without zone designator (RFC 5545 §3.3.5 form #1).
const floatingLayout = "20060102T150405"

// ErrSerialization matches every *SerializationError.
var ErrSerialization = errors.New("serialization failed")

// SerializationError reports a record that could not be rendered as a VEVENT.
type SerializationError struct {
	ID     string
	Field  string
	Reason string
}

func (e *SerializationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("serializing %s: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("serializing %s: field %s: %s", e.ID, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrSerialization) work
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

// Serializer converts record sets into iCalendar documents.
type Serializer struct {
	opts Options
}

// NewSerializer creates a Serializer. A zero Duration, UIDDomain or ProductID
// falls back to the package default.
func NewSerializer(opts Options) *Serializer {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.UIDDomain == "" {
		opts.UIDDomain = DefaultUIDDomain
	}
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	return &Serializer{opts: opts}
}

// Serialize renders set as a complete VCALENDAR document with CRLF line
// endings. Records that cannot be rendered are left out and reported as
// *SerializationError values; the rest of the document is still produced.
func (s *Serializer) Serialize(set event.Set) (string, []error) {
	cal, errs := s.Build(set)
	return cal.Serialize(ics.WithNewLineWindows), errs
}

// Build assembles the calendar without serializing it.
func (s *Serializer) Build(set event.Set) (*ics.Calendar, []error) {
	cal := ics.NewCalendar()
	cal.SetProductId(s.opts.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	if s.opts.Name != "" {
		cal.SetXWRCalName(s.opts.Name)
	}
	if s.opts.Description != "" {
		cal.SetXWRCalDesc(s.opts.Description)
	}
	if s.opts.RefreshInterval != "" {
		cal.SetRefreshInterval(s.opts.RefreshInterval)
	}
	if s.opts.PublishedTTL != "" {
		cal.SetXPublishedTTL(s.opts.PublishedTTL)
	}
	if s.opts.Color != "" {
		cal.SetColor(s.opts.Color)
	}

	perCity := make(map[string]int)
	for _, rec := range set {
		perCity[cityKey(rec.City)]++
	}

	var errs []error
	for _, rec := range set.Sorted() {
		rec = unixBreaks(rec)
		summary := strings.TrimSpace(s.opts.SummaryPrefix + " " + rec.City)
		if perCity[cityKey(rec.City)] > 1 {
			if year := rec.Year(); year > 0 {
				summary = fmt.Sprintf("%s %d", summary, year)
			}
		}

		vevent, err := s.buildEvent(rec, summary)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cal.AddVEvent(vevent)
	}
	return cal, errs
}

func (s *Serializer) buildEvent(rec *event.Record, summary string) (*ics.VEvent, error) {
	for _, f := range []struct{ name, value string }{
		{event.FieldCity, rec.City},
		{event.FieldSourceURL, rec.SourceURL},
		{event.FieldVenue, rec.Venue},
		{event.FieldAddress, rec.Address},
	} {
		if reason := checkText(f.value); reason != "" {
			return nil, &SerializationError{ID: rec.ID, Field: f.name, Reason: reason}
		}
	}
	for _, c := range s.opts.Categories {
		if reason := checkText(c); reason != "" {
			return nil, &SerializationError{ID: rec.ID, Field: "category", Reason: reason}
		}
	}

	start, allDay, err := rec.Start()
	if err != nil {
		return nil, &SerializationError{ID: rec.ID, Reason: err.Error()}
	}

	vevent := ics.NewEvent(rec.ID + "@" + s.opts.UIDDomain)
	vevent.SetDtStampTime(rec.LastUpdated)

	if allDay {
		vevent.SetAllDayStartAt(start)
		vevent.SetAllDayEndAt(start.AddDate(0, 0, 1))
	} else {
		vevent.SetProperty(ics.ComponentPropertyDtStart, start.Format(floatingLayout))
		vevent.SetProperty(ics.ComponentPropertyDtEnd, start.Add(s.opts.Duration).Format(floatingLayout))
	}

	vevent.SetSummary(summary)
	if loc := location(rec); loc != "" {
		vevent.SetLocation(loc)
	}
	if rec.SourceURL != "" {
		vevent.SetDescription(rec.SourceURL)
		vevent.SetURL(rec.SourceURL)
	}
	for _, c := range s.opts.Categories {
		vevent.AddCategory(c)
	}
	vevent.SetTimeTransparency(ics.TransparencyOpaque)
	vevent.SetModifiedAt(rec.LastUpdated)

	return vevent, nil
}

// unixBreaks returns rec with CRLF and CR line breaks turned into LF so the
// encoder can escape them.
func unixBreaks(rec *event.Record) *event.Record {
	c := rec.Clone()
	c.City = event.NormalizeNewlines(c.City)
	c.SourceURL = event.NormalizeNewlines(c.SourceURL)
	c.Venue = event.NormalizeNewlines(c.Venue)
	c.Address = event.NormalizeNewlines(c.Address)
	return c
}

// location joins venue and address, dropping whichever is empty.
func location(rec *event.Record) string {
	switch {
	case rec.Venue != "" && rec.Address != "":
		return rec.Venue + ", " + rec.Address
	case rec.Venue != "":
		return rec.Venue
	default:
		return rec.Address
	}
}

func cityKey(city string) string {
	if slug := event.Slug(city); slug != "" {
		return slug
	}
	return strings.ToLower(strings.TrimSpace(city))
}

// checkText reports why s cannot be carried in a TEXT value. Line breaks are
// escaped by the encoder and tabs are legal; other control characters are not.
func checkText(s string) string {
	if !utf8.ValidString(s) {
		return "invalid UTF-8"
	}
	for _, r := range s {
		if r == '\n' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return fmt.Sprintf("control character %U", r)
		}
	}
	return ""
}
