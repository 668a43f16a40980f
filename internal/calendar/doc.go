// Package calendar renders the record set as an RFC 5545 iCalendar document.
//
// Every record becomes one VEVENT whose UID is derived from the record
// identity, so subscribed calendar clients update events in place instead of
// duplicating them. Output depends only on the record set and the Options:
// DTSTAMP and LAST-MODIFIED come from Record.LastUpdated, never the wall clock,
// and events are emitted in identity order.
//
// Property escaping and 75-octet line folding are handled by golang-ical.
package calendar
