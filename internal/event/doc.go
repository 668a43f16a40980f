// Package event provides the record types shared by the reconciler, the record
// stores and the calendar serializer.
//
// Each record is keyed by a deterministic identity built from an ASCII-folded
// slug of the city name and the year of the event date (for example
// "amsterdam-2026"), enabling reliable tracking of the same occurrence across
// scrape runs.
package event
