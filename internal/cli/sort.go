package cli

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate    SortOrder = "date"
	SortByCity    SortOrder = "city"
	SortByUpdated SortOrder = "updated"
)

func (o SortOrder) valid() bool {
	switch o {
	case SortByDate, SortByCity, SortByUpdated:
		return true
	}
	return false
}

// sortRecords sorts a slice of records based on the specified sort order
func sortRecords(records []*event.Record, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		event.SortByDate(records)
	case SortByCity:
		sort.SliceStable(records, func(i, j int) bool {
			ci, cj := strings.ToLower(records[i].City), strings.ToLower(records[j].City)
			if ci != cj {
				return ci < cj
			}
			// If cities are equal, sort by date
			return records[i].Date < records[j].Date
		})
	case SortByUpdated:
		// most recently changed first
		sort.SliceStable(records, func(i, j int) bool {
			if !records[i].LastUpdated.Equal(records[j].LastUpdated) {
				return records[i].LastUpdated.After(records[j].LastUpdated)
			}
			return records[i].ID < records[j].ID
		})
	}
}
