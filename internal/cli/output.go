package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ChangedEvent is one record inserted or updated by a sync.
type ChangedEvent struct {
	ID     string   `json:"id"`
	City   string   `json:"city"`
	Date   string   `json:"date"`
	Action string   `json:"action"`
	Fields []string `json:"fields,omitempty"`
}

// SyncSummary is the report printed after a sync.
type SyncSummary struct {
	CheckedAt  time.Time       `json:"checked_at"`
	RunID      string          `json:"run_id"`
	DryRun     bool            `json:"dry_run,omitempty"`
	Inserted   int             `json:"inserted"`
	Updated    int             `json:"updated"`
	Unchanged  int             `json:"unchanged"`
	Rejected   int             `json:"rejected"`
	FeedErrors int             `json:"feed_errors"`
	Changed    []ChangedEvent  `json:"changed"`
	Total      int             `json:"total_events"`
	Upcoming   int             `json:"upcoming_events"`
	Calendar   CalendarResult `json:"calendar"`
}

// RenderResult is the report printed after render.
type RenderResult struct {
	RunID    string          `json:"run_id"`
	Total    int             `json:"total_events"`
	Calendar CalendarResult `json:"calendar"`
}

// ListResult contains the records printed by list.
type ListResult struct {
	CheckedAt  time.Time       `json:"checked_at"`
	Events     []*event.Record `json:"events"`
	EventCount int             `json:"event_count"`
	Upcoming   bool            `json:"upcoming_only,omitempty"`
}

// WriteSyncSummary writes the sync report in the specified format
func WriteSyncSummary(w io.Writer, s *SyncSummary, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, s)
	case FormatText:
		return writeSyncText(w, s)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteRenderResult writes the render report in the specified format
func WriteRenderResult(w io.Writer, r *RenderResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatText:
		fmt.Fprintf(w, "Wrote %d of %d events to %s\n", r.Calendar.Events, r.Total, r.Calendar.Path)
		if r.Calendar.Skipped > 0 {
			fmt.Fprintf(w, "Skipped %d events that could not be serialized\n", r.Calendar.Skipped)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteListResult writes the stored records in the specified format
func WriteListResult(w io.Writer, r *ListResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatText:
		return writeListText(w, r, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeSyncText(w io.Writer, s *SyncSummary) error {
	if s.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was written.")
	}

	if len(s.Changed) == 0 {
		fmt.Fprintln(w, "No new or updated events.")
	}
	for _, c := range s.Changed {
		label := "NEW"
		if c.Action != "inserted" {
			label = "UPDATED"
		}
		fmt.Fprintf(w, "%s: %s (%s) %s", label, c.City, c.Date, c.ID)
		if len(c.Fields) > 0 {
			fmt.Fprintf(w, " [%s]", strings.Join(c.Fields, ", "))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\nInserted: %d, updated: %d, unchanged: %d, rejected: %d, feed errors: %d\n",
		s.Inserted, s.Updated, s.Unchanged, s.Rejected, s.FeedErrors)
	fmt.Fprintf(w, "Total: %d events (%d upcoming)\n", s.Total, s.Upcoming)
	if s.Calendar.Path != "" {
		fmt.Fprintf(w, "Calendar: %d events written to %s\n", s.Calendar.Events, s.Calendar.Path)
	}
	return nil
}

// writeListText outputs records as human-readable text
func writeListText(w io.Writer, r *ListResult, verbose bool) error {
	if r.EventCount == 0 {
		if r.Upcoming {
			fmt.Fprintln(w, "No upcoming events found.")
		} else {
			fmt.Fprintln(w, "No events found.")
		}
		return nil
	}

	for _, rec := range r.Events {
		start := rec.Time
		if start == "" {
			start = "all day"
		}
		fmt.Fprintf(w, "%s %-7s %s (%s)\n", rec.Date, start, rec.City, rec.ID)
		if verbose {
			if rec.Venue != "" {
				fmt.Fprintf(w, "     Venue: %s\n", rec.Venue)
			}
			if rec.Address != "" {
				fmt.Fprintf(w, "     Address: %s\n", rec.Address)
			}
			if rec.SourceURL != "" {
				fmt.Fprintf(w, "     URL: %s\n", rec.SourceURL)
			}
			fmt.Fprintf(w, "     Updated: %s\n", rec.LastUpdated.UTC().Format(time.RFC3339))
		}
	}

	label := "events"
	if r.Upcoming {
		label = "upcoming events"
	}
	fmt.Fprintf(w, "\nTotal: %d %s\n", r.EventCount, label)
	return nil
}
