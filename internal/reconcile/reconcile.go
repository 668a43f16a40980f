package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
	"github.com/pfrederiksen/measurecamp-ics/internal/logger"
)

// Clock supplies the timestamp written to Record.LastUpdated.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f
func (f ClockFunc) Now() time.Time { return f() }

// Action is the decision taken for one raw field-set.
type Action int

const (
	Unchanged Action = iota
	Inserted
	Updated
	Rejected
)

func (a Action) String() string {
	switch a {
	case Unchanged:
		return "unchanged"
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ErrRejectedInput matches every *RejectedInputError.
var ErrRejectedInput = errors.New("rejected input")

// ErrNilSet is returned when the working set is nil; use event.NewSet.
var ErrNilSet = errors.New("nil record set")

// RejectedInputError reports a raw field-set that cannot become a record.
type RejectedInputError struct {
	Reason string
	Fields event.RawFields
}

func (e *RejectedInputError) Error() string {
	return fmt.Sprintf("rejected input: %s", e.Reason)
}

// Is makes errors.Is(err, ErrRejectedInput) work
func (e *RejectedInputError) Is(target error) bool {
	return target == ErrRejectedInput
}

// Outcome describes what Reconcile did with one raw field-set.
type Outcome struct {
	Action   Action              `json:"action"`
	ID       string              `json:"id,omitempty"`
	Changes  []event.FieldChange `json:"changes,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Err      error               `json:"-"`
}

// Manager applies reconciliation decisions against a record set. It is not
// safe for concurrent use on the same set.
type Manager struct {
	clock Clock
	log   *logger.Logger
}

// NewManager creates a Manager. A nil clock uses the system clock and a nil
// log uses the package default logger.
func NewManager(clock Clock, log *logger.Logger) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Manager{clock: clock, log: log}
}

// Reconcile validates raw and merges it into set, which is modified in place
// and must not be nil. On rejection set is left untouched.
func (m *Manager) Reconcile(raw event.RawFields, set event.Set) Outcome {
	if set == nil {
		return Outcome{Action: Rejected, Err: ErrNilSet}
	}

	incoming, warnings, err := buildRecord(raw)
	if err != nil {
		return Outcome{Action: Rejected, Err: err}
	}

	now := m.now()

	stored, exists := set[incoming.ID]
	if !exists {
		incoming.LastUpdated = now
		set[incoming.ID] = incoming
		return Outcome{Action: Inserted, ID: incoming.ID, Warnings: warnings}
	}

	changes := event.DetectChanges(stored, incoming)
	if len(changes) == 0 {
		return Outcome{Action: Unchanged, ID: stored.ID, Warnings: warnings}
	}

	stored.City = incoming.City
	stored.SourceURL = incoming.SourceURL
	stored.Date = incoming.Date
	stored.Time = incoming.Time
	stored.Venue = incoming.Venue
	stored.Address = incoming.Address
	// LastUpdated never moves backwards, even if the clock does.
	if now.After(stored.LastUpdated) {
		stored.LastUpdated = now
	}

	return Outcome{Action: Updated, ID: stored.ID, Changes: changes, Warnings: warnings}
}

func (m *Manager) now() time.Time {
	return m.clock.Now().UTC().Truncate(time.Second)
}

// buildRecord normalizes a raw field-set into a record without LastUpdated.
func buildRecord(raw event.RawFields) (*event.Record, []string, error) {
	city := strings.TrimSpace(event.NormalizeNewlines(raw.City))
	if city == "" {
		return nil, nil, &RejectedInputError{Reason: "missing city", Fields: raw}
	}

	dateText := strings.TrimSpace(raw.Date)
	if dateText == "" {
		return nil, nil, &RejectedInputError{Reason: "missing date", Fields: raw}
	}
	date, err := event.ParseDate(dateText)
	if err != nil {
		return nil, nil, &RejectedInputError{Reason: fmt.Sprintf("unparsable date %q", dateText), Fields: raw}
	}

	id := event.GenerateID(city, date.Year())
	if id == "" {
		return nil, nil, &RejectedInputError{Reason: fmt.Sprintf("city %q has no ASCII identity", city), Fields: raw}
	}

	var warnings []string
	clock := ""
	if t := strings.TrimSpace(raw.Time); t != "" {
		clock, err = event.NormalizeTime(t)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("unparsable time %q, treating as all-day", t))
			clock = ""
		}
	}

	return &event.Record{
		ID:        id,
		City:      city,
		SourceURL: strings.TrimSpace(raw.SourceURL),
		Date:      date.Format(event.DateLayout),
		Time:      clock,
		Venue:     strings.TrimSpace(event.NormalizeNewlines(raw.Venue)),
		Address:   strings.TrimSpace(event.NormalizeNewlines(raw.Address)),
	}, warnings, nil
}
