package event

import (
	"sort"
)

// Set is the working collection of records, keyed by Record.ID.
type Set map[string]*Record

// NewSet creates an empty set
func NewSet() Set {
	return make(Set)
}

// IDs returns the record identities in ascending order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sorted returns the records ordered by identity.
func (s Set) Sorted() []*Record {
	out := make([]*Record, 0, len(s))
	for _, id := range s.IDs() {
		out = append(out, s[id])
	}
	return out
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for id, rec := range s {
		c[id] = rec.Clone()
	}
	return c
}

// Field names reported in FieldChange.Field.
const (
	FieldCity      = "city"
	FieldSourceURL = "url"
	FieldDate      = "date"
	FieldTime      = "time"
	FieldVenue     = "venue"
	FieldAddress   = "address"
)

// FieldChange describes one content field that differs between two records.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// DetectChanges compares the content fields of two records and returns the
// differences. ID and LastUpdated are never compared.
func DetectChanges(previous, current *Record) []FieldChange {
	var changes []FieldChange

	add := func(field, oldValue, newValue string) {
		if oldValue != newValue {
			changes = append(changes, FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
		}
	}

	add(FieldCity, previous.City, current.City)
	add(FieldSourceURL, previous.SourceURL, current.SourceURL)
	add(FieldDate, previous.Date, current.Date)
	add(FieldTime, previous.Time, current.Time)
	add(FieldVenue, previous.Venue, current.Venue)
	add(FieldAddress, previous.Address, current.Address)

	return changes
}

// ContentEqual reports whether two records carry the same content.
func ContentEqual(a, b *Record) bool {
	return len(DetectChanges(a, b)) == 0
}
