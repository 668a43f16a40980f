package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

// DefaultPath is the store file used when none is configured.
const DefaultPath = "events.json"

// FileStore persists the record set as a JSON document.
type FileStore struct {
	path string
}

// document is the on-disk layout. Map keys are written in sorted order.
type document struct {
	Events map[string]*event.Record `json:"events"`
}

// NewFileStore creates a FileStore for path, expanding a leading ~/.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultPath
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: expanded}, nil
}

// Path returns the file backing the store
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the store file. A missing file yields an empty set; any content
// that does not decode into a valid set yields a *CorruptStoreError.
func (s *FileStore) Load(_ context.Context) (event.Set, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return event.NewSet(), nil
		}
		return nil, fmt.Errorf("reading record store: %w", err)
	}
	return decodeDocument(s.path, data)
}

// Save writes set atomically.
func (s *FileStore) Save(_ context.Context, set event.Set) error {
	data, err := encodeDocument(set)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing record store: %w", err)
	}
	return nil
}

func encodeDocument(set event.Set) ([]byte, error) {
	doc := document{Events: make(map[string]*event.Record, len(set))}
	for id, rec := range set {
		doc.Events[id] = rec
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding record store: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeDocument(source string, data []byte) (event.Set, error) {
	corrupt := func(reason string, err error) error {
		return &CorruptStoreError{Source: source, Reason: reason, Err: err}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, corrupt("empty file", nil)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, corrupt("invalid JSON", err)
	}
	raw, ok := top["events"]
	if !ok {
		return nil, corrupt(`missing "events"`, nil)
	}

	switch trimmed := bytes.TrimSpace(raw); {
	case bytes.Equal(trimmed, []byte("null")):
		return event.NewSet(), nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		return decodeLegacy(source, trimmed)
	case len(trimmed) > 0 && trimmed[0] == '{':
		return decodeKeyed(source, trimmed)
	default:
		return nil, corrupt(`"events" is neither an object nor a list`, nil)
	}
}

// decodeKeyed reads the {"id": record} form, rejecting duplicate keys that a
// plain map decode would silently collapse.
func decodeKeyed(source string, raw []byte) (event.Set, error) {
	corrupt := func(reason string, err error) error {
		return &CorruptStoreError{Source: source, Reason: reason, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, corrupt("invalid JSON", err)
	}

	set := event.NewSet()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, corrupt("invalid JSON", err)
		}
		key, _ := tok.(string)

		var rec *event.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, corrupt(fmt.Sprintf("invalid record %q", key), err)
		}
		if reason := validateRecord(rec); reason != "" {
			return nil, corrupt(reason, nil)
		}
		if rec.ID != key {
			return nil, corrupt(fmt.Sprintf("key %q does not match record id %q", key, rec.ID), nil)
		}
		if _, dup := set[key]; dup {
			return nil, corrupt(fmt.Sprintf("duplicate id %q", key), nil)
		}
		set[key] = rec
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, corrupt("invalid JSON", err)
	}
	return set, nil
}

// decodeLegacy reads the list form. Identities are re-derived from city and
// date year; when two entries collapse onto one identity the most recently
// updated one is kept.
func decodeLegacy(source string, raw []byte) (event.Set, error) {
	var records []*event.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &CorruptStoreError{Source: source, Reason: "invalid legacy record list", Err: err}
	}

	set := event.NewSet()
	for i, rec := range records {
		if rec == nil {
			return nil, &CorruptStoreError{Source: source, Reason: fmt.Sprintf("null record at index %d", i)}
		}
		if rec.City != "" && rec.Date != "" {
			if date, err := event.ParseDate(rec.Date); err == nil {
				rec.Date = date.Format(event.DateLayout)
				if id := event.GenerateID(rec.City, date.Year()); id != "" {
					rec.ID = id
				}
			}
		}
		if reason := validateRecord(rec); reason != "" {
			return nil, &CorruptStoreError{Source: source, Reason: reason}
		}
		if prev, ok := set[rec.ID]; ok && prev.LastUpdated.After(rec.LastUpdated) {
			continue
		}
		set[rec.ID] = rec
	}
	return set, nil
}
