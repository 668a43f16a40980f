package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

// Store loads and saves the complete record set.
type Store interface {
	// Load returns the persisted set, or an empty set if nothing was saved yet.
	Load(ctx context.Context) (event.Set, error)
	// Save replaces the persisted set with set.
	Save(ctx context.Context, set event.Set) error
}

// ErrCorruptStore matches every *CorruptStoreError.
var ErrCorruptStore = errors.New("corrupt record store")

// CorruptStoreError reports persisted data that cannot be trusted.
type CorruptStoreError struct {
	Source string // file path or table name
	Reason string
	Err    error
}

func (e *CorruptStoreError) Error() string {
	msg := fmt.Sprintf("corrupt record store %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCorruptStore) work
func (e *CorruptStoreError) Is(target error) bool {
	return target == ErrCorruptStore
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// validateRecord checks the fields every persisted record must carry.
func validateRecord(rec *event.Record) string {
	switch {
	case rec == nil:
		return "null record"
	case rec.ID == "":
		return "record without id"
	case rec.City == "":
		return fmt.Sprintf("record %s has no city", rec.ID)
	case rec.Date == "":
		return fmt.Sprintf("record %s has no date", rec.ID)
	case rec.LastUpdated.IsZero():
		return fmt.Sprintf("record %s has no last_updated", rec.ID)
	}
	if _, err := time.Parse(event.DateLayout, rec.Date); err != nil {
		return fmt.Sprintf("record %s has invalid date %q", rec.ID, rec.Date)
	}
	if rec.Time != "" {
		if _, err := time.Parse(event.ClockLayout, rec.Time); err != nil {
			return fmt.Sprintf("record %s has invalid time %q", rec.ID, rec.Time)
		}
	}
	return ""
}
