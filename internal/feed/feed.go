package feed

import (
	"context"
	"iter"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

// Feed is a source of raw event field-sets.
type Feed interface {
	// Items returns the feed's sequence. It stops early when ctx is done.
	Items(ctx context.Context) iter.Seq2[event.RawFields, error]
}
