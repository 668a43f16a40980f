package reconcile

import (
	"context"
	"iter"
	"sort"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
	"github.com/pfrederiksen/measurecamp-ics/internal/logger"
)

// Result summarizes one pass over a source feed.
type Result struct {
	Outcomes   []Outcome `json:"outcomes"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Rejected   int       `json:"rejected"`
	FeedErrors int       `json:"feed_errors"`
}

func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Action {
	case Inserted:
		r.Inserted++
	case Updated:
		r.Updated++
	case Unchanged:
		r.Unchanged++
	case Rejected:
		r.Rejected++
	}
}

// Accepted returns the number of items that reached the record set.
func (r *Result) Accepted() int {
	return r.Inserted + r.Updated + r.Unchanged
}

// Seen returns the number of items the feed yielded, failed ones included.
func (r *Result) Seen() int {
	return len(r.Outcomes) + r.FeedErrors
}

// ChangedIDs returns the sorted identities that were inserted or updated.
func (r *Result) ChangedIDs() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, o := range r.Outcomes {
		if o.Action != Inserted && o.Action != Updated {
			continue
		}
		if !seen[o.ID] {
			seen[o.ID] = true
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Run reconciles every item of the feed, in order, into set. Feed errors and
// rejected items are logged as warnings and counted. If the feed stops early the
// items reconciled so far stay in set. Run returns the context error when ctx
// is cancelled; callers should then discard set instead of saving it.
func (m *Manager) Run(ctx context.Context, items iter.Seq2[event.RawFields, error], set event.Set) (*Result, error) {
	log := m.log
	result := &Result{Outcomes: make([]Outcome, 0)}
	if set == nil {
		return result, ErrNilSet
	}

	for raw, err := range items {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		if err != nil {
			result.FeedErrors++
			log.Warn("Feed item failed", logger.Fields{"city": raw.City, "url": raw.SourceURL, "error": err.Error()})
			continue
		}

		outcome := m.Reconcile(raw, set)
		result.add(outcome)

		fields := logger.Fields{"id": outcome.ID, "city": raw.City, "action": outcome.Action.String()}
		for _, w := range outcome.Warnings {
			log.Warn("Feed item degraded", logger.Fields{"id": outcome.ID, "warning": w})
		}

		switch outcome.Action {
		case Rejected:
			fields["url"] = raw.SourceURL
			fields["date"] = raw.Date
			fields["error"] = outcome.Err.Error()
			log.Warn("Rejected feed item", fields)
		case Inserted:
			log.Info("Adding new event", fields)
		case Updated:
			changed := make([]string, 0, len(outcome.Changes))
			for _, c := range outcome.Changes {
				changed = append(changed, c.Field)
			}
			fields["fields"] = changed
			log.Info("Updating event", fields)
		default:
			log.Debug("Event unchanged", fields)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
