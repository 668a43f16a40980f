package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
	"github.com/pfrederiksen/measurecamp-ics/internal/feed"
	"github.com/pfrederiksen/measurecamp-ics/internal/logger"
	"github.com/pfrederiksen/measurecamp-ics/internal/metrics"
	"github.com/pfrederiksen/measurecamp-ics/internal/reconcile"
)

// DefaultTimeout bounds a whole sync run.
const DefaultTimeout = 10 * time.Minute

type syncOptions struct {
	input    string
	timeout  time.Duration
	dryRun   bool
	exitCode bool
}

func addSyncFlags(cmd *cobra.Command, o *syncOptions) {
	f := cmd.Flags()
	f.StringVar(&o.input, "input", "", "Read raw events from a JSON file instead of scraping ('-' for stdin)")
	f.DurationVar(&o.timeout, "timeout", DefaultTimeout, "Abort the run after this long (0 disables)")
	f.BoolVar(&o.dryRun, "dry-run", false, "Reconcile and report without writing the store or calendar")
	f.BoolVar(&o.exitCode, "exit-code", false, "Exit with code 2 when events were added or updated")
}

func newSyncCmd(root *rootOptions) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch events, update the record store and regenerate the calendar",
		Long: `Reads every event from the source feed, reconciles it into the record store,
saves the store and rewrites the calendar file.

Examples:
  measurecamp-ics sync
  measurecamp-ics sync --input events.json --store events.json --output measurecamp.ics
  measurecamp-ics sync --dry-run --format json
  measurecamp-ics sync --exit-code   # exit 2 when events changed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, root, opts)
		},
	}
	addSyncFlags(cmd, opts)
	return cmd
}

func runSync(cmd *cobra.Command, root *rootOptions, opts *syncOptions) error {
	a, err := root.setup(cmd)
	if err != nil {
		return err
	}
	started := now()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	set, release, store, err := a.loadSet(ctx)
	if err != nil {
		a.log.Error("Loading record store failed", logger.Fields{"path": a.cfg.Store.Path}, err)
		return err
	}
	defer release()

	src, closeFeed, err := a.openFeed(cmd, opts.input)
	if err != nil {
		return err
	}
	defer closeFeed()

	manager := reconcile.NewManager(reconcile.ClockFunc(now), a.log)
	result, err := manager.Run(ctx, src.Items(ctx), set)
	if err != nil {
		a.log.Error("Run aborted before save", logger.Fields{"seen": result.Seen()}, err)
		return fmt.Errorf("run aborted: %w", err)
	}
	if result.Accepted() == 0 && result.FeedErrors > 0 {
		return fmt.Errorf("feed failed: %d errors and no usable events", result.FeedErrors)
	}
	if opts.input == "" && result.Seen() == 0 {
		// an empty listing page usually means the markup changed
		a.log.Error("No events scraped", logger.Fields{"url": a.cfg.Feed.ListingURL}, nil)
		return fmt.Errorf("feed failed: no events found at %s", a.cfg.Feed.ListingURL)
	}

	if opts.dryRun {
		a.log.Info("Dry run, not writing store or calendar", nil)
	} else if err := store.Save(ctx, set); err != nil {
		a.log.Error("Saving record store failed", logger.Fields{"backend": a.cfg.Store.Backend}, err)
		return fmt.Errorf("saving record store: %w", err)
	}

	cal, err := a.renderCalendar(set, opts.dryRun)
	if err != nil {
		a.log.Error("Writing calendar failed", logger.Fields{"path": a.cfg.Calendar.Output}, err)
		return err
	}

	at := now()
	upcoming, past := countUpcoming(set, at)
	if a.cfg.Metrics.Textfile != "" && !opts.dryRun {
		rec := metrics.New()
		rec.ObserveRun(result)
		rec.SetRecords(upcoming, past)
		rec.ObserveCalendar(cal.Events, cal.Skipped)
		rec.MarkSuccess(at, at.Sub(started))
		if err := rec.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.log.Warn("Writing metrics textfile failed", logger.Fields{"path": a.cfg.Metrics.Textfile, "error": err.Error()})
		}
	}

	summary := newSyncSummary(a, result, set, cal, at, opts.dryRun)
	summary.Upcoming = upcoming
	a.log.Info("Sync complete", logger.Fields{
		"inserted":  result.Inserted,
		"updated":   result.Updated,
		"unchanged": result.Unchanged,
		"rejected":  result.Rejected,
		"errors":    result.FeedErrors,
		"total":     len(set),
	})
	if err := WriteSyncSummary(a.stdout, summary, a.format); err != nil {
		return err
	}

	if opts.exitCode && len(summary.Changed) > 0 {
		return ErrChangesDetected
	}
	return nil
}

// openFeed returns the JSON feed when input is set and the HTML feed otherwise.
func (a *app) openFeed(cmd *cobra.Command, input string) (feed.Feed, func(), error) {
	if input == "" {
		a.log.Info("Scraping event listing", logger.Fields{"url": a.cfg.Feed.ListingURL})
		opts := a.cfg.HTMLOptions()
		opts.Now = now
		return feed.NewHTMLFeed(opts), func() {}, nil
	}
	r, closeInput, err := openInput(cmd, input)
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("Reading event feed", logger.Fields{"input": input})
	return feed.NewJSONFeed(r), closeInput, nil
}

func newSyncSummary(a *app, result *reconcile.Result, set event.Set, cal CalendarResult, at time.Time, dryRun bool) *SyncSummary {
	summary := &SyncSummary{
		CheckedAt:  at.UTC().Truncate(time.Second),
		RunID:      a.runID,
		DryRun:     dryRun,
		Inserted:   result.Inserted,
		Updated:    result.Updated,
		Unchanged:  result.Unchanged,
		Rejected:   result.Rejected,
		FeedErrors: result.FeedErrors,
		Total:      len(set),
		Calendar:   cal,
		Changed:    make([]ChangedEvent, 0),
	}

	// the last outcome per id describes its final state in set
	actions := make(map[string]reconcile.Action)
	fields := make(map[string][]string)
	for _, o := range result.Outcomes {
		if o.Action != reconcile.Inserted && o.Action != reconcile.Updated {
			continue
		}
		if actions[o.ID] != reconcile.Inserted {
			actions[o.ID] = o.Action
		}
		for _, c := range o.Changes {
			fields[o.ID] = appendUnique(fields[o.ID], c.Field)
		}
	}
	for _, id := range result.ChangedIDs() {
		rec, ok := set[id]
		if !ok {
			continue
		}
		changed := ChangedEvent{
			ID:     id,
			City:   rec.City,
			Date:   rec.Date,
			Action: actions[id].String(),
		}
		if actions[id] == reconcile.Updated {
			changed.Fields = fields[id]
		}
		summary.Changed = append(summary.Changed, changed)
	}
	return summary
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
