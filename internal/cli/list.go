package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
	"github.com/pfrederiksen/measurecamp-ics/internal/filter"
	"github.com/pfrederiksen/measurecamp-ics/internal/logger"
)

type listOptions struct {
	upcoming  bool
	sortBy    string
	verbose   bool
	cities    []string
	venues    []string
	dateRange string
	weekends  bool
}

func (o *listOptions) buildFilter(at time.Time) (*filter.Filter, error) {
	f := filter.NewFilter()
	f.Cities = append(f.Cities, o.cities...)
	f.Venues = append(f.Venues, o.venues...)
	f.WeekendsOnly = o.weekends
	if o.dateRange != "" {
		from, to, err := filter.ParseDateRange(o.dateRange, at)
		if err != nil {
			return nil, err
		}
		f.DateFrom, f.DateTo = from, to
	}
	return f, nil
}

func newListCmd(root *rootOptions) *cobra.Command {
	opts := &listOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the events in the record store",
		Long: `Prints every stored event, sorted by date unless --sort says otherwise.

Examples:
  measurecamp-ics list
  measurecamp-ics list --upcoming
  measurecamp-ics list --sort city --verbose
  measurecamp-ics list --city amsterdam --city paris
  measurecamp-ics list --range "April" --weekends
  measurecamp-ics list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order := SortOrder(opts.sortBy)
			if !order.valid() {
				return fmt.Errorf("invalid sort order: %s (must be 'date', 'city' or 'updated')", opts.sortBy)
			}

			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			set, release, _, err := a.loadSet(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			at := now()
			f, err := opts.buildFilter(at)
			if err != nil {
				return err
			}
			if !f.IsEmpty() {
				a.log.Debug("Filtering records", logger.Fields{"filter": f.String()})
			}

			records := make([]*event.Record, 0, len(set))
			for _, rec := range f.Apply(set.Sorted()) {
				if opts.upcoming && rec.IsPast(at) {
					continue
				}
				records = append(records, rec)
			}
			sortRecords(records, order)

			return WriteListResult(a.stdout, &ListResult{
				CheckedAt:  at.UTC().Truncate(time.Second),
				Events:     records,
				EventCount: len(records),
				Upcoming:   opts.upcoming,
			}, a.format, opts.verbose)
		},
	}

	cmd.Flags().BoolVar(&opts.upcoming, "upcoming", false, "Hide events whose day has passed")
	cmd.Flags().StringVar(&opts.sortBy, "sort", string(SortByDate), "Sort order: date, city or updated")
	cmd.Flags().StringSliceVar(&opts.cities, "city", nil, "Only show events whose city contains this text (repeatable)")
	cmd.Flags().StringSliceVar(&opts.venues, "venue", nil, "Only show events whose venue or address contains this text (repeatable)")
	cmd.Flags().StringVar(&opts.dateRange, "range", "", "Only show events in a date range, e.g. 'Apr 1-15', 'April' or '2026-04-01..2026-04-30'")
	cmd.Flags().BoolVar(&opts.weekends, "weekends", false, "Only show events on a Saturday or Sunday")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show venue, address, URL and last update")
	return cmd
}
