package cli

import (
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/measurecamp-ics/internal/logger"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Regenerate the calendar from the record store",
		Long: `Loads the record store and rewrites the calendar file without contacting
the event feed. Useful after changing calendar settings in the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}

			set, release, _, err := a.loadSet(cmd.Context())
			if err != nil {
				a.log.Error("Loading record store failed", logger.Fields{"path": a.cfg.Store.Path}, err)
				return err
			}
			defer release()

			cal, err := a.renderCalendar(set, false)
			if err != nil {
				a.log.Error("Writing calendar failed", logger.Fields{"path": a.cfg.Calendar.Output}, err)
				return err
			}
			return WriteRenderResult(a.stdout, &RenderResult{
				RunID:    a.runID,
				Total:    len(set),
				Calendar: cal,
			}, a.format)
		},
	}
}
