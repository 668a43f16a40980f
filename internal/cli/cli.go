package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/measurecamp-ics/internal/calendar"
	"github.com/pfrederiksen/measurecamp-ics/internal/config"
	"github.com/pfrederiksen/measurecamp-ics/internal/event"
	"github.com/pfrederiksen/measurecamp-ics/internal/logger"
	"github.com/pfrederiksen/measurecamp-ics/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitChanges = 2
)

// DefaultConfigPath is read when --config is not given. It may be absent.
const DefaultConfigPath = "measurecamp-ics.yaml"

// ErrChangesDetected is returned by sync --exit-code when records changed.
var ErrChangesDetected = errors.New("events changed")

// now is the clock used for LastUpdated and past/upcoming checks.
var now = time.Now

type rootOptions struct {
	configPath string
	storePath  string
	outputPath string
	logLevel   string
	format     string
}

// NewRootCmd creates the root command. Without a subcommand it runs sync.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	syncOpts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "measurecamp-ics",
		Short: "Publish MeasureCamp events as an iCalendar feed",
		Long: `Scrapes the MeasureCamp events calendar, keeps a persistent record of every
event across runs and publishes the set as a subscribable .ics calendar.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, syncOpts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", DefaultConfigPath, "Path to the YAML config file")
	pf.StringVar(&opts.storePath, "store", "", "Record store file (overrides store.path)")
	pf.StringVar(&opts.outputPath, "output", "", "Calendar output file (overrides calendar.output)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides log.level)")
	pf.StringVar(&opts.format, "format", "text", "Output format: text or json")

	addSyncFlags(cmd, syncOpts)

	cmd.AddCommand(
		newSyncCmd(opts),
		newRenderCmd(opts),
		newListCmd(opts),
	)
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	err := cmd.Execute()
	return exitCode(err, cmd.ErrOrStderr())
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrChangesDetected):
		return ExitChanges
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
}

// app carries the per-invocation dependencies shared by all commands.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	runID  string
	format OutputFormat
	stdout io.Writer
}

func (o *rootOptions) setup(cmd *cobra.Command) (*app, error) {
	format := OutputFormat(o.format)
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("invalid format: %s (must be 'text' or 'json')", o.format)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.storePath != "" {
		cfg.Store.Path = o.storePath
	}
	if o.outputPath != "" {
		cfg.Calendar.Output = o.outputPath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logger.New(level, cmd.ErrOrStderr()).With(logger.Fields{"run_id": runID})
	logger.SetDefault(log)

	return &app{
		cfg:    cfg,
		log:    log,
		runID:  runID,
		format: format,
		stdout: cmd.OutOrStdout(),
	}, nil
}

// openStore returns the configured store and a function releasing it.
func (a *app) openStore(ctx context.Context) (storage.Store, func(), error) {
	switch a.cfg.Store.Backend {
	case config.BackendPostgres:
		store, err := storage.OpenPostgres(ctx, a.cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening record store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := storage.NewFileStore(a.cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening record store: %w", err)
		}
		return store, func() {}, nil
	}
}

func (a *app) loadSet(ctx context.Context) (event.Set, func(), storage.Store, error) {
	store, release, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	set, err := store.Load(ctx)
	if err != nil {
		release()
		return nil, nil, nil, fmt.Errorf("loading record store: %w", err)
	}
	a.log.Debug("Loaded record store", logger.Fields{"backend": a.cfg.Store.Backend, "records": len(set)})
	return set, release, store, nil
}

// CalendarResult describes one calendar rendering.
type CalendarResult struct {
	Path    string `json:"calendar_path,omitempty"`
	Events  int    `json:"calendar_events"`
	Skipped int    `json:"calendar_skipped,omitempty"`
}

// renderCalendar serializes set and, unless dryRun, writes it atomically.
func (a *app) renderCalendar(set event.Set, dryRun bool) (CalendarResult, error) {
	doc, errs := calendar.NewSerializer(a.cfg.CalendarOptions()).Serialize(set)
	for _, err := range errs {
		a.log.Warn("Skipping calendar event", logger.Fields{"error": err.Error()})
	}

	out := CalendarResult{Events: len(set) - len(errs), Skipped: len(errs)}
	if dryRun {
		return out, nil
	}

	path, err := storage.ExpandPath(a.cfg.Calendar.Output)
	if err != nil {
		return out, err
	}
	if err := storage.WriteFileAtomic(path, []byte(doc), 0644); err != nil {
		return out, fmt.Errorf("writing calendar: %w", err)
	}
	out.Path = path
	a.log.Info("Wrote calendar", logger.Fields{"path": path, "events": out.Events, "skipped": out.Skipped})
	return out, nil
}

func countUpcoming(set event.Set, at time.Time) (upcoming, past int) {
	for _, rec := range set {
		if rec.IsPast(at) {
			past++
		} else {
			upcoming++
		}
	}
	return upcoming, past
}

// openInput opens the JSON feed input; "-" reads from stdin.
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening feed input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
