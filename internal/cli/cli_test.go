package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/measurecamp-ics/internal/storage"
)

const feedJSON = `[
  {"city": "Amsterdam", "url": "https://amsterdam.measurecamp.org/", "date": "2026-04-18", "time": "09:00", "venue": "House of Watt", "address": "James Wattstraat 73"},
  {"city": "London", "date": "6 September 2025", "time": "9:00 AM"},
  {"city": "", "date": "2026-05-01"}
]`

type env struct {
	dir    string
	config string
	store  string
	output string
	input  string
}

func newEnv(t *testing.T, feed string) *env {
	t.Helper()

	orig := now
	now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	dir := t.TempDir()
	e := &env{
		dir:    dir,
		config: filepath.Join(dir, "missing.yaml"),
		store:  filepath.Join(dir, "events.json"),
		output: filepath.Join(dir, "measurecamp.ics"),
		input:  filepath.Join(dir, "feed.json"),
	}
	if err := os.WriteFile(e.input, []byte(feed), 0644); err != nil {
		t.Fatalf("writing feed: %v", err)
	}
	return e
}

func (e *env) args(extra ...string) []string {
	return append([]string{
		"--config", e.config,
		"--store", e.store,
		"--output", e.output,
	}, extra...)
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeSummary(t *testing.T, out string) SyncSummary {
	t.Helper()
	var s SyncSummary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decoding summary: %v\n%s", err, out)
	}
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestSyncWritesStoreAndCalendar(t *testing.T) {
	e := newEnv(t, feedJSON)

	stdout, stderr, err := execute(t, "", e.args("sync", "--input", e.input, "--format", "json")...)
	if err != nil {
		t.Fatalf("sync failed: %v\nstderr: %s", err, stderr)
	}

	s := decodeSummary(t, stdout)
	if s.Inserted != 2 || s.Rejected != 1 || s.Updated != 0 || s.Unchanged != 0 {
		t.Errorf("counts = %+v, want 2 inserted and 1 rejected", s)
	}
	if s.Total != 2 || s.Upcoming != 1 {
		t.Errorf("Total = %d, Upcoming = %d, want 2 and 1", s.Total, s.Upcoming)
	}
	if len(s.Changed) != 2 || s.Changed[0].ID != "amsterdam-2026" || s.Changed[1].ID != "london-2025" {
		t.Fatalf("Changed = %+v", s.Changed)
	}
	if s.Changed[0].Action != "inserted" {
		t.Errorf("Action = %q, want inserted", s.Changed[0].Action)
	}
	if s.Calendar.Path != e.output || s.Calendar.Events != 2 {
		t.Errorf("Calendar = %+v", s.Calendar)
	}
	if s.RunID == "" {
		t.Error("summary should carry a run id")
	}

	store := readFile(t, e.store)
	for _, want := range []string{`"amsterdam-2026"`, `"london-2025"`, `"time": "09:00"`} {
		if !strings.Contains(store, want) {
			t.Errorf("store missing %s:\n%s", want, store)
		}
	}

	cal := readFile(t, e.output)
	if !strings.HasSuffix(cal, "END:VCALENDAR\r\n") {
		t.Error("calendar should end with CRLF")
	}
	if strings.Contains(strings.ReplaceAll(cal, "\r\n", ""), "\n") {
		t.Error("calendar contains bare LF line endings")
	}
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"UID:amsterdam-2026@measurecamp.org",
		"DTSTART:20260418T090000",
		"SUMMARY:MeasureCamp Amsterdam",
		"LOCATION:House of Watt",
		"UID:london-2025@measurecamp.org",
		"END:VCALENDAR",
	} {
		if !strings.Contains(cal, want) {
			t.Errorf("calendar missing %q", want)
		}
	}

	if !strings.Contains(stderr, "Rejected feed item") {
		t.Errorf("expected rejection warning in log:\n%s", stderr)
	}
	if !strings.Contains(stderr, `"run_id":"`+s.RunID+`"`) {
		t.Errorf("log entries should carry run_id %s:\n%s", s.RunID, stderr)
	}
}

func TestSyncIsDefaultCommand(t *testing.T) {
	e := newEnv(t, feedJSON)

	stdout, _, err := execute(t, "", e.args("--input", e.input)...)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !strings.Contains(stdout, "NEW: Amsterdam (2026-04-18) amsterdam-2026") {
		t.Errorf("unexpected text output:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Total: 2 events (1 upcoming)") {
		t.Errorf("missing total line:\n%s", stdout)
	}
	if _, err := os.Stat(e.output); err != nil {
		t.Errorf("calendar not written: %v", err)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	e := newEnv(t, feedJSON)
	args := e.args("sync", "--input", e.input, "--format", "json")

	if _, _, err := execute(t, "", args...); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	store1, cal1 := readFile(t, e.store), readFile(t, e.output)

	// a later clock must not touch unchanged records
	now = func() time.Time { return time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC) }

	stdout, _, err := execute(t, "", args...)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	s := decodeSummary(t, stdout)
	if s.Inserted != 0 || s.Updated != 0 || s.Unchanged != 2 {
		t.Errorf("second run counts = %+v, want 2 unchanged", s)
	}
	if len(s.Changed) != 0 {
		t.Errorf("Changed = %+v, want none", s.Changed)
	}
	if got := readFile(t, e.store); got != store1 {
		t.Errorf("store changed on idempotent run:\n%s\nvs\n%s", store1, got)
	}
	if got := readFile(t, e.output); got != cal1 {
		t.Error("calendar changed on idempotent run")
	}
}

func TestSyncReportsUpdatedFields(t *testing.T) {
	e := newEnv(t, feedJSON)
	if _, _, err := execute(t, "", e.args("--input", e.input)...); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	moved := `{"city": "Amsterdam", "url": "https://amsterdam.measurecamp.org/", "date": "2026-04-18", "time": "09:30", "venue": "Kromhouthal", "address": "James Wattstraat 73"}`
	stdout, _, err := execute(t, moved, e.args("--input", "-", "--format", "json")...)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	s := decodeSummary(t, stdout)
	if s.Updated != 1 || len(s.Changed) != 1 {
		t.Fatalf("summary = %+v, want one update", s)
	}
	c := s.Changed[0]
	if c.Action != "updated" || strings.Join(c.Fields, ",") != "time,venue" {
		t.Errorf("Changed = %+v, want updated [time venue]", c)
	}
	if s.Total != 2 {
		t.Errorf("Total = %d, records missing from the feed must be kept", s.Total)
	}
	if cal := readFile(t, e.output); !strings.Contains(cal, "DTSTART:20260418T093000") {
		t.Error("calendar should carry the new start time")
	}
}

func TestSyncExitCode(t *testing.T) {
	e := newEnv(t, feedJSON)
	args := e.args("sync", "--input", e.input, "--exit-code")

	_, _, err := execute(t, "", args...)
	if !errors.Is(err, ErrChangesDetected) {
		t.Fatalf("first run err = %v, want ErrChangesDetected", err)
	}
	if code := exitCode(err, &bytes.Buffer{}); code != ExitChanges {
		t.Errorf("exit code = %d, want %d", code, ExitChanges)
	}

	if _, _, err := execute(t, "", args...); err != nil {
		t.Errorf("second run err = %v, want nil", err)
	}
}

func TestSyncDryRun(t *testing.T) {
	e := newEnv(t, feedJSON)

	stdout, _, err := execute(t, "", e.args("sync", "--input", e.input, "--dry-run", "--format", "json")...)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	s := decodeSummary(t, stdout)
	if !s.DryRun || s.Inserted != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.Calendar.Events != 2 || s.Calendar.Path != "" {
		t.Errorf("Calendar = %+v, want 2 events and no path", s.Calendar)
	}
	for _, path := range []string{e.store, e.output} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should not exist after a dry run (err=%v)", path, err)
		}
	}
}

func TestSyncCorruptStoreIsFatal(t *testing.T) {
	e := newEnv(t, feedJSON)
	corrupt := `{"events": {"amsterdam-2026": {"id": "paris-2026"}}}`
	if err := os.WriteFile(e.store, []byte(corrupt), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "", e.args("--input", e.input)...)
	if !errors.Is(err, storage.ErrCorruptStore) {
		t.Fatalf("err = %v, want ErrCorruptStore", err)
	}
	if got := readFile(t, e.store); got != corrupt {
		t.Error("corrupt store must not be overwritten")
	}
	if _, err := os.Stat(e.output); !os.IsNotExist(err) {
		t.Error("calendar must not be written when the store is corrupt")
	}
}

func TestSyncFailsWhenFeedYieldsOnlyErrors(t *testing.T) {
	e := newEnv(t, `{"city": "Amsterdam", "date": `)

	_, _, err := execute(t, "", e.args("--input", e.input)...)
	if err == nil || !strings.Contains(err.Error(), "feed failed") {
		t.Fatalf("err = %v, want feed failure", err)
	}
	if _, err := os.Stat(e.store); !os.IsNotExist(err) {
		t.Error("store should not be written when the feed failed")
	}
}

func TestSyncFailsWhenListingHasNoEvents(t *testing.T) {
	e := newEnv(t, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Calendar</h1><p>Coming soon</p></body></html>")
	}))
	defer srv.Close()

	cfg := "feed:\n  listing_url: " + srv.URL + "\n  delay: 0s\n"
	if err := os.WriteFile(e.config, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := execute(t, "", e.args("sync")...)
	if err == nil || !strings.Contains(err.Error(), "no events found") {
		t.Fatalf("err = %v, want an empty-listing failure", err)
	}
	if !strings.Contains(stderr, "No events scraped") {
		t.Errorf("expected an error log entry:\n%s", stderr)
	}
	for _, path := range []string{e.store, e.output} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should not be written for an empty listing (err=%v)", path, err)
		}
	}
}

func TestSyncEmptyJSONInputSucceeds(t *testing.T) {
	e := newEnv(t, "[]")

	if _, _, err := execute(t, "", e.args("sync", "--input", e.input)...); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if _, err := os.Stat(e.output); err != nil {
		t.Errorf("calendar not written: %v", err)
	}
}

func TestSyncTimeoutSkipsSave(t *testing.T) {
	e := newEnv(t, feedJSON)

	_, _, err := execute(t, "", e.args("--input", e.input, "--timeout", "1ns")...)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if _, err := os.Stat(e.store); !os.IsNotExist(err) {
		t.Error("store must not be saved after the run was aborted")
	}
}

func TestSyncMissingInput(t *testing.T) {
	e := newEnv(t, feedJSON)

	_, _, err := execute(t, "", e.args("--input", filepath.Join(e.dir, "nope.json"))...)
	if err == nil || !strings.Contains(err.Error(), "opening feed input") {
		t.Errorf("err = %v, want open failure", err)
	}
}

func TestSyncUsesConfigFile(t *testing.T) {
	e := newEnv(t, feedJSON)
	metricsPath := filepath.Join(e.dir, "measurecamp.prom")
	cfg := `calendar:
  name: Test Calendar
  summary_prefix: MC
metrics:
  textfile: ` + metricsPath + `
log:
  level: warn
`
	if err := os.WriteFile(e.config, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := execute(t, "", e.args("--input", e.input)...)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	cal := readFile(t, e.output)
	if !strings.Contains(cal, "X-WR-CALNAME:Test Calendar") || !strings.Contains(cal, "SUMMARY:MC Amsterdam") {
		t.Errorf("calendar ignores config:\n%s", cal)
	}
	if strings.Contains(stderr, `"level":"INFO"`) {
		t.Errorf("info entries logged at warn level:\n%s", stderr)
	}

	prom := readFile(t, metricsPath)
	for _, want := range []string{
		`measurecamp_ics_feed_items_total{action="inserted"} 2`,
		`measurecamp_ics_feed_items_total{action="rejected"} 1`,
		`measurecamp_ics_calendar_events 2`,
	} {
		if !strings.Contains(prom, want) {
			t.Errorf("metrics missing %q:\n%s", want, prom)
		}
	}
}

func TestInvalidConfigIsAnError(t *testing.T) {
	e := newEnv(t, feedJSON)
	if err := os.WriteFile(e.config, []byte("store:\n  backend: sqlite\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, "", e.args("--input", e.input)...); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestInvalidFormat(t *testing.T) {
	e := newEnv(t, feedJSON)
	_, _, err := execute(t, "", e.args("--input", e.input, "--format", "xml")...)
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("err = %v, want invalid format", err)
	}
}

func TestRenderCommand(t *testing.T) {
	e := newEnv(t, feedJSON)
	if _, _, err := execute(t, "", e.args("--input", e.input)...); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	want := readFile(t, e.output)
	if err := os.Remove(e.output); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "", e.args("render")...)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(stdout, "Wrote 2 of 2 events to "+e.output) {
		t.Errorf("unexpected output: %s", stdout)
	}
	if got := readFile(t, e.output); got != want {
		t.Error("render should reproduce the calendar written by sync")
	}
}

func TestRenderEmptyStore(t *testing.T) {
	e := newEnv(t, "")

	if _, _, err := execute(t, "", e.args("render")...); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	cal := readFile(t, e.output)
	if !strings.Contains(cal, "BEGIN:VCALENDAR") || strings.Contains(cal, "BEGIN:VEVENT") {
		t.Errorf("expected an empty calendar:\n%s", cal)
	}
}

func TestListCommand(t *testing.T) {
	e := newEnv(t, feedJSON)
	if _, _, err := execute(t, "", e.args("--input", e.input)...); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	t.Run("all", func(t *testing.T) {
		stdout, _, err := execute(t, "", e.args("list")...)
		if err != nil {
			t.Fatal(err)
		}
		london := strings.Index(stdout, "London")
		amsterdam := strings.Index(stdout, "Amsterdam")
		if london < 0 || amsterdam < 0 || london > amsterdam {
			t.Errorf("expected London before Amsterdam:\n%s", stdout)
		}
		if !strings.Contains(stdout, "Total: 2 events") {
			t.Errorf("missing total:\n%s", stdout)
		}
	})

	t.Run("upcoming", func(t *testing.T) {
		stdout, _, err := execute(t, "", e.args("list", "--upcoming", "--format", "json")...)
		if err != nil {
			t.Fatal(err)
		}
		var r ListResult
		if err := json.Unmarshal([]byte(stdout), &r); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if r.EventCount != 1 || r.Events[0].ID != "amsterdam-2026" {
			t.Errorf("upcoming = %+v", r.Events)
		}
	})

	t.Run("verbose", func(t *testing.T) {
		stdout, _, err := execute(t, "", e.args("list", "--sort", "city", "-v")...)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(stdout, "Venue: House of Watt") || !strings.Contains(stdout, "URL: https://amsterdam.measurecamp.org/") {
			t.Errorf("verbose output missing details:\n%s", stdout)
		}
	})

	t.Run("city filter", func(t *testing.T) {
		stdout, _, err := execute(t, "", e.args("list", "--city", "lond")...)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(stdout, "Amsterdam") || !strings.Contains(stdout, "London") {
			t.Errorf("city filter not applied:\n%s", stdout)
		}
	})

	t.Run("date range", func(t *testing.T) {
		stdout, _, err := execute(t, "", e.args("list", "--range", "2026-04-01..2026-04-30", "--weekends", "--format", "json")...)
		if err != nil {
			t.Fatal(err)
		}
		var r ListResult
		if err := json.Unmarshal([]byte(stdout), &r); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if r.EventCount != 1 || r.Events[0].ID != "amsterdam-2026" {
			t.Errorf("range = %+v", r.Events)
		}
	})

	t.Run("invalid range", func(t *testing.T) {
		if _, _, err := execute(t, "", e.args("list", "--range", "someday")...); err == nil {
			t.Error("expected error for unparseable range")
		}
	})

	t.Run("invalid sort", func(t *testing.T) {
		if _, _, err := execute(t, "", e.args("list", "--sort", "title")...); err == nil {
			t.Error("expected error for unknown sort order")
		}
	})
}

func TestListEmptyStore(t *testing.T) {
	e := newEnv(t, "")
	stdout, _, err := execute(t, "", e.args("list", "--upcoming")...)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "No upcoming events found." {
		t.Errorf("output = %q", stdout)
	}
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		wantStderr string
	}{
		{"success", nil, ExitSuccess, ""},
		{"changes", ErrChangesDetected, ExitChanges, ""},
		{"failure", errors.New("boom"), ExitError, "Error: boom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := exitCode(tt.err, &stderr); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
			if stderr.String() != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}
