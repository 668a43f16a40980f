// Package cli implements the command-line interface for measurecamp-ics.
//
// The cli package provides the Cobra-based commands: sync (the default) fetches
// the event feed, reconciles it into the record store, saves the store and
// regenerates the calendar; render rewrites the calendar from the store alone;
// list prints the stored events. Output is text or JSON, and sync can signal
// changed events through its exit code for use in CI pipelines.
package cli
