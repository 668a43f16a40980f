// Package storage persists the event record set between runs.
//
// FileStore keeps the set in a single pretty-printed JSON document whose
// "events" object is keyed by record identity. Saves are atomic: the document
// is written to a temporary file in the same directory, synced and renamed
// over the target, so a crash never leaves a torn file behind. Load also reads
// the list form written by earlier versions of the tool.
//
// PostgresStore keeps the same records in the event_records table and saves
// the whole set in a single transaction.
package storage
