// Package reconcile merges raw field-sets from a source feed into the working
// record set.
//
// Every item is keyed by its derived identity and results in one of four
// outcomes: Inserted, Updated, Unchanged or Rejected. Rejections are reported
// and never abort a run, so one malformed page cannot stop the rest of the feed
// from being processed.
package reconcile
