// Package feed produces raw event field-sets for reconciliation.
//
// A Feed yields one event.RawFields per upstream event as a finite,
// non-restartable sequence. An item paired with a non-nil error describes an
// upstream failure for that single item (a detail page that did not load, a
// JSON record of the wrong shape); consumers log it and move on. A feed that
// cannot continue at all yields one final error and stops.
//
// Two feeds are provided:
//   - JSONFeed reads field-sets from JSON lines or a JSON array.
//   - HTMLFeed reads the public MeasureCamp calendar page and each event's
//     detail page.
package feed
