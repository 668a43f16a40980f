package calendar

import "time"

const (
	DefaultProductID       = "-//MeasureCamp Calendar Scraper//github.com/braniq//EN"
	DefaultName            = "MeasureCamp Events"
	DefaultDescription     = "MeasureCamp unconference events worldwide"
	DefaultUIDDomain       = "measurecamp.org"
	DefaultSummaryPrefix   = "MeasureCamp"
	DefaultRefreshInterval = "P1D"
	DefaultDuration        = 8 * time.Hour
)

// Options controls calendar-level properties and per-event defaults. Empty
// string options omit the corresponding calendar property.
type Options struct {
	ProductID       string
	Name            string
	Description     string
	UIDDomain       string
	SummaryPrefix   string
	RefreshInterval string // ISO 8601 duration, e.g. P1D
	PublishedTTL    string // ISO 8601 duration, e.g. PT12H
	Color           string
	Categories      []string
	Duration        time.Duration // timed events only
}

// DefaultOptions returns the options used for the published MeasureCamp feed.
func DefaultOptions() Options {
	return Options{
		ProductID:       DefaultProductID,
		Name:            DefaultName,
		Description:     DefaultDescription,
		UIDDomain:       DefaultUIDDomain,
		SummaryPrefix:   DefaultSummaryPrefix,
		RefreshInterval: DefaultRefreshInterval,
		PublishedTTL:    DefaultRefreshInterval,
		Duration:        DefaultDuration,
	}
}
