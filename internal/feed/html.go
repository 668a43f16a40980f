package feed

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

const (
	DefaultListingURL = "https://www.measurecamp.org/measurecamp-calendar/"
	UserAgent         = "measurecamp-ics/1.0 (github.com/pfrederiksen/measurecamp-ics)"
	DefaultTimeout    = 10 * time.Second
	DefaultDelay      = time.Second

	siteDomain = "measurecamp.org"
	mainSite   = "https://www.measurecamp.org"
)

var (
	// "17th Jan – Malmo" or "17th Jan – Malmo (rescheduled)"
	linkCity = regexp.MustCompile(`–\s*(.+?)(?:\s*\(|$)`)
	// "Saturday 14 Jun, 2025" or "Saturday 14 Jun"
	headerDate = regexp.MustCompile(`(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday)\s+(\d{1,2})\s+(\w+),?\s*(\d{4})?`)
	// "- 09:00 - 17:00" or "- 8h30 - 17h00 + after"
	headerTime = regexp.MustCompile(`(\d{1,2})[:h](\d{2})`)
	// trailing map link text inside the address span
	addressLinkText = regexp.MustCompile(`(?i)\s*\(?(?:Localisation|Localiser|View the venue|Maps?|Localizer).*$`)
)

// HTMLOptions configures an HTMLFeed. Zero values take the package defaults.
type HTMLOptions struct {
	ListingURL string
	UserAgent  string
	Timeout    time.Duration
	Delay      time.Duration // pause between detail page requests
	Client     *http.Client
	Now        func() time.Time // used to infer missing years
}

// HTMLFeed scrapes the MeasureCamp calendar page and the detail page of every
// event it links to. Each page is requested once; failures are not retried.
type HTMLFeed struct {
	client     *http.Client
	listingURL string
	userAgent  string
	delay      time.Duration
	now        func() time.Time
}

// NewHTMLFeed creates an HTMLFeed
func NewHTMLFeed(opts HTMLOptions) *HTMLFeed {
	if opts.ListingURL == "" {
		opts.ListingURL = DefaultListingURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTMLFeed{
		client:     client,
		listingURL: opts.ListingURL,
		userAgent:  opts.UserAgent,
		delay:      opts.Delay,
		now:        opts.Now,
	}
}

// link is one event found on the listing page.
type link struct {
	City string
	URL  string
}

// Items fetches the listing page, then yields one item per linked event.
func (f *HTMLFeed) Items(ctx context.Context) iter.Seq2[event.RawFields, error] {
	return func(yield func(event.RawFields, error) bool) {
		doc, err := f.fetch(ctx, f.listingURL)
		if err != nil {
			yield(event.RawFields{}, fmt.Errorf("fetching calendar page: %w", err))
			return
		}

		for i, l := range parseListing(doc) {
			if i > 0 && !f.pause(ctx) {
				return
			}
			if ctx.Err() != nil {
				return
			}

			raw := event.RawFields{City: l.City, SourceURL: l.URL}
			detail, err := f.fetch(ctx, l.URL)
			if err != nil {
				if !yield(raw, fmt.Errorf("fetching event page %s: %w", l.URL, err)) {
					return
				}
				continue
			}

			parseDetail(detail, &raw, f.now())
			if !yield(raw, nil) {
				return
			}
		}
	}
}

// pause waits for the politeness delay. It returns false if ctx ended first.
func (f *HTMLFeed) pause(ctx context.Context) bool {
	if f.delay == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(f.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (f *HTMLFeed) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// parseListing extracts event links pointing at city subdomains of
// measurecamp.org, in page order and without duplicates.
func parseListing(doc *goquery.Document) []link {
	links := make([]link, 0)
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if !strings.Contains(href, siteDomain) || strings.HasPrefix(href, mainSite) {
			return
		}

		m := linkCity.FindStringSubmatch(strings.TrimSpace(sel.Text()))
		if m == nil {
			return
		}
		city := strings.TrimSpace(m[1])
		if city == "" {
			return
		}

		url := absoluteURL(href)
		if seen[url] {
			return
		}
		seen[url] = true
		links = append(links, link{City: city, URL: url})
	})

	return links
}

func absoluteURL(href string) string {
	switch {
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	default:
		return "https://" + href
	}
}

// parseDetail fills the date, time, venue and address of raw from an event
// page. Missing fields are left empty.
func parseDetail(doc *goquery.Document, raw *event.RawFields, now time.Time) {
	header := doc.Find("div.headerdetails.datey div.headerdate").First()
	if header.Length() > 0 {
		raw.Date = extractDate(strings.TrimSpace(header.Find("h3").First().Text()), now)
		if m := headerTime.FindStringSubmatch(header.Find("span").First().Text()); m != nil {
			raw.Time = m[1] + ":" + m[2]
		}
	}

	loc := doc.Find("div.headerdetails.locy div.headerloc").First()
	if loc.Length() > 0 {
		raw.Venue = collapseSpace(loc.Find("h3").First().Text())
		address := collapseSpace(loc.Find("span").First().Text())
		raw.Address = strings.TrimSpace(addressLinkText.ReplaceAllString(address, ""))
	}
}

// extractDate turns a header like "Saturday 14 Jun, 2025" into YYYY-MM-DD.
// Headers without a year get the current year, or the next one if the month
// has already passed. Text that cannot be understood is returned unchanged so
// the record manager can reject it.
func extractDate(text string, now time.Time) string {
	m := headerDate.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	day, month, year := m[2], m[3], m[4]

	if year != "" {
		if d, err := event.ParseDate(day + " " + month + " " + year); err == nil {
			return d.Format(event.DateLayout)
		}
		return text
	}

	for _, layout := range []string{"2 Jan", "2 January"} {
		d, err := time.Parse(layout, day+" "+month)
		if err != nil {
			continue
		}
		y := now.Year()
		if d.Month() < now.Month() {
			y++
		}
		return time.Date(y, d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).Format(event.DateLayout)
	}
	return text
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
