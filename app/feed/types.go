package feed

import (
	"time"
)

// Source is one configured syndication feed, loaded from the feeds file.
// Static for the duration of a run.
type Source struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// Item is a single feed entry normalized from whatever dialect the source
// speaks. The parser fills the raw fields; the selector resolves ID and
// PublishedAt and drops anything it cannot resolve.
type Item struct {
	ID          string
	GUID        string
	Title       string
	Link        string
	Content     string
	Description string

	PublishedParsed *time.Time
	UpdatedParsed   *time.Time
	// CandidateDates holds raw date strings in resolution order, used only
	// when the structured timestamps above are absent.
	CandidateDates []string

	PublishedAt time.Time

	// Media hints, passed through to image extraction.
	EnclosureURL  string
	EnclosureType string
	MediaURLs     []string

	SourceName string
	SourceURL  string
	Category   string
}
