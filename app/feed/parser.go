package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed bytes and normalizes every entry, tagging each item
// with its source. gofeed tolerates mixed RSS/Atom dialects and unescaped
// entities on a best-effort basis; anything it cannot parse at all returns
// an error and yields zero items.
func (p *Parser) Run(data []byte, source Source) ([]Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		items = append(items, p.normalizeItem(item, source))
	}

	return items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item, source Source) Item {
	title := item.Title
	if title == "" {
		title = "Untitled"
	}
	content := item.Content
	if content == "" {
		content = item.Description
	}
	normalized := Item{
		GUID:        item.GUID,
		Title:       title,
		Link:        item.Link,
		Content:     content,
		Description: item.Description,
		SourceName:  source.Name,
		SourceURL:   source.URL,
		Category:    source.Category,
	}

	normalized.PublishedParsed = item.PublishedParsed
	normalized.UpdatedParsed = item.UpdatedParsed
	normalized.CandidateDates = candidateDates(item)

	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		normalized.EnclosureURL = item.Enclosures[0].URL
		normalized.EnclosureType = item.Enclosures[0].Type
	}
	normalized.MediaURLs = mediaURLs(item)

	return normalized
}

// candidateDates collects raw date strings in resolution order, richest
// first. These back up the structured timestamps when a feed publishes dates
// gofeed does not recognize.
func candidateDates(item *gofeed.Item) []string {
	var dates []string
	for _, v := range []string{
		item.Published,
		item.Updated,
		item.Custom["date"],
		item.Custom["created"],
	} {
		if v != "" {
			dates = append(dates, v)
		}
	}
	return dates
}

// mediaURLs pulls image URLs from the media RSS extension (media:content and
// media:thumbnail), in that order.
func mediaURLs(item *gofeed.Item) []string {
	media, ok := item.Extensions["media"]
	if !ok {
		return nil
	}

	var urls []string
	for _, ext := range media["content"] {
		u := ext.Attrs["url"]
		mediaType := ext.Attrs["type"]
		if u != "" && (mediaType == "" || strings.Contains(mediaType, "image")) {
			urls = append(urls, u)
		}
	}
	for _, ext := range media["thumbnail"] {
		if u := ext.Attrs["url"]; u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// ItemID resolves the stable deduplication key for an item: explicit GUID,
// then normalized permalink, then a fixed-width hash over title, link and the
// first raw date marker. The same raw entry always yields the same key, both
// within and across runs.
func ItemID(item Item) string {
	if item.GUID != "" {
		return item.GUID
	}

	if item.Link != "" {
		return NormalizeURL(item.Link)
	}

	rawDate := ""
	if len(item.CandidateDates) > 0 {
		rawDate = item.CandidateDates[0]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", item.Title, item.Link, rawDate)))
	return hex.EncodeToString(sum[:])[:32]
}

// NormalizeURL canonicalizes a permalink for deduplication: scheme and host
// lower-cased, trailing slash stripped from the path, fragment removed, query
// preserved.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""

	return u.String()
}
