package content

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/dailybrief/dailybrief/app/feed"
)

// MaxInputChars caps the cleaned content handed to the rewriting model.
const MaxInputChars = 12000

// Article is a feed item prepared for rewriting: content reduced to plain
// text within the model input budget, plus the resolved featured image.
type Article struct {
	ItemID       string
	FeedURL      string
	SourceName   string
	URL          string
	Title        string
	CleanContent string
	ImageURL     string
}

// Preparer turns selected feed items into rewrite-ready articles.
type Preparer struct {
	httpClient *http.Client
	userAgent  string
}

func NewPreparer(httpClient *http.Client, userAgent string) *Preparer {
	return &Preparer{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (p *Preparer) Prepare(ctx context.Context, item feed.Item) Article {
	clean := CleanText(item.Content)
	if len(clean) > MaxInputChars {
		clean = Truncate(clean, MaxInputChars)
		slog.Debug("Truncated article content", "title", item.Title)
	}

	return Article{
		ItemID:       item.ID,
		FeedURL:      item.SourceURL,
		SourceName:   item.SourceName,
		URL:          item.Link,
		Title:        item.Title,
		CleanContent: clean,
		ImageURL:     p.featuredImage(ctx, item),
	}
}

var (
	blockCloseRe = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|blockquote|tr)>`)
	brRe         = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	spacesRe     = regexp.MustCompile(`[ \t]+`)
	newlinesRe   = regexp.MustCompile(`\n{3,}`)
)

// CleanText converts an HTML fragment to plain text: scripts, styles and
// page chrome removed, block boundaries turned into line breaks, whitespace
// normalized.
func CleanText(html string) string {
	if html == "" {
		return ""
	}

	// Preserve block structure before the DOM flattens it into one string.
	html = brRe.ReplaceAllString(html, "\n")
	html = blockCloseRe.ReplaceAllString(html, "$0\n\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("HTML parsing failed, stripping tags", "error", err)
		return cleanWhitespace(tagRe.ReplaceAllString(html, ""))
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	return cleanWhitespace(doc.Text())
}

func cleanWhitespace(text string) string {
	text = spacesRe.ReplaceAllString(text, " ")
	text = newlinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Truncate shortens text to at most maxChars, preferring to break at the last
// sentence or paragraph end when one falls in the final 30% of the budget.
// The lead paragraphs carry the story, so the start is always preserved.
func Truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	// Back up to a rune boundary so the cut never splits a multibyte
	// character.
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	truncated := text[:cut]
	breakPoint := max(strings.LastIndex(truncated, "."), strings.LastIndex(truncated, "\n"))
	if breakPoint > maxChars*7/10 {
		return strings.TrimSpace(truncated[:breakPoint+1])
	}

	return strings.TrimSpace(truncated) + "..."
}
