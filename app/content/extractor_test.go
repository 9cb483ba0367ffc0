package content

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dailybrief/dailybrief/app/feed"
)

func TestCleanTextStripsTagsAndChrome(t *testing.T) {
	html := `<html><body>
		<nav>Menu</nav>
		<script>alert("nope")</script>
		<style>.x { color: red }</style>
		<p>First paragraph.</p>
		<p>Second paragraph.</p>
		<footer>Copyright</footer>
	</body></html>`

	text := CleanText(html)

	if strings.Contains(text, "Menu") || strings.Contains(text, "alert") || strings.Contains(text, "Copyright") {
		t.Errorf("Expected chrome and scripts removed, got: %q", text)
	}
	if !strings.Contains(text, "First paragraph.") || !strings.Contains(text, "Second paragraph.") {
		t.Errorf("Expected paragraph text preserved, got: %q", text)
	}
}

func TestCleanTextKeepsParagraphBreaks(t *testing.T) {
	text := CleanText("<p>One.</p><p>Two.</p>")

	if !strings.Contains(text, "\n") {
		t.Errorf("Expected a line break between paragraphs, got: %q", text)
	}
}

func TestCleanTextNormalizesWhitespace(t *testing.T) {
	text := CleanText("<p>Too     many    spaces.</p>\n\n\n\n<p>Next.</p>")

	if strings.Contains(text, "  ") {
		t.Errorf("Expected collapsed spaces, got: %q", text)
	}
	if strings.Contains(text, "\n\n\n") {
		t.Errorf("Expected at most double newlines, got: %q", text)
	}
}

func TestCleanTextEmptyInput(t *testing.T) {
	if got := CleanText(""); got != "" {
		t.Errorf("Expected empty output for empty input, got: %q", got)
	}
}

func TestTruncateShortTextUnchanged(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("Expected unchanged text, got: %q", got)
	}
}

func TestTruncateBreaksAtSentence(t *testing.T) {
	text := strings.Repeat("A sentence here. ", 20)

	got := Truncate(text, 100)

	if len(got) > 100 {
		t.Errorf("Expected at most 100 chars, got: %d", len(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("Expected a sentence-final break, got: %q", got)
	}
}

func TestTruncateFallsBackToEllipsis(t *testing.T) {
	text := strings.Repeat("x", 500)

	got := Truncate(text, 100)

	if !strings.HasSuffix(got, "...") {
		t.Errorf("Expected ellipsis when no break point exists, got: %q", got)
	}
	if len(got) > 103 {
		t.Errorf("Expected roughly 100 chars, got: %d", len(got))
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	text := strings.Repeat("é", 100)

	// An odd byte budget lands mid-rune for two-byte characters.
	got := Truncate(text, 31)

	if !utf8.ValidString(got) {
		t.Errorf("Expected valid UTF-8 after truncation, got: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Expected ellipsis, got: %q", got)
	}
}

func TestPrepareBuildsArticle(t *testing.T) {
	p := NewPreparer(&http.Client{}, "test-agent")

	item := feed.Item{
		ID:         "id-1",
		Title:      "A Story",
		Link:       "https://example.com/story",
		Content:    "<p>Something happened today.</p>",
		SourceName: "Example News",
		SourceURL:  "https://example.com/feed.xml",
		MediaURLs:  []string{"https://example.com/pic.jpg"},
	}

	article := p.Prepare(context.Background(), item)

	if article.ItemID != "id-1" || article.FeedURL != "https://example.com/feed.xml" {
		t.Errorf("Expected identity passthrough, got: %+v", article)
	}
	if article.CleanContent != "Something happened today." {
		t.Errorf("Expected cleaned content, got: %q", article.CleanContent)
	}
	if article.ImageURL != "https://example.com/pic.jpg" {
		t.Errorf("Expected media image, got: %q", article.ImageURL)
	}
}
