package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dailybrief/dailybrief/app/content"
)

type fakeCompleter struct {
	outcomes []any // string = success, error = failure
	calls    int
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.outcomes) {
		return "", errors.New("unscripted call")
	}
	switch v := f.outcomes[i].(type) {
	case string:
		return v, nil
	case error:
		return "", v
	}
	return "", errors.New("bad script")
}

func longContent(s string) string {
	return s + strings.Repeat(" More detail follows here.", 5)
}

func testArticle(title string) content.Article {
	return content.Article{
		ItemID:       "id-" + title,
		FeedURL:      "https://example.com/feed.xml",
		SourceName:   "Example News",
		URL:          "https://example.com/" + title,
		Title:        title,
		CleanContent: longContent("Something happened in " + title + "."),
		ImageURL:     "https://example.com/img.jpg",
	}
}

const wellFormedResponse = `HEADLINE: City Opens New Bridge

TEASER: The city opened a new bridge on Friday. Officials expect reduced congestion.

BODY:
The city opened a new bridge across the river on Friday.

Officials said the project finished under budget.

SOURCE: Source: Example News — https://example.com/a`

func TestRunRewritesInOrder(t *testing.T) {
	completer := &fakeCompleter{outcomes: []any{wellFormedResponse, wellFormedResponse}}
	r := NewRewriter(completer)

	results := r.Run(context.Background(), []content.Article{
		testArticle("first"),
		testArticle("second"),
	})

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got: %d", len(results))
	}
	if results[0].ItemID != "id-first" || results[1].ItemID != "id-second" {
		t.Error("Results should preserve input order")
	}
	if results[0].Headline != "City Opens New Bridge" {
		t.Errorf("Expected parsed headline, got: %q", results[0].Headline)
	}
}

func TestRunSkipsFailedArticle(t *testing.T) {
	completer := &fakeCompleter{outcomes: []any{
		errors.New("boom"),
		wellFormedResponse,
	}}
	r := NewRewriter(completer)

	results := r.Run(context.Background(), []content.Article{
		testArticle("broken"),
		testArticle("ok"),
	})

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got: %d", len(results))
	}
	if results[0].ItemID != "id-ok" {
		t.Errorf("Expected the surviving article, got: %q", results[0].ItemID)
	}
}

func TestRunStopsAfterConsecutiveFailures(t *testing.T) {
	completer := &fakeCompleter{outcomes: []any{
		errors.New("boom"),
		errors.New("boom"),
		errors.New("boom"),
	}}
	r := NewRewriter(completer)

	articles := []content.Article{
		testArticle("a"), testArticle("b"), testArticle("c"),
		testArticle("d"), testArticle("e"),
	}
	results := r.Run(context.Background(), articles)

	if len(results) != 0 {
		t.Errorf("Expected no results, got: %d", len(results))
	}
	if completer.calls != 3 {
		t.Errorf("Expected batch to stop after 3 consecutive failures, got %d calls", completer.calls)
	}
}

func TestRunSuccessResetsFailureStreak(t *testing.T) {
	completer := &fakeCompleter{outcomes: []any{
		errors.New("boom"),
		errors.New("boom"),
		wellFormedResponse,
		errors.New("boom"),
		errors.New("boom"),
		wellFormedResponse,
	}}
	r := NewRewriter(completer)

	articles := make([]content.Article, 6)
	for i := range articles {
		articles[i] = testArticle(string(rune('a' + i)))
	}
	results := r.Run(context.Background(), articles)

	if len(results) != 2 {
		t.Errorf("Expected 2 results, got: %d", len(results))
	}
	if completer.calls != 6 {
		t.Errorf("Expected the whole batch to run, got %d calls", completer.calls)
	}
}

func TestShortContentPassesThroughWithoutCall(t *testing.T) {
	completer := &fakeCompleter{}
	r := NewRewriter(completer)

	article := testArticle("stub")
	article.CleanContent = "Just a headline."

	results := r.Run(context.Background(), []content.Article{article})

	if completer.calls != 0 {
		t.Errorf("Short content must not trigger an external call, got %d calls", completer.calls)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 passthrough result, got: %d", len(results))
	}
	if results[0].Headline != "stub" {
		t.Errorf("Passthrough should keep the original title, got: %q", results[0].Headline)
	}
	if results[0].Body != "Just a headline." {
		t.Errorf("Passthrough should keep the original content, got: %q", results[0].Body)
	}
	if !strings.Contains(results[0].SourceLine, "Example News") {
		t.Errorf("Passthrough should carry a source line, got: %q", results[0].SourceLine)
	}
}

func TestPassthroughEmptyContent(t *testing.T) {
	article := testArticle("empty")
	article.CleanContent = ""

	result := passthrough(article)

	if result.Body != "No content available." {
		t.Errorf("Expected placeholder body, got: %q", result.Body)
	}
}

func TestParseResponseWellFormed(t *testing.T) {
	result := parseResponse(wellFormedResponse, "Example News", "https://example.com/a")

	if result.Headline != "City Opens New Bridge" {
		t.Errorf("Unexpected headline: %q", result.Headline)
	}
	if !strings.HasPrefix(result.Teaser, "The city opened a new bridge") {
		t.Errorf("Unexpected teaser: %q", result.Teaser)
	}
	if !strings.Contains(result.Body, "under budget") {
		t.Errorf("Unexpected body: %q", result.Body)
	}
	if strings.Contains(result.Body, "SOURCE:") {
		t.Error("Body should not include the source marker")
	}
	if result.SourceLine != "Source: Example News — https://example.com/a" {
		t.Errorf("Source line must be rebuilt locally, got: %q", result.SourceLine)
	}
}

func TestParseResponseMissingHeadlineUsesFirstLine(t *testing.T) {
	response := "Big news today\n\nBODY:\nSomething happened. Then more."
	result := parseResponse(response, "Example News", "https://example.com/a")

	if result.Headline != "Big news today" {
		t.Errorf("Expected first line as headline, got: %q", result.Headline)
	}
}

func TestParseResponseMissingBodyUsesFullResponse(t *testing.T) {
	response := "The model ignored the format. It just wrote prose here."
	result := parseResponse(response, "Example News", "https://example.com/a")

	if result.Body != response {
		t.Errorf("Expected full response as body, got: %q", result.Body)
	}
	if result.Headline != "The model ignored the format. It just wrote prose here." {
		t.Errorf("Unexpected headline fallback: %q", result.Headline)
	}
}

func TestParseResponseMissingTeaserDerivedFromBody(t *testing.T) {
	response := "HEADLINE: Title\n\nBODY:\nFirst fact here. Second fact here. Third fact here."
	result := parseResponse(response, "Example News", "https://example.com/a")

	if result.Teaser != "First fact here. Second fact here." {
		t.Errorf("Expected first two sentences as teaser, got: %q", result.Teaser)
	}
}

func TestFirstSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"two of three", "One. Two. Three.", 2, "One. Two."},
		{"fewer than asked", "Only one sentence here.", 2, "Only one sentence here."},
		{"question and exclamation", "Really? Yes! And more. Extra.", 2, "Really? Yes!"},
		{"no boundary short", "no punctuation at all", 2, "no punctuation at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstSentences(tt.text, tt.n); got != tt.want {
				t.Errorf("Expected %q, got: %q", tt.want, got)
			}
		})
	}
}

func TestFirstSentencesFallbackKeepsRunesIntact(t *testing.T) {
	// 240 bytes of three-byte runes with no sentence boundary; the
	// 200-byte fallback cut lands mid-rune.
	text := strings.Repeat("日", 80)

	got := firstSentences(text, 2)

	if !utf8.ValidString(got) {
		t.Errorf("Expected valid UTF-8 after fallback cut, got: %q", got)
	}
	if len(got) > 200 {
		t.Errorf("Expected at most 200 bytes, got: %d", len(got))
	}
}

func TestBuildMessagesIncludesArticleFields(t *testing.T) {
	article := testArticle("a")
	messages := buildMessages(article)

	if len(messages) != 2 {
		t.Fatalf("Expected system and user messages, got: %d", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("Expected system role first, got: %q", messages[0].Role)
	}
	user := messages[1].Content
	for _, want := range []string{article.SourceName, article.URL, article.Title, "Source: Example News"} {
		if !strings.Contains(user, want) {
			t.Errorf("User prompt missing %q", want)
		}
	}
}
