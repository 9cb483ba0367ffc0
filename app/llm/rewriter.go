package llm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dailybrief/dailybrief/app/content"
)

// Result is one rewritten article, ready for rendering into the digest.
type Result struct {
	Headline   string
	Teaser     string
	Body       string
	SourceLine string

	ImageURL      string
	OriginalURL   string
	OriginalTitle string
	ItemID        string
	FeedURL       string
}

// Completer is the narrow surface the rewriter needs from the LLM client.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

const systemPrompt = `You are an experienced AP-style news editor. Rewrite the article you are given following these rules:

1. Neutral, factual tone. No opinions, no editorializing.
2. Lead with the most important facts: who, what, when, where, why.
3. Attribute claims ("according to [source]") where appropriate.
4. Short sentences, active voice. Paraphrase; never copy long phrases.
5. 3-8 short paragraphs, most important information first.

Return your response in exactly this format, including the markers:

HEADLINE: [concise, factual headline]

TEASER: [2-3 sentence summary of the key points]

BODY:
[your 3-8 paragraph AP-style article]

SOURCE: [the exact source line provided in the input, unmodified]`

const userPromptTemplate = `Rewrite the following article in AP style.

SOURCE NAME: %s
ORIGINAL URL: %s
ORIGINAL TITLE: %s

ORIGINAL CONTENT:
%s

End with this exact source line:
%s`

// Rewriter turns prepared articles into digest-ready results, one external
// call at a time. The external API is rate-limited, so items are processed
// strictly sequentially; a run of consecutive failures trips the batch
// circuit breaker.
type Rewriter struct {
	client          Completer
	minContentChars int
	maxFailures     int
}

func NewRewriter(client Completer) *Rewriter {
	return &Rewriter{
		client:          client,
		minContentChars: 50,
		maxFailures:     3,
	}
}

// Run rewrites articles in input order. Individual failures are logged and
// skipped; after maxFailures consecutive failures the rest of the batch is
// abandoned and only the results accumulated so far are returned. A success
// resets the failure streak.
func (r *Rewriter) Run(ctx context.Context, articles []content.Article) []Result {
	results := make([]Result, 0, len(articles))
	consecutiveFailures := 0

	for _, article := range articles {
		result, err := r.rewrite(ctx, article)
		if err != nil {
			consecutiveFailures++
			slog.Warn("Failed to rewrite article",
				"title", article.Title,
				"consecutive_failures", consecutiveFailures,
				"error", err)

			if consecutiveFailures >= r.maxFailures {
				slog.Error("Too many consecutive rewrite failures, stopping batch",
					"threshold", r.maxFailures)
				break
			}
			continue
		}

		consecutiveFailures = 0
		results = append(results, result)
	}

	slog.Info("Rewrite batch complete", "rewritten", len(results), "total", len(articles))
	return results
}

func (r *Rewriter) rewrite(ctx context.Context, article content.Article) (Result, error) {
	// Near-empty content is not worth an external call; pass the original
	// through instead.
	if len(strings.TrimSpace(article.CleanContent)) < r.minContentChars {
		slog.Debug("Content too short to rewrite, passing through", "title", article.Title)
		return passthrough(article), nil
	}

	response, err := r.client.Complete(ctx, buildMessages(article))
	if err != nil {
		return Result{}, fmt.Errorf("rewrite failed for %q: %w", article.Title, err)
	}

	result := parseResponse(response, article.SourceName, article.URL)
	attachOriginal(&result, article)
	return result, nil
}

func passthrough(article content.Article) Result {
	body := article.CleanContent
	if body == "" {
		body = "No content available."
	}

	result := Result{
		Headline:   article.Title,
		Teaser:     firstSentences(body, 2),
		Body:       body,
		SourceLine: sourceLine(article.SourceName, article.URL),
	}
	attachOriginal(&result, article)
	return result
}

func attachOriginal(result *Result, article content.Article) {
	result.ImageURL = article.ImageURL
	result.OriginalURL = article.URL
	result.OriginalTitle = article.Title
	result.ItemID = article.ItemID
	result.FeedURL = article.FeedURL
}

func buildMessages(article content.Article) []Message {
	user := fmt.Sprintf(userPromptTemplate,
		article.SourceName,
		article.URL,
		article.Title,
		article.CleanContent,
		sourceLine(article.SourceName, article.URL))

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
}

func sourceLine(sourceName, url string) string {
	return fmt.Sprintf("Source: %s — %s", sourceName, url)
}

var (
	headlineRe = regexp.MustCompile(`(?s)HEADLINE:\s*(.+?)\s*(?:TEASER:|BODY:|SOURCE:|$)`)
	teaserRe   = regexp.MustCompile(`(?s)TEASER:\s*(.+?)\s*(?:BODY:|SOURCE:|$)`)
	bodyRe     = regexp.MustCompile(`(?s)BODY:\s*(.+?)\s*(?:SOURCE:|$)`)
)

// parseResponse extracts the marker-delimited sections from a model
// response. A malformed-but-present response still yields a usable result:
// missing headline falls back to the first line, missing body to the whole
// response, missing teaser to the body's first two sentences. The source
// line is always rebuilt locally rather than trusted from the model.
func parseResponse(response, sourceName, url string) Result {
	result := Result{
		SourceLine: sourceLine(sourceName, url),
	}

	if m := headlineRe.FindStringSubmatch(response); m != nil {
		result.Headline = strings.TrimSpace(m[1])
	}
	if m := teaserRe.FindStringSubmatch(response); m != nil {
		result.Teaser = strings.TrimSpace(m[1])
	}
	if m := bodyRe.FindStringSubmatch(response); m != nil {
		result.Body = strings.TrimSpace(m[1])
	}

	if result.Headline == "" {
		slog.Warn("No headline marker in response, using first line")
		lines := strings.SplitN(strings.TrimSpace(response), "\n", 2)
		if len(lines) > 0 && lines[0] != "" {
			result.Headline = lines[0]
		} else {
			result.Headline = "Untitled"
		}
	}

	if result.Body == "" {
		slog.Warn("No body marker in response, using full response")
		result.Body = strings.TrimSpace(response)
	}

	if result.Teaser == "" {
		result.Teaser = firstSentences(result.Body, 2)
	}

	return result
}

// firstSentences returns the first n sentences of text, or the first 200
// characters when no sentence boundary is found.
func firstSentences(text string, n int) string {
	count := 0
	for i := 0; i < len(text)-1; i++ {
		if (text[i] == '.' || text[i] == '!' || text[i] == '?') &&
			(text[i+1] == ' ' || text[i+1] == '\n') {
			count++
			if count == n {
				return strings.TrimSpace(text[:i+1])
			}
		}
	}

	if last := len(text) - 1; last >= 0 && (text[last] == '.' || text[last] == '!' || text[last] == '?') {
		return strings.TrimSpace(text)
	}
	if len(text) > 200 {
		cut := 200
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return strings.TrimSpace(text[:cut])
	}
	return strings.TrimSpace(text)
}
