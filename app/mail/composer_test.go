package mail

import (
	"strings"
	"testing"

	"github.com/dailybrief/dailybrief/app/llm"
)

func sampleResult(headline string) llm.Result {
	return llm.Result{
		Headline:    headline,
		Teaser:      "A short summary of what happened.",
		Body:        "First paragraph.\n\nSecond paragraph.\n\nThird paragraph.",
		SourceLine:  "Source: Example News — https://example.com/a",
		ImageURL:    "https://example.com/img.jpg",
		OriginalURL: "https://example.com/a",
	}
}

func TestDigestSubjectCarriesDate(t *testing.T) {
	c := NewComposer()
	email, err := c.Digest([]llm.Result{sampleResult("Headline")}, "2026-08-29")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if email.Subject != "Daily RSS Digest — 2026-08-29" {
		t.Errorf("Unexpected subject: %q", email.Subject)
	}
}

func TestDigestHTMLContainsArticles(t *testing.T) {
	c := NewComposer()
	email, err := c.Digest([]llm.Result{
		sampleResult("First Story"),
		sampleResult("Second Story"),
	}, "2026-08-29")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, want := range []string{
		"First Story",
		"Second Story",
		"https://example.com/img.jpg",
		"https://example.com/a",
		"Source: Example News",
	} {
		if !strings.Contains(email.HTML, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestDigestHTMLEscapesContent(t *testing.T) {
	c := NewComposer()
	result := sampleResult("Tags <script>alert(1)</script> everywhere")
	email, err := c.Digest([]llm.Result{result}, "2026-08-29")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Contains(email.HTML, "<script>alert(1)</script>") {
		t.Error("HTML output must escape article content")
	}
	if !strings.Contains(email.HTML, "&lt;script&gt;") {
		t.Error("Expected escaped script tag in HTML output")
	}
}

func TestDigestPlainTextNumbersArticles(t *testing.T) {
	c := NewComposer()
	email, err := c.Digest([]llm.Result{
		sampleResult("First Story"),
		sampleResult("Second Story"),
	}, "2026-08-29")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(email.Text, "1. First Story") {
		t.Error("Plain text should number the first article")
	}
	if !strings.Contains(email.Text, "2. Second Story") {
		t.Error("Plain text should number the second article")
	}
	if !strings.Contains(email.Text, "DAILY RSS DIGEST — 2026-08-29") {
		t.Error("Plain text should carry the date header")
	}
}

func TestDigestEmptyResultsRendersNoNews(t *testing.T) {
	c := NewComposer()
	email, err := c.Digest(nil, "2026-08-29")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(email.HTML, "No news today") {
		t.Error("HTML no-news variant missing")
	}
	if !strings.Contains(email.Text, "No news today") {
		t.Error("Plain text no-news variant missing")
	}
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		body string
		max  int
		want []string
	}{
		{"blank line breaks", "one\n\ntwo\n\nthree", 5, []string{"one", "two", "three"}},
		{"caps at max", "a\n\nb\n\nc\n\nd", 2, []string{"a", "b"}},
		{"joins wrapped lines", "first line\nstill first\n\nsecond", 5, []string{"first line still first", "second"}},
		{"drops empties", "one\n\n\n\ntwo", 5, []string{"one", "two"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitParagraphs(tt.body, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d paragraphs, got: %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Paragraph %d: expected %q, got: %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}
