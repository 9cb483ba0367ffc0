package mail

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/dailybrief/dailybrief/app/llm"
)

const maxParagraphs = 5

// Email is a fully rendered message, ready for sending.
type Email struct {
	Subject string
	Text    string
	HTML    string
}

type articleView struct {
	Headline   string
	URL        string
	ImageURL   string
	Teaser     string
	Paragraphs []string
	SourceLine string
}

var htmlTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:0;background-color:#f4f4f4;font-family:Georgia,serif;">
<div style="max-width:640px;margin:0 auto;padding:24px;background-color:#ffffff;">
<h1 style="font-size:24px;border-bottom:2px solid #222;padding-bottom:8px;">Daily RSS Digest</h1>
<p style="color:#666;font-size:14px;">{{.Date}}</p>
{{if .Articles}}
{{range .Articles}}
<div style="margin:32px 0;">
<h2 style="font-size:20px;margin-bottom:4px;"><a href="{{.URL}}" style="color:#1a1a1a;text-decoration:none;">{{.Headline}}</a></h2>
{{if .ImageURL}}<img src="{{.ImageURL}}" alt="" style="max-width:100%;height:auto;margin:8px 0;">{{end}}
<p style="font-style:italic;color:#444;">{{.Teaser}}</p>
{{range .Paragraphs}}<p style="line-height:1.5;">{{.}}</p>
{{end}}<p style="color:#888;font-size:13px;">{{.SourceLine}}</p>
</div>
<hr style="border:none;border-top:1px solid #ddd;">
{{end}}
{{else}}
<p>No news today. Your feeds were quiet over the last day.</p>
{{end}}
<p style="color:#aaa;font-size:12px;margin-top:32px;">Generated automatically from your feed subscriptions.</p>
</div>
</body>
</html>
`))

// Composer renders rewritten articles into the outgoing digest email.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Digest renders the full digest for a day. An empty result set produces
// the no-news variant.
func (c *Composer) Digest(results []llm.Result, dateStr string) (Email, error) {
	views := make([]articleView, len(results))
	for i, r := range results {
		views[i] = articleView{
			Headline:   r.Headline,
			URL:        r.OriginalURL,
			ImageURL:   r.ImageURL,
			Teaser:     r.Teaser,
			Paragraphs: splitParagraphs(r.Body, maxParagraphs),
			SourceLine: r.SourceLine,
		}
	}

	var html strings.Builder
	err := htmlTemplate.Execute(&html, struct {
		Date     string
		Articles []articleView
	}{Date: dateStr, Articles: views})
	if err != nil {
		return Email{}, fmt.Errorf("failed to render digest template: %w", err)
	}

	return Email{
		Subject: fmt.Sprintf("Daily RSS Digest — %s", dateStr),
		Text:    plainText(views, dateStr),
		HTML:    html.String(),
	}, nil
}

func plainText(views []articleView, dateStr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DAILY RSS DIGEST — %s\n", dateStr)
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	if len(views) == 0 {
		b.WriteString("No news today. Your feeds were quiet over the last day.\n")
		return b.String()
	}

	for i, v := range views {
		fmt.Fprintf(&b, "%d. %s\n", i+1, v.Headline)
		fmt.Fprintf(&b, "   %s\n\n", v.URL)
		if v.Teaser != "" {
			b.WriteString(v.Teaser + "\n\n")
		}
		for j, p := range v.Paragraphs {
			if j >= 2 {
				break
			}
			b.WriteString(p + "\n\n")
		}
		b.WriteString(v.SourceLine + "\n\n")
		b.WriteString(strings.Repeat("-", 40) + "\n\n")
	}

	return b.String()
}

// splitParagraphs breaks body text on blank lines, keeping at most max
// paragraphs so a single long article cannot dominate the digest.
func splitParagraphs(body string, max int) []string {
	var out []string
	for _, p := range strings.Split(body, "\n\n") {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p == "" {
			continue
		}
		out = append(out, p)
		if len(out) == max {
			break
		}
	}
	return out
}
