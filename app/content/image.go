package content

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dailybrief/dailybrief/app/feed"
)

const imageFetchTimeout = 15 * time.Second

// featuredImage resolves an item's featured image via the fallback cascade:
// media extension hints, then an image enclosure, then the first usable
// <img> inside the entry HTML, then the article page's og:image or
// twitter:image meta tags. Every step is best-effort; the result may be
// empty.
func (p *Preparer) featuredImage(ctx context.Context, item feed.Item) string {
	if len(item.MediaURLs) > 0 {
		return item.MediaURLs[0]
	}

	if item.EnclosureURL != "" && strings.Contains(item.EnclosureType, "image") {
		return item.EnclosureURL
	}

	for _, html := range []string{item.Content, item.Description} {
		if img := firstImage(html); img != "" {
			return img
		}
	}

	if img := p.imageFromArticlePage(ctx, item.Link); img != "" {
		return img
	}

	slog.Debug("No featured image found", "link", item.Link)
	return ""
}

// firstImage returns the first <img> src (or lazy-loading data-src) in an
// HTML fragment, skipping inline data URIs.
func firstImage(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	img := doc.Find("img").First()
	src, ok := img.Attr("src")
	if !ok || src == "" {
		src, _ = img.Attr("data-src")
	}
	if strings.HasPrefix(src, "data:") {
		return ""
	}
	return src
}

func (p *Preparer) imageFromArticlePage(ctx context.Context, articleURL string) string {
	if articleURL == "" {
		return ""
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", articleURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Warn("Failed to fetch article page for image", "url", articleURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	for _, selector := range []string{
		`meta[property="og:image"]`,
		`meta[name="twitter:image"]`,
	} {
		if img, ok := doc.Find(selector).First().Attr("content"); ok && img != "" {
			return absoluteURL(articleURL, img)
		}
	}

	return ""
}

// absoluteURL resolves ref against base for pages that publish relative
// image paths in their meta tags.
func absoluteURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
