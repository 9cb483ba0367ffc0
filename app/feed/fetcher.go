package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dailybrief/dailybrief/app/retry"
)

const fetchTimeout = 30 * time.Second

// statusError is a non-2xx HTTP response, carried through the retry policy
// so the transient classes (429, 5xx) can be told apart from permanent ones.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.status, http.StatusText(e.status))
}

// Fetcher retrieves and parses one feed per call. Retrieval retries only on
// transient failures: request timeouts, 5xx responses and rate-limit
// signals. Other 4xx responses and post-retrieval parse failures fail
// immediately.
type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
	policy     retry.Policy
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
		policy: retry.Policy{
			MaxAttempts: 3,
			Base:        2 * time.Second,
			Max:         30 * time.Second,
			Retryable:   isTransient,
		},
	}
}

func (f *Fetcher) Fetch(ctx context.Context, source Source) ([]Item, error) {
	var data []byte
	err := f.policy.Do(ctx, func() error {
		var err error
		data, err = f.get(ctx, source.URL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", source.URL, err)
	}

	items, err := f.parser.Run(data, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", source.URL, err)
	}

	return items, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests ||
			se.status == http.StatusRequestTimeout ||
			se.status >= 500
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
