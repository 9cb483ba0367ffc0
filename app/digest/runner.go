package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dailybrief/dailybrief/app/cfg"
	"github.com/dailybrief/dailybrief/app/content"
	"github.com/dailybrief/dailybrief/app/feed"
	"github.com/dailybrief/dailybrief/app/llm"
)

type SourceFetcher interface {
	Fetch(ctx context.Context, source feed.Source) ([]feed.Item, error)
}

type ItemSelector interface {
	Run(items []feed.Item, now time.Time) []feed.Item
}

type ArticlePreparer interface {
	Prepare(ctx context.Context, item feed.Item) content.Article
}

type BatchRewriter interface {
	Run(ctx context.Context, articles []content.Article) []llm.Result
}

type DigestSender interface {
	SendDigest(ctx context.Context, results []llm.Result, dateStr string) (bool, error)
}

type Store interface {
	AlreadySentOn(date string) bool
	MarkHandled(sourceURL, itemID string)
	MarkSentDate(date string)
	EvictOldest(sourceURL string, maxKeys int)
	Persist() error
}

// Runner drives one end-to-end digest run: gate check, fetch, select,
// prepare, rewrite, send, commit.
type Runner struct {
	cfg      *cfg.Cfg
	sources  []feed.Source
	fetcher  SourceFetcher
	selector ItemSelector
	preparer ArticlePreparer
	rewriter BatchRewriter
	sender   DigestSender
	store    Store

	now func() time.Time
}

func NewRunner(cfg *cfg.Cfg, sources []feed.Source, fetcher SourceFetcher, selector ItemSelector,
	preparer ArticlePreparer, rewriter BatchRewriter, sender DigestSender, store Store) *Runner {
	return &Runner{
		cfg:      cfg,
		sources:  sources,
		fetcher:  fetcher,
		selector: selector,
		preparer: preparer,
		rewriter: rewriter,
		sender:   sender,
		store:    store,
		now:      time.Now,
	}
}

// Run executes a single pipeline pass. It returns an error only for
// failures that must surface as a failed run; a closed gate or a quiet day
// exits cleanly.
func (r *Runner) Run(ctx context.Context) error {
	logger := slog.With("run_id", uuid.NewString())

	now := r.now().In(r.cfg.Location)
	today := now.Format("2006-01-02")

	if ok, reason := r.gateCheck(now, today); !ok {
		logger.Info("Gate closed, nothing to do", "reason", reason)
		return nil
	}

	logger.Info("Starting digest run", "date", today, "sources", len(r.sources))

	items := r.fetchAll(ctx, logger)
	selected := r.selector.Run(items, now)

	if len(selected) == 0 {
		logger.Info("No new items in the lookback window")
		sent, err := r.sender.SendDigest(ctx, nil, today)
		if err != nil {
			logger.Warn("Failed to deliver no-news digest", "error", err)
			return nil
		}
		if sent || r.cfg.NoNewsBehavior == cfg.NoNewsSkip {
			return r.commit(logger, nil, today)
		}
		return nil
	}

	articles := make([]content.Article, 0, len(selected))
	for _, item := range selected {
		articles = append(articles, r.preparer.Prepare(ctx, item))
	}

	results := r.rewriter.Run(ctx, articles)
	if len(results) == 0 {
		// Every rewrite failed. Record the date so today's run does not
		// repeat, but leave the items unmarked; a later run whose window
		// still covers them gets another attempt.
		logger.Warn("No articles survived rewriting, recording the date only")
		return r.commit(logger, nil, today)
	}

	sent, err := r.sender.SendDigest(ctx, results, today)
	if err != nil {
		logger.Warn("Digest delivery failed, leaving state untouched for a later retry", "error", err)
		return nil
	}
	if !sent {
		logger.Info("Digest not sent, leaving state untouched")
		return nil
	}

	return r.commit(logger, articles, today)
}

// gateCheck decides whether this invocation should produce a digest at
// all. The scheduler fires more often than once a day, so most runs exit
// here.
func (r *Runner) gateCheck(now time.Time, today string) (bool, string) {
	if r.cfg.ForceSend {
		return true, ""
	}
	if now.Hour() < r.cfg.SendHour {
		return false, fmt.Sprintf("before send hour %d", r.cfg.SendHour)
	}
	if r.store.AlreadySentOn(today) {
		return false, "already sent today"
	}
	return true, ""
}

// fetchAll pulls every source concurrently with a bounded worker pool. A
// failing source is logged and skipped so one dead feed cannot block the
// digest. Results are flattened in configured source order, not completion
// order, so downstream sorting stays deterministic for items sharing a
// timestamp.
func (r *Runner) fetchAll(ctx context.Context, logger *slog.Logger) []feed.Item {
	workers := r.cfg.FetchWorkers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	perSource := make([][]feed.Item, len(r.sources))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				source := r.sources[i]
				fetched, err := r.fetcher.Fetch(ctx, source)
				if err != nil {
					logger.Warn("Failed to fetch source", "source", source.Name, "url", source.URL, "error", err)
					continue
				}
				perSource[i] = fetched
			}
		}()
	}

	for i := range r.sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var items []feed.Item
	for _, fetched := range perSource {
		items = append(items, fetched...)
	}

	logger.Info("Fetched all sources", "sources", len(r.sources), "items", len(items))
	return items
}

// commit records the completed day: every article that reached the
// rewrite stage is marked handled whether or not its rewrite succeeded,
// the sent date is set, and stale identifiers are evicted. A persist
// failure is fatal because an unrecorded send would repeat tomorrow.
func (r *Runner) commit(logger *slog.Logger, articles []content.Article, today string) error {
	for _, a := range articles {
		r.store.MarkHandled(a.FeedURL, a.ItemID)
	}
	r.store.MarkSentDate(today)

	seen := make(map[string]bool)
	for _, a := range articles {
		if !seen[a.FeedURL] {
			seen[a.FeedURL] = true
			r.store.EvictOldest(a.FeedURL, r.cfg.MaxProcessedIDs)
		}
	}

	if err := r.store.Persist(); err != nil {
		return fmt.Errorf("failed to persist state after send: %w", err)
	}

	logger.Info("Run committed", "date", today, "items", len(articles))
	return nil
}
