package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dailybrief/dailybrief/app/cfg"
	"github.com/dailybrief/dailybrief/app/content"
	"github.com/dailybrief/dailybrief/app/digest"
	"github.com/dailybrief/dailybrief/app/feed"
	"github.com/dailybrief/dailybrief/app/llm"
	"github.com/dailybrief/dailybrief/app/mail"
	"github.com/dailybrief/dailybrief/app/state"
)

func main() {
	os.Exit(run())
}

func run() int {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 2
	}
	if c == nil {
		// Help output was requested and printed.
		return 0
	}

	setupLogging(c)

	slog.Info("Starting dailybrief", "version", c.Version, "dry_run", c.DryRun, "timezone", c.Timezone)

	sources, err := feed.LoadSources(c.FeedsFile)
	if err != nil {
		slog.Error("Failed to load feed sources", "file", c.FeedsFile, "error", err)
		return 2
	}

	store := state.Load(c.StateFile)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	parser := feed.NewParser()
	fetcher := feed.NewFetcher(httpClient, parser, c.UserAgent)
	selector := feed.NewSelector(store, c.Location, c.LookbackHours)
	preparer := content.NewPreparer(httpClient, c.UserAgent)

	provider := llm.NewOpenAIProvider(c.OpenAIAPIKey)
	client := llm.NewClient(provider, c.OpenAIModel, c.OpenAIFallbackModel)
	rewriter := llm.NewRewriter(client)

	sender := mail.NewSender(mail.NewSMTPTransport(c), c)

	runner := digest.NewRunner(c, sources, fetcher, selector, preparer, rewriter, sender, store)

	if err := runner.Run(context.Background()); err != nil {
		slog.Error("Run failed", "error", err)
		return 1
	}

	return 0
}

func setupLogging(c *cfg.Cfg) {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
