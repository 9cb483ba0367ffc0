package cfg

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	if Version != "" {
		return Version
	}
	return "unknown"
}

const (
	NoNewsSkip      = "skip"
	NoNewsSendEmpty = "send_empty"
)

type rawCfg struct {
	// OpenAI configuration
	OpenAIAPIKey        string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key (required)" required:"true"`
	OpenAIModel         string `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-5-mini" description:"Primary model for article rewriting"`
	OpenAIFallbackModel string `long:"openai-fallback-model" env:"OPENAI_FALLBACK_MODEL" default:"gpt-4.1-nano" description:"Fallback model when the primary model fails"`

	// SMTP configuration
	SMTPHost     string `long:"smtp-host" env:"SMTP_HOST" default:"smtp.gmail.com" description:"SMTP server host"`
	SMTPPort     int    `long:"smtp-port" env:"SMTP_PORT" default:"465" description:"SMTP server port (SSL)"`
	SMTPUser     string `long:"smtp-user" env:"SMTP_USER" description:"SMTP user / sender address (required)" required:"true"`
	SMTPPassword string `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password or app password (required)" required:"true"`
	Recipients   string `long:"recipients" env:"RECIPIENTS" description:"Comma-separated recipient addresses (required)" required:"true"`

	// Pipeline configuration
	FeedsFile       string `long:"feeds-file" env:"FEEDS_FILE" default:"./feeds.yml" description:"YAML file listing feed sources"`
	StateFile       string `long:"state-file" env:"STATE_FILE" default:"./state.json" description:"JSON file tracking processed items and last send date"`
	SendHour        int    `long:"send-hour" env:"SEND_HOUR" default:"17" description:"Local hour of day (0-23) after which the digest may be sent"`
	LookbackHours   int    `long:"lookback-hours" env:"LOOKBACK_HOURS" default:"24" description:"Only include items published within this many hours"`
	MaxProcessedIDs int    `long:"max-processed-ids" env:"MAX_PROCESSED_IDS" default:"1000" description:"Maximum processed IDs kept per feed in the state file"`
	FetchWorkers    int    `long:"fetch-workers" env:"FETCH_WORKERS" default:"4" description:"Number of concurrent feed fetches"`
	NoNewsBehavior  string `long:"no-news-behavior" env:"NO_NEWS_BEHAVIOR" default:"skip" description:"What to do on a day with no items: skip or send_empty"`
	DryRun          bool   `long:"dry-run" env:"DRY_RUN" description:"Run the full pipeline but do not send email"`
	ForceSend       bool   `long:"force-send" env:"FORCE_SEND" description:"Bypass the send-hour and already-sent gates"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"dailybrief/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TIMEZONE" default:"America/Chicago" description:"Timezone for the send-hour gate and window checks"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses configuration from command-line flags and environment
// variables. It returns (nil, nil) when help was requested. Missing required
// secrets surface as an error before any state is touched.
func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	recipients := splitRecipients(raw.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("RECIPIENTS must contain at least one address")
	}

	if raw.SendHour < 0 || raw.SendHour > 23 {
		return nil, fmt.Errorf("send hour must be between 0 and 23, got %d", raw.SendHour)
	}
	if raw.LookbackHours <= 0 {
		return nil, fmt.Errorf("lookback hours must be positive, got %d", raw.LookbackHours)
	}

	loc, err := time.LoadLocation(raw.Timezone)
	if err != nil {
		slog.Warn("Invalid timezone, falling back to UTC", "timezone", raw.Timezone, "error", err)
		raw.Timezone = "UTC"
		loc = time.UTC
	}

	return &Cfg{
		OpenAIAPIKey:        raw.OpenAIAPIKey,
		OpenAIModel:         raw.OpenAIModel,
		OpenAIFallbackModel: raw.OpenAIFallbackModel,
		SMTPHost:            raw.SMTPHost,
		SMTPPort:            raw.SMTPPort,
		SMTPUser:            raw.SMTPUser,
		SMTPPassword:        raw.SMTPPassword,
		Recipients:          recipients,
		FeedsFile:           raw.FeedsFile,
		StateFile:           raw.StateFile,
		SendHour:            raw.SendHour,
		LookbackHours:       raw.LookbackHours,
		MaxProcessedIDs:     raw.MaxProcessedIDs,
		FetchWorkers:        raw.FetchWorkers,
		NoNewsBehavior:      normalizeNoNewsBehavior(raw.NoNewsBehavior),
		DryRun:              raw.DryRun,
		ForceSend:           raw.ForceSend,
		Timezone:            raw.Timezone,
		Location:            loc,
		UserAgent:           raw.UserAgent,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}, nil
}

func splitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func normalizeNoNewsBehavior(v string) string {
	switch v {
	case NoNewsSkip, NoNewsSendEmpty:
		return v
	default:
		slog.Warn("Invalid no-news behavior, using skip", "value", v)
		return NoNewsSkip
	}
}
