package cfg

import "time"

type Cfg struct {
	// OpenAI configuration
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIFallbackModel string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	Recipients   []string

	// Pipeline configuration
	FeedsFile       string
	StateFile       string
	SendHour        int
	LookbackHours   int
	MaxProcessedIDs int
	FetchWorkers    int
	NoNewsBehavior  string
	DryRun          bool
	ForceSend       bool

	// Application metadata
	Timezone  string
	Location  *time.Location
	UserAgent string
	Debug     bool
	Version   string
}
