package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/dailybrief/dailybrief/app/cfg"
	"github.com/dailybrief/dailybrief/app/llm"
	"github.com/dailybrief/dailybrief/app/retry"
)

// Transport delivers a rendered email to its recipients.
type Transport interface {
	Deliver(ctx context.Context, email Email) error
}

// SMTPTransport delivers email over SMTP with implicit TLS.
type SMTPTransport struct {
	host     string
	port     int
	user     string
	password string
	to       []string
}

func NewSMTPTransport(cfg *cfg.Cfg) *SMTPTransport {
	return &SMTPTransport{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		to:       cfg.Recipients,
	}
}

func (t *SMTPTransport) Deliver(ctx context.Context, email Email) error {
	msg := gomail.NewMsg()
	if err := msg.From(t.user); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(t.to...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, email.Text)
	msg.AddAlternativeString(gomail.TypeTextHTML, email.HTML)

	client, err := gomail.NewClient(t.host,
		gomail.WithPort(t.port),
		gomail.WithSSL(),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(t.user),
		gomail.WithPassword(t.password))
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Sender composes and delivers the daily digest.
type Sender struct {
	transport      Transport
	composer       *Composer
	policy         retry.Policy
	dryRun         bool
	noNewsBehavior string
	recipients     []string
}

func NewSender(transport Transport, cfg *cfg.Cfg) *Sender {
	return &Sender{
		transport: transport,
		composer:  NewComposer(),
		policy: retry.Policy{
			MaxAttempts: 3,
			Base:        5 * time.Second,
			Max:         60 * time.Second,
			Retryable: func(err error) bool {
				return !isAuthErr(err)
			},
		},
		dryRun:         cfg.DryRun,
		noNewsBehavior: cfg.NoNewsBehavior,
		recipients:     cfg.Recipients,
	}
}

// SendDigest renders and delivers the digest for a day. It reports whether
// an email went out. An empty result set consults the no-news behavior: the
// skip setting suppresses delivery entirely.
func (s *Sender) SendDigest(ctx context.Context, results []llm.Result, dateStr string) (bool, error) {
	if len(results) == 0 && s.noNewsBehavior == cfg.NoNewsSkip {
		slog.Info("No articles and no-news behavior is skip, not sending")
		return false, nil
	}

	email, err := s.composer.Digest(results, dateStr)
	if err != nil {
		return false, err
	}

	if s.dryRun {
		slog.Info("Dry run, skipping delivery",
			"subject", email.Subject,
			"articles", len(results),
			"recipients", len(s.recipients))
		fmt.Println(email.Text)
		return true, nil
	}

	err = s.policy.Do(ctx, func() error {
		return s.transport.Deliver(ctx, email)
	})
	if err != nil {
		return false, fmt.Errorf("digest delivery failed: %w", err)
	}

	slog.Info("Digest sent", "subject", email.Subject, "articles", len(results), "recipients", len(s.recipients))
	return true, nil
}

// isAuthErr spots SMTP authentication failures, which will not clear up on
// retry.
func isAuthErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "535") || strings.Contains(msg, "authentication")
}
