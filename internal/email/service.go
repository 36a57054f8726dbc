// Package email delivers transactional mail through Resend and records
// every attempt in the email log.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/get-me-through/server/internal/config"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// Log is one row of the delivery trail, kept whether or not the send
// succeeded.
type Log struct {
	ID        int64     `json:"id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Category  string    `json:"category"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type LogStore interface {
	Record(ctx context.Context, log *Log) error
	List(ctx context.Context, limit, offset int) ([]*Log, int, error)
}

type Service struct {
	config config.EmailConfig
	client *resend.Client
	logs   LogStore
	logger zerolog.Logger
}

func NewService(cfg config.EmailConfig, logs LogStore, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
	}

	var client *resend.Client
	if cfg.Enabled {
		client = resend.NewClient(cfg.ResendAPIKey)
	}

	return &Service{
		config: cfg,
		client: client,
		logs:   logs,
		logger: logger.With().Str("component", "email").Logger(),
	}, nil
}

// Send delivers one message and records the attempt. With email disabled
// it logs the message and records a delivered row, so development flows
// behave like production without a provider account.
func (s *Service) Send(ctx context.Context, to, subject, htmlBody, category string) error {
	if err := validateAddress(to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", to).
			Str("subject", subject).
			Str("category", category).
			Msg("email disabled, skipping delivery")
		s.record(ctx, to, subject, category, true, "")
		return nil
	}

	sendErr := s.sendViaResend(ctx, to, subject, htmlBody)
	if sendErr != nil {
		s.record(ctx, to, subject, category, false, sendErr.Error())
		return sendErr
	}

	s.record(ctx, to, subject, category, true, "")
	return nil
}

// Logs pages through the delivery trail.
func (s *Service) Logs(ctx context.Context, limit, offset int) ([]*Log, int, error) {
	return s.logs.List(ctx, limit, offset)
}

func (s *Service) record(ctx context.Context, to, subject, category string, delivered bool, errMsg string) {
	err := s.logs.Record(ctx, &Log{
		Recipient: to,
		Subject:   subject,
		Category:  category,
		Delivered: delivered,
		Error:     errMsg,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("to", to).Msg("failed to record email log")
	}
}

func (s *Service) sendViaResend(ctx context.Context, to, subject, htmlBody string) error {
	if s.client == nil {
		return fmt.Errorf("resend client not initialized")
	}

	params := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn().
				Str("limit", rateLimitErr.Limit).
				Str("remaining", rateLimitErr.Remaining).
				Str("reset", rateLimitErr.Reset).
				Msg("resend rate limit exceeded")
			return fmt.Errorf("email rate limit exceeded (limit: %s, resets in: %s seconds): %w",
				rateLimitErr.Limit, rateLimitErr.Reset, err)
		}
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Info().
		Str("email_id", sent.Id).
		Str("to", to).
		Msg("email sent via Resend")
	return nil
}

// validateAddress rejects malformed addresses and header injection.
func validateAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}
