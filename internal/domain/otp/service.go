// Package otp implements one-time codes for account verification and the
// salted-hash tokens used for password reset links.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/get-me-through/server/internal/domain/users"
	"github.com/rs/zerolog"
)

const (
	PurposeAccountVerify = "acc_verify"
	PurposePasswordReset = "pass_reset"

	// CodeLength is the fixed length of verification codes.
	CodeLength = 6

	// ResetTokenTTL bounds how long a password reset token is redeemable.
	ResetTokenTTL = 24 * time.Hour
)

var (
	ErrNotGenerated = errors.New("no OTP was generated")
	ErrIncorrect    = errors.New("OTP is wrong")
	ErrExpired      = errors.New("reset token expired")
)

// Record is a live one-time code. At most one exists per (email, purpose).
type Record struct {
	Email     string
	Purpose   string
	Code      string
	CreatedAt time.Time
}

type Repository interface {
	Get(ctx context.Context, email, purpose string) (*Record, error)
	GetByCode(ctx context.Context, code, purpose string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	Delete(ctx context.Context, email, purpose string) error
	DeleteExpiredResets(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserDirectory is the slice of the user service the OTP flows need.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	MarkVerified(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, id, password string) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, category string) error
}

type Service struct {
	repo        Repository
	users       UserDirectory
	mailer      Mailer
	frontendURL string
	logger      zerolog.Logger
}

func NewService(repo Repository, users UserDirectory, mailer Mailer, frontendURL string, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		mailer:      mailer,
		frontendURL: frontendURL,
		logger:      logger.With().Str("component", "otp").Logger(),
	}
}

// GenerateVerification returns the live verification code for the email,
// creating one if absent. Calling it twice without consumption returns the
// identical code, so re-sent emails always carry the same OTP.
func (s *Service) GenerateVerification(ctx context.Context, email string) (string, error) {
	record, err := s.repo.Get(ctx, email, PurposeAccountVerify)
	if err != nil && !errors.Is(err, ErrNotGenerated) {
		return "", fmt.Errorf("load otp: %w", err)
	}

	var code string
	if record != nil {
		code = record.Code
	} else {
		code, err = generateCode(CodeLength)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		if err := s.repo.Upsert(ctx, &Record{
			Email:     email,
			Purpose:   PurposeAccountVerify,
			Code:      code,
			CreatedAt: time.Now(),
		}); err != nil {
			return "", fmt.Errorf("store otp: %w", err)
		}
	}

	body := fmt.Sprintf("Your account verification OTP is: %s", code)
	if err := s.mailer.Send(ctx, email, "Account Verification OTP | Get-Me-Through", body, PurposeAccountVerify); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to send verification otp")
	}

	return code, nil
}

// VerifyAccount consumes a verification code: on match the record is
// deleted and the user marked verified, so a repeat attempt fails with
// ErrNotGenerated.
func (s *Service) VerifyAccount(ctx context.Context, email, candidate string) error {
	record, err := s.repo.Get(ctx, email, PurposeAccountVerify)
	if err != nil {
		return err
	}
	if record.Code != candidate {
		return ErrIncorrect
	}

	if err := s.users.MarkVerified(ctx, email); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if err := s.repo.Delete(ctx, email, PurposeAccountVerify); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// StartPasswordReset issues a reset token for the email and mails the
// reset link. A pending reset for the same email is rotated, not reused.
func (s *Service) StartPasswordReset(ctx context.Context, email string) (string, error) {
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		return "", err
	}

	token, err := generateResetToken(email)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.repo.Upsert(ctx, &Record{
		Email:     email,
		Purpose:   PurposePasswordReset,
		Code:      token,
		CreatedAt: time.Now(),
	}); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/forget/%s", s.frontendURL, token)
	body := fmt.Sprintf(`To reset your password click this link: <a href=%q target="_blank">%s</a>`, link, link)
	if err := s.mailer.Send(ctx, email, "Password Reset Link | Get-Me-Through", body, PurposePasswordReset); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to send reset link")
	}

	return token, nil
}

// ResetTokenValid probes a reset token without consuming it, for the
// reset-form page to decide whether to render.
func (s *Service) ResetTokenValid(ctx context.Context, token string) error {
	record, err := s.repo.GetByCode(ctx, token, PurposePasswordReset)
	if err != nil {
		return err
	}
	if time.Since(record.CreatedAt) > ResetTokenTTL {
		return ErrExpired
	}
	return nil
}

// CompletePasswordReset consumes a reset token and stores the new password.
func (s *Service) CompletePasswordReset(ctx context.Context, token, password string) error {
	record, err := s.repo.GetByCode(ctx, token, PurposePasswordReset)
	if err != nil {
		return err
	}
	if time.Since(record.CreatedAt) > ResetTokenTTL {
		return ErrExpired
	}

	user, err := s.users.GetByEmail(ctx, record.Email)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, password); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, record.Email, PurposePasswordReset); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	return nil
}

// SweepExpiredResets deletes reset records older than the TTL; run
// periodically from the job scheduler.
func (s *Service) SweepExpiredResets(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredResets(ctx, time.Now().Add(-ResetTokenTTL))
}

const (
	codeAlphabets = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	codeDigits    = "0123456789"
)

// generateCode builds a fixed-length code with at least one alphabetic
// character and the rest digits, matching the format users already know
// from the portal emails. Characters come from crypto/rand.
func generateCode(length int) (string, error) {
	out := make([]byte, 0, length)
	alphabetCount := 0

	for i := 0; i < length; i++ {
		coin, err := randomInt(2)
		if err != nil {
			return "", err
		}
		mustBeAlpha := i == length-1 && alphabetCount == 0
		if mustBeAlpha || (alphabetCount < 2 && coin == 0) {
			idx, err := randomInt(len(codeAlphabets))
			if err != nil {
				return "", err
			}
			out = append(out, codeAlphabets[idx])
			alphabetCount++
		} else {
			idx, err := randomInt(len(codeDigits))
			if err != nil {
				return "", err
			}
			out = append(out, codeDigits[idx])
		}
	}
	return string(out), nil
}

// generateResetToken hashes date + email + random salt into an opaque hex
// token suitable for a one-time URL segment.
func generateResetToken(email string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	date := time.Now().UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(date + email + hex.EncodeToString(salt)))
	return hex.EncodeToString(sum[:]), nil
}

func randomInt(n int) (int, error) {
	value, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(value.Int64()), nil
}
