// Package storage defines the persistence boundary. Implementations
// live in subpackages; postgres is the only one in production use.
package storage

import (
	"context"

	"github.com/get-me-through/server/internal/domain/categories"
	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/otp"
	"github.com/get-me-through/server/internal/domain/payments"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/get-me-through/server/internal/domain/sessions"
	"github.com/get-me-through/server/internal/domain/tickets"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/get-me-through/server/internal/email"
)

type Repository interface {
	Users() users.Repository
	Sessions() sessions.Repository
	OTP() otp.Repository
	Events() events.Repository
	Registrations() registrations.Repository
	Payments() payments.Repository
	Categories() categories.Repository
	Tickets() tickets.Repository
	EmailLogs() email.LogStore

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
