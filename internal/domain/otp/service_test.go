package otp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/get-me-through/server/internal/domain/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	records map[string]*Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*Record)}
}

func key(email, purpose string) string { return email + "|" + purpose }

func (r *fakeRepo) Get(_ context.Context, email, purpose string) (*Record, error) {
	record, ok := r.records[key(email, purpose)]
	if !ok {
		return nil, ErrNotGenerated
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRepo) GetByCode(_ context.Context, code, purpose string) (*Record, error) {
	for _, record := range r.records {
		if record.Purpose == purpose && record.Code == code {
			copied := *record
			return &copied, nil
		}
	}
	return nil, ErrNotGenerated
}

func (r *fakeRepo) Upsert(_ context.Context, record *Record) error {
	copied := *record
	r.records[key(record.Email, record.Purpose)] = &copied
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, email, purpose string) error {
	delete(r.records, key(email, purpose))
	return nil
}

func (r *fakeRepo) DeleteExpiredResets(_ context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for k, record := range r.records {
		if record.Purpose == PurposePasswordReset && record.CreatedAt.Before(cutoff) {
			delete(r.records, k)
			removed++
		}
	}
	return removed, nil
}

type fakeDirectory struct {
	byEmail   map[string]*users.User
	verified  []string
	passwords map[string]string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		byEmail:   make(map[string]*users.User),
		passwords: make(map[string]string),
	}
}

func (d *fakeDirectory) GetByEmail(_ context.Context, email string) (*users.User, error) {
	user, ok := d.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user, nil
}

func (d *fakeDirectory) MarkVerified(_ context.Context, email string) error {
	d.verified = append(d.verified, email)
	return nil
}

func (d *fakeDirectory) UpdatePassword(_ context.Context, id, password string) error {
	d.passwords[id] = password
	return nil
}

type fakeMailer struct {
	sent []string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _, _ string) error {
	m.sent = append(m.sent, to+": "+subject)
	return nil
}

func newTestService(repo Repository, dir UserDirectory, mailer Mailer) *Service {
	return NewService(repo, dir, mailer, "https://portal.example.com", zerolog.Nop())
}

func TestGenerateVerificationIsIdempotentUntilConsumed(t *testing.T) {
	repo := newFakeRepo()
	dir := newFakeDirectory()
	mailer := &fakeMailer{}
	svc := newTestService(repo, dir, mailer)

	first, err := svc.GenerateVerification(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.Len(t, first, CodeLength)

	second, err := svc.GenerateVerification(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, mailer.sent, 2)
}

func TestGeneratedCodeContainsAnAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode(CodeLength)
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		require.True(t, strings.ContainsAny(code, codeAlphabets), "code %q has no alphabetic character", code)
	}
}

func TestVerifyAccountConsumesCode(t *testing.T) {
	repo := newFakeRepo()
	dir := newFakeDirectory()
	svc := newTestService(repo, dir, &fakeMailer{})

	code, err := svc.GenerateVerification(context.Background(), "ada@example.com")
	require.NoError(t, err)

	require.ErrorIs(t, svc.VerifyAccount(context.Background(), "ada@example.com", "wrong1"), ErrIncorrect)
	require.NoError(t, svc.VerifyAccount(context.Background(), "ada@example.com", code))
	require.Equal(t, []string{"ada@example.com"}, dir.verified)

	// Consumed: replaying the same code must not verify again.
	require.ErrorIs(t, svc.VerifyAccount(context.Background(), "ada@example.com", code), ErrNotGenerated)
}

func TestVerifyAccountWithoutGeneration(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeDirectory(), &fakeMailer{})
	err := svc.VerifyAccount(context.Background(), "nobody@example.com", "ABC123")
	require.ErrorIs(t, err, ErrNotGenerated)
}

func TestStartPasswordResetRotatesToken(t *testing.T) {
	repo := newFakeRepo()
	dir := newFakeDirectory()
	dir.byEmail["ada@example.com"] = &users.User{ID: "u1", Email: "ada@example.com"}
	svc := newTestService(repo, dir, &fakeMailer{})

	first, err := svc.StartPasswordReset(context.Background(), "ada@example.com")
	require.NoError(t, err)
	second, err := svc.StartPasswordReset(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// The rotated-out token is dead, the fresh one redeemable.
	require.ErrorIs(t, svc.ResetTokenValid(context.Background(), first), ErrNotGenerated)
	require.NoError(t, svc.ResetTokenValid(context.Background(), second))
}

func TestStartPasswordResetUnknownUser(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeDirectory(), &fakeMailer{})
	_, err := svc.StartPasswordReset(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, users.ErrNotFound)
}

func TestCompletePasswordReset(t *testing.T) {
	repo := newFakeRepo()
	dir := newFakeDirectory()
	dir.byEmail["ada@example.com"] = &users.User{ID: "u1", Email: "ada@example.com"}
	svc := newTestService(repo, dir, &fakeMailer{})

	token, err := svc.StartPasswordReset(context.Background(), "ada@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.CompletePasswordReset(context.Background(), token, "s3cret-pass"))
	require.Equal(t, "s3cret-pass", dir.passwords["u1"])

	// Single use.
	require.ErrorIs(t, svc.CompletePasswordReset(context.Background(), token, "again"), ErrNotGenerated)
}

func TestExpiredResetTokenRejectedAndSwept(t *testing.T) {
	repo := newFakeRepo()
	dir := newFakeDirectory()
	dir.byEmail["ada@example.com"] = &users.User{ID: "u1", Email: "ada@example.com"}
	svc := newTestService(repo, dir, &fakeMailer{})

	token, err := svc.StartPasswordReset(context.Background(), "ada@example.com")
	require.NoError(t, err)

	record := repo.records[key("ada@example.com", PurposePasswordReset)]
	record.CreatedAt = time.Now().Add(-ResetTokenTTL - time.Hour)

	require.ErrorIs(t, svc.ResetTokenValid(context.Background(), token), ErrExpired)
	require.ErrorIs(t, svc.CompletePasswordReset(context.Background(), token, "pw"), ErrExpired)

	removed, err := svc.SweepExpiredResets(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
	require.Empty(t, repo.records)
}
