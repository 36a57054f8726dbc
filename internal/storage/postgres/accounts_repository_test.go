package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/get-me-through/server/internal/domain/categories"
	"github.com/get-me-through/server/internal/domain/otp"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	usersRepo := repo.Users()

	_, err = usersRepo.Create(ctx, &users.User{
		Name: "Ada", Email: "ada@example.com", PasswordHash: "x", Role: "user",
	})
	require.NoError(t, err)

	_, err = usersRepo.Create(ctx, &users.User{
		Name: "Imposter", Email: "ada@example.com", PasswordHash: "y", Role: "user",
	})
	require.ErrorIs(t, err, users.ErrEmailTaken)
}

func TestUserRepositorySoftDeleteHidesAccount(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	usersRepo := repo.Users()

	created, err := usersRepo.Create(ctx, &users.User{
		Name: "Ada", Email: "ada@example.com", PasswordHash: "x", Role: "user",
	})
	require.NoError(t, err)

	require.NoError(t, usersRepo.SoftDelete(ctx, created.ID))

	_, err = usersRepo.GetByEmail(ctx, "ada@example.com")
	require.ErrorIs(t, err, users.ErrNotFound)

	_, err = usersRepo.GetByID(ctx, created.ID)
	require.ErrorIs(t, err, users.ErrNotFound)
}

func TestSessionRepositoryTokenLifecycle(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	insertUser(t, ctx, pool, "Ada", "ada@example.com")

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	sessionsRepo := repo.Sessions()

	require.NoError(t, sessionsRepo.Append(ctx, "ada@example.com", "tok-laptop"))
	require.NoError(t, sessionsRepo.Append(ctx, "ada@example.com", "tok-phone"))

	found, err := sessionsRepo.Contains(ctx, "ada@example.com", "tok-laptop")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, sessionsRepo.Remove(ctx, "ada@example.com", "tok-laptop"))

	found, err = sessionsRepo.Contains(ctx, "ada@example.com", "tok-laptop")
	require.NoError(t, err)
	require.False(t, found)

	// The other device's session survives the revocation.
	found, err = sessionsRepo.Contains(ctx, "ada@example.com", "tok-phone")
	require.NoError(t, err)
	require.True(t, found)
}

func TestOTPRepositoryUpsertReplacesCode(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	otpRepo := repo.OTP()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, otpRepo.Upsert(ctx, &otp.Record{
		Email: "ada@example.com", Purpose: otp.PurposeAccountVerify, Code: "A12345", CreatedAt: now,
	}))
	require.NoError(t, otpRepo.Upsert(ctx, &otp.Record{
		Email: "ada@example.com", Purpose: otp.PurposeAccountVerify, Code: "B67890", CreatedAt: now,
	}))

	record, err := otpRepo.Get(ctx, "ada@example.com", otp.PurposeAccountVerify)
	require.NoError(t, err)
	require.Equal(t, "B67890", record.Code)

	_, err = otpRepo.Get(ctx, "ada@example.com", otp.PurposePasswordReset)
	require.ErrorIs(t, err, otp.ErrNotGenerated)
}

func TestOTPRepositoryDeleteExpiredResets(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	otpRepo := repo.OTP()

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, otpRepo.Upsert(ctx, &otp.Record{
		Email: "stale@example.com", Purpose: otp.PurposePasswordReset, Code: "deadbeef", CreatedAt: old,
	}))
	require.NoError(t, otpRepo.Upsert(ctx, &otp.Record{
		Email: "fresh@example.com", Purpose: otp.PurposePasswordReset, Code: "cafebabe", CreatedAt: time.Now(),
	}))

	deleted, err := otpRepo.DeleteExpiredResets(ctx, time.Now().Add(-otp.ResetTokenTTL))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = otpRepo.Get(ctx, "fresh@example.com", otp.PurposePasswordReset)
	require.NoError(t, err)
}

func TestCategoryRepositoryDuplicateNameCaseInsensitive(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	categoriesRepo := repo.Categories()

	_, err = categoriesRepo.Create(ctx, "Tech")
	require.NoError(t, err)

	_, err = categoriesRepo.Create(ctx, "tech")
	require.ErrorIs(t, err, categories.ErrDuplicate)
}

func TestRegistrationRepositoryUniquePair(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	owner := insertUser(t, ctx, pool, "Owner", "owner@example.com")
	attendee := insertUser(t, ctx, pool, "Attendee", "attendee@example.com")
	category := insertCategory(t, ctx, pool, "Tech")
	eventID := insertEvent(t, ctx, pool, owner, category, "Meetup", 0, 0)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	regRepo := repo.Registrations()

	require.NoError(t, regRepo.Create(ctx, &registrations.Registration{
		ID: ulid.Make().String(), UserID: attendee, EventID: eventID,
	}))

	err = regRepo.Create(ctx, &registrations.Registration{
		ID: ulid.Make().String(), UserID: attendee, EventID: eventID,
	})
	require.ErrorIs(t, err, registrations.ErrAlreadyRegistered)
}

func TestRegistrationRepositorySetAttended(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	owner := insertUser(t, ctx, pool, "Owner", "owner@example.com")
	first := insertUser(t, ctx, pool, "First", "first@example.com")
	second := insertUser(t, ctx, pool, "Second", "second@example.com")
	category := insertCategory(t, ctx, pool, "Tech")
	eventID := insertEvent(t, ctx, pool, owner, category, "Meetup", 0, 0)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	regRepo := repo.Registrations()

	require.NoError(t, regRepo.Create(ctx, &registrations.Registration{ID: ulid.Make().String(), UserID: first, EventID: eventID}))
	require.NoError(t, regRepo.Create(ctx, &registrations.Registration{ID: ulid.Make().String(), UserID: second, EventID: eventID}))

	updated, err := regRepo.SetAttended(ctx, eventID, []string{first, second, "nope"}, true)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated)

	roster, total, err := regRepo.ListRegistrants(ctx, eventID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	for _, registrant := range roster {
		require.True(t, registrant.Attended)
	}
}

func TestRegistrationRepositoryRosterCarriesVerificationFlags(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	owner := insertUser(t, ctx, pool, "Owner", "owner@example.com")
	checked := insertUser(t, ctx, pool, "Checked", "checked@example.com")
	unchecked := insertUser(t, ctx, pool, "Unchecked", "unchecked@example.com")
	category := insertCategory(t, ctx, pool, "Tech")
	eventID := insertEvent(t, ctx, pool, owner, category, "Meetup", 0, 0)

	_, err := pool.Exec(ctx, `
UPDATE users SET verified = TRUE, face_verified = TRUE WHERE id = $1
`, checked)
	require.NoError(t, err)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	regRepo := repo.Registrations()

	require.NoError(t, regRepo.Create(ctx, &registrations.Registration{ID: ulid.Make().String(), UserID: checked, EventID: eventID}))
	require.NoError(t, regRepo.Create(ctx, &registrations.Registration{ID: ulid.Make().String(), UserID: unchecked, EventID: eventID}))

	roster, total, err := regRepo.ListRegistrants(ctx, eventID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	byUser := make(map[string]*registrations.Registrant, len(roster))
	for _, registrant := range roster {
		byUser[registrant.UserID] = registrant
	}
	require.True(t, byUser[checked].Verified)
	require.True(t, byUser[checked].FaceVerified)
	require.False(t, byUser[unchecked].Verified)
	require.False(t, byUser[unchecked].FaceVerified)
}
