package users

import (
	"context"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	byEmail map[string]*User
	nextID  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byEmail: make(map[string]*User)}
}

func (r *fakeRepo) Create(_ context.Context, user *User) (*User, error) {
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, ErrEmailTaken
	}
	r.nextID++
	copied := *user
	copied.ID = "user-" + strconv.Itoa(r.nextID)
	r.byEmail[user.Email] = &copied
	return &copied, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*User, error) {
	for _, user := range r.byEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeRepo) SetVerified(_ context.Context, email string, verified bool) error {
	user, ok := r.byEmail[email]
	if !ok {
		return ErrNotFound
	}
	user.Verified = verified
	return nil
}

func (r *fakeRepo) SetFaceVerified(_ context.Context, email string) error {
	user, ok := r.byEmail[email]
	if !ok {
		return ErrNotFound
	}
	user.FaceVerified = true
	return nil
}

func (r *fakeRepo) UpdatePassword(_ context.Context, id, hash string) error {
	for _, user := range r.byEmail {
		if user.ID == id {
			user.PasswordHash = hash
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) SoftDelete(_ context.Context, id string) error {
	for _, user := range r.byEmail {
		if user.ID == id {
			user.Deleted = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) List(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(r.byEmail))
	for _, user := range r.byEmail {
		out = append(out, *user)
	}
	return out, nil
}

type fakeMailer struct {
	sent []string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _, category string) error {
	m.sent = append(m.sent, to+"|"+subject+"|"+category)
	return nil
}

func newTestService() (*Service, *fakeRepo, *fakeMailer) {
	repo := newFakeRepo()
	mailer := &fakeMailer{}
	return NewService(repo, mailer, "http://localhost:5173", zerolog.Nop()), repo, mailer
}

func TestSignupSucceedsOncePerEmail(t *testing.T) {
	svc, _, mailer := newTestService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupParams{Name: "Ada", Email: "ada@example.com", Password: "hunter2secret"})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "user", user.Role)
	require.False(t, user.Verified)
	require.Len(t, mailer.sent, 1)

	_, err = svc.Signup(ctx, SignupParams{Name: "Ada", Email: "ada@example.com", Password: "hunter2secret"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignupHashesPassword(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.Signup(context.Background(), SignupParams{Name: "Ada", Email: "ada@example.com", Password: "hunter2secret"})
	require.NoError(t, err)

	stored := repo.byEmail["ada@example.com"]
	require.NotEqual(t, "hunter2secret", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2secret")))
}

func TestAuthenticateDistinguishesUnknownEmailFromWrongPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupParams{Name: "Ada", Email: "ada@example.com", Password: "hunter2secret"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter2secret")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrWrongPassword)

	user, err := svc.Authenticate(ctx, "ada@example.com", "hunter2secret")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
}

func TestAuthenticateRejectsSoftDeletedUser(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupParams{Name: "Ada", Email: "ada@example.com", Password: "hunter2secret"})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, user.ID))

	_, err = svc.Authenticate(ctx, "ada@example.com", "hunter2secret")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePasswordRehashes(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupParams{Name: "Ada", Email: "ada@example.com", Password: "hunter2secret"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdatePassword(ctx, user.ID, "new-password-123"))

	stored := repo.byEmail["ada@example.com"]
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new-password-123")))
}

func TestMarkVerified(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupParams{Name: "Ada", Email: "ada@example.com", Password: "hunter2secret"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkVerified(ctx, "ada@example.com"))
	require.True(t, repo.byEmail["ada@example.com"].Verified)
}
