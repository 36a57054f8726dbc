package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email is already registered")
	ErrWrongPassword = errors.New("incorrect password")
)

// BcryptCost is the cost factor for bcrypt password hashing.
const BcryptCost = 12

// User is an account record. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Name         string
	Email        string
	Mobile       string
	PasswordHash string
	Role         string
	Verified     bool
	FaceVerified bool
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetVerified(ctx context.Context, email string, verified bool) error
	SetFaceVerified(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context) ([]User, error)
}

// Mailer delivers account emails fire-and-forget; failures are logged by
// the caller, never surfaced to the request.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, category string) error
}

type Service struct {
	repo        Repository
	mailer      Mailer
	frontendURL string
	logger      zerolog.Logger
}

func NewService(repo Repository, mailer Mailer, frontendURL string, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		mailer:      mailer,
		frontendURL: frontendURL,
		logger:      logger.With().Str("component", "users").Logger(),
	}
}

type SignupParams struct {
	Name     string
	Email    string
	Mobile   string
	Password string
}

// Signup creates a user account. A second signup with the same email fails
// with ErrEmailTaken and leaves no state behind.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*User, error) {
	existing, err := s.repo.GetByEmail(ctx, params.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, &User{
		Name:         params.Name,
		Email:        params.Email,
		Mobile:       params.Mobile,
		PasswordHash: string(hash),
		Role:         "user",
	})
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf(`Your account has been created in the Get-Me-Through portal.<br>To verify your account click on the link: <a href=%q target="_blank">%s/verify</a>`,
		s.frontendURL+"/verify", s.frontendURL)
	if err := s.mailer.Send(ctx, user.Email, "Account Created | Get-Me-Through", body, "acc_creation"); err != nil {
		s.logger.Error().Err(err).Str("email", user.Email).Msg("failed to send account creation email")
	}

	return user, nil
}

// Authenticate resolves a login attempt. An unknown or soft-deleted email
// fails with ErrNotFound; a bad password for a known email fails with
// ErrWrongPassword. The two are deliberately distinct.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Deleted {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) MarkVerified(ctx context.Context, email string) error {
	return s.repo.SetVerified(ctx, email, true)
}

func (s *Service) MarkFaceVerified(ctx context.Context, email string) error {
	return s.repo.SetFaceVerified(ctx, email)
}

// UpdatePassword re-hashes and stores a new password for the user.
func (s *Service) UpdatePassword(ctx context.Context, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

func (s *Service) SoftDelete(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

// List returns all users for the admin directory view.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}
