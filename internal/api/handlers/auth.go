package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/get-me-through/server/internal/api/middleware"
	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/auth"
	"github.com/get-me-through/server/internal/domain/otp"
	"github.com/get-me-through/server/internal/domain/sessions"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/rs/zerolog"
)

// AuthHandler serves account lifecycle and session endpoints.
type AuthHandler struct {
	users         *users.Service
	sessions      *sessions.Service
	otp           *otp.Service
	env           string
	secureCookies bool
	logger        zerolog.Logger
}

func NewAuthHandler(userSvc *users.Service, sessionSvc *sessions.Service, otpSvc *otp.Service, env string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:         userSvc,
		sessions:      sessionSvc,
		otp:           otpSvc,
		env:           env,
		secureCookies: env == "production",
		logger:        logger.With().Str("component", "auth_handler").Logger(),
	}
}

type userView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile,omitempty"`
	Role         string `json:"role"`
	Verified     bool   `json:"verified"`
	FaceVerified bool   `json:"faceVerified"`
}

func viewOf(user *users.User) userView {
	return userView{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Mobile:       user.Mobile,
		Role:         user.Role,
		Verified:     user.Verified,
		FaceVerified: user.FaceVerified,
	}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Mobile   string `json:"mobile" validate:"omitempty,min=7,max=15"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Signup creates the account and kicks off email verification.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	user, err := h.users.Signup(r.Context(), users.SignupParams{
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Email already registered", err, h.env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Signup failed", err, h.env)
		return
	}

	if _, err := h.otp.GenerateVerification(r.Context(), user.Email); err != nil {
		h.logger.Error().Err(err).Str("email", user.Email).Msg("failed to start account verification")
	}

	writeJSON(w, http.StatusCreated, viewOf(user))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates the credentials and sets the session cookies.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) || errors.Is(err, users.ErrWrongPassword) {
			problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid credentials", err, h.env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Login failed", err, h.env)
		return
	}

	pair, err := h.sessions.Issue(r.Context(), user)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Login failed", err, h.env)
		return
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, viewOf(user))
}

// Logout revokes the presented refresh token and clears both cookies.
// It succeeds even without a live session so the client always converges
// on logged-out.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	token := middleware.RefreshTokenFrom(r)
	if identity != nil && token != "" {
		if err := h.sessions.Revoke(r.Context(), identity.Email, token); err != nil {
			h.logger.Error().Err(err).Str("email", identity.Email).Msg("failed to revoke refresh token")
		}
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user, or a JSON null for anonymous
// callers. The portal polls this on load, so anonymous is not an error.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	if identity == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), identity.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Lookup failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

// Refresh exchanges a live refresh token for a fresh access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	token := middleware.RefreshTokenFrom(r)
	if identity == nil || token == "" {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Refresh token required", problem.ErrUnauthorized, h.env)
		return
	}

	accessToken, expiresAt, err := h.sessions.RefreshAccess(r.Context(), identity, token)
	if err != nil {
		h.clearSessionCookies(w)
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Session expired", err, h.env)
		return
	}

	h.setCookie(w, auth.AccessCookieName, accessToken, expiresAt)
	writeJSON(w, http.StatusOK, map[string]any{"expiresAt": expiresAt})
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6"`
}

// VerifyAccount consumes the emailed OTP and marks the account verified.
func (h *AuthHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	if err := h.otp.VerifyAccount(r.Context(), req.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrIncorrect):
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "OTP is wrong", err, h.env)
		case errors.Is(err, otp.ErrNotGenerated):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "No OTP was generated", err, h.env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Verification failed", err, h.env)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendOTP re-sends the live verification code.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	if _, err := h.otp.GenerateVerification(r.Context(), req.Email); err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Could not send OTP", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// ForgotPassword mails a reset link. Unknown emails get the same response
// as known ones so the endpoint does not leak which accounts exist.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	if _, err := h.otp.StartPasswordReset(r.Context(), req.Email); err != nil && !errors.Is(err, users.ErrNotFound) {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Could not start reset", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// CheckResetToken reports whether a reset link is still redeemable.
func (h *AuthHandler) CheckResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if err := h.otp.ResetTokenValid(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, otp.ErrExpired):
			problem.Write(w, r, http.StatusGone, problem.TypeNotFound, "Reset link expired", err, h.env)
		case errors.Is(err, otp.ErrNotGenerated):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Unknown reset link", err, h.env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Check failed", err, h.env)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "valid"})
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ResetPassword consumes a reset token and stores the new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	if err := h.otp.CompletePasswordReset(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, otp.ErrExpired):
			problem.Write(w, r, http.StatusGone, problem.TypeNotFound, "Reset link expired", err, h.env)
		case errors.Is(err, otp.ErrNotGenerated), errors.Is(err, users.ErrNotFound):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Unknown reset link", err, h.env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Reset failed", err, h.env)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// FaceVerified records that the caller passed the face verification step.
func (h *AuthHandler) FaceVerified(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	if identity == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", problem.ErrUnauthorized, h.env)
		return
	}

	if err := h.users.MarkFaceVerified(r.Context(), identity.Email); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Account not found", err, h.env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Update failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "faceVerified"})
}

// DeleteAccount soft-deletes the caller's account and ends the session.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	if identity == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", problem.ErrUnauthorized, h.env)
		return
	}

	if err := h.users.SoftDelete(r.Context(), identity.UserID); err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Delete failed", err, h.env)
		return
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, pair sessions.TokenPair) {
	h.setCookie(w, auth.AccessCookieName, pair.AccessToken, pair.ExpiresAt)
	// Refresh cookies outlive the access token; revocation, not expiry,
	// ends them server side.
	h.setCookie(w, auth.RefreshCookieName, pair.RefreshToken, time.Now().Add(30*24*time.Hour))
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	h.setCookie(w, auth.AccessCookieName, "", time.Unix(0, 0))
	h.setCookie(w, auth.RefreshCookieName, "", time.Unix(0, 0))
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
