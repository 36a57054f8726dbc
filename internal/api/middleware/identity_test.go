package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/get-me-through/server/internal/auth"
	"github.com/stretchr/testify/require"
)

type staticVerifier struct {
	access  map[string]*auth.Identity
	refresh map[string]*auth.Identity
}

func (v *staticVerifier) VerifyAccess(token string) *auth.Identity  { return v.access[token] }
func (v *staticVerifier) VerifyRefresh(token string) *auth.Identity { return v.refresh[token] }

func identityEcho(t *testing.T, want *auth.Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := IdentityFrom(r)
		if want == nil {
			require.Nil(t, got)
		} else {
			require.NotNil(t, got)
			require.Equal(t, want.UserID, got.UserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityFromCookie(t *testing.T) {
	ada := &auth.Identity{UserID: "u1", Email: "ada@example.com", Role: auth.RoleUser}
	verifier := &staticVerifier{access: map[string]*auth.Identity{"good": ada}}

	handler := Identity(verifier)(identityEcho(t, ada))
	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "good"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestIdentityFromBearerHeader(t *testing.T) {
	ada := &auth.Identity{UserID: "u1"}
	verifier := &staticVerifier{access: map[string]*auth.Identity{"good": ada}}

	handler := Identity(verifier)(identityEcho(t, ada))
	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestIdentityNeverRejects(t *testing.T) {
	verifier := &staticVerifier{access: map[string]*auth.Identity{}}

	handler := Identity(verifier)(identityEcho(t, nil))
	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshIdentityCarriesToken(t *testing.T) {
	ada := &auth.Identity{UserID: "u1"}
	verifier := &staticVerifier{refresh: map[string]*auth.Identity{"refresh-tok": ada}}

	handler := RefreshIdentity(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, IdentityFrom(r))
		require.Equal(t, "refresh-tok", RefreshTokenFrom(r))
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshCookieName, Value: "refresh-tok"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequireAuthAndAdmin(t *testing.T) {
	admin := &auth.Identity{UserID: "root", Role: auth.RoleAdmin}
	user := &auth.Identity{UserID: "u1", Role: auth.RoleUser}
	verifier := &staticVerifier{access: map[string]*auth.Identity{"admin": admin, "user": user}}

	protected := Identity(verifier)(RequireAdmin("test")(okHandler()))

	cases := []struct {
		token string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{"user", http.StatusForbidden},
		{"admin", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		if tc.token != "" {
			req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: tc.token})
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		require.Equal(t, tc.want, rec.Code)
	}

	authOnly := Identity(verifier)(RequireAuth("test")(okHandler()))
	req := httptest.NewRequest(http.MethodGet, "/registrations", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "user"})
	rec := httptest.NewRecorder()
	authOnly.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
