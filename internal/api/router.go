// Package api assembles the HTTP surface: routes, middleware chain and
// the handlers behind them.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/get-me-through/server/internal/api/handlers"
	"github.com/get-me-through/server/internal/api/middleware"
	"github.com/get-me-through/server/internal/config"
	"github.com/get-me-through/server/internal/domain/categories"
	"github.com/get-me-through/server/internal/domain/otp"
	"github.com/get-me-through/server/internal/domain/payments"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/get-me-through/server/internal/domain/sessions"
	"github.com/get-me-through/server/internal/domain/tickets"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/get-me-through/server/internal/email"
	"github.com/get-me-through/server/internal/metrics"
	"github.com/get-me-through/server/internal/search"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	domevents "github.com/get-me-through/server/internal/domain/events"
)

// Deps carries every constructed service the router wires up.
type Deps struct {
	Config        config.Config
	Logger        zerolog.Logger
	Pool          *pgxpool.Pool
	Users         *users.Service
	Sessions      *sessions.Service
	OTP           *otp.Service
	Events        *domevents.Service
	Registrations *registrations.Service
	Payments      *payments.Service
	Categories    *categories.Service
	Tickets       *tickets.Service
	Email         *email.Service
	Searcher      *search.Searcher
	Store         handlers.Presigner
}

func NewRouter(deps Deps) http.Handler {
	env := deps.Config.Environment

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Sessions, deps.OTP, env, deps.Logger)
	eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Registrations, deps.Users, deps.Store, env)
	regHandler := handlers.NewRegistrationsHandler(deps.Registrations, env)
	paymentsHandler := handlers.NewPaymentsHandler(deps.Payments, env, deps.Logger)
	searchHandler := handlers.NewSearchHandler(deps.Searcher, env)
	categoriesHandler := handlers.NewCategoriesHandler(deps.Categories, env)
	ticketsHandler := handlers.NewTicketsHandler(deps.Tickets, env)
	adminHandler := handlers.NewAdminHandler(deps.Users, deps.Email, env)

	identify := middleware.Identity(deps.Sessions)
	refreshIdentify := middleware.RefreshIdentity(deps.Sessions)
	requireAuth := middleware.RequireAuth(env)
	requireAdmin := middleware.RequireAdmin(env)
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)

	authed := func(h http.HandlerFunc) http.Handler {
		return identify(requireAuth(h))
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return identify(requireAdmin(h))
	}

	mux := http.NewServeMux()

	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz(deps.Pool))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// Account lifecycle. Credential endpoints sit on the login tier.
	mux.Handle("/api/v1/auth/signup", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(http.HandlerFunc(authHandler.Signup)),
	}))
	mux.Handle("/api/v1/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(http.HandlerFunc(authHandler.Login)),
	}))
	mux.Handle("/api/v1/auth/logout", methodMux(map[string]http.Handler{
		http.MethodPost: refreshIdentify(http.HandlerFunc(authHandler.Logout)),
	}))
	mux.Handle("/api/v1/auth/token", methodMux(map[string]http.Handler{
		http.MethodPost: refreshIdentify(http.HandlerFunc(authHandler.Refresh)),
	}))
	mux.Handle("/api/v1/auth/user", methodMux(map[string]http.Handler{
		http.MethodGet:    identify(http.HandlerFunc(authHandler.Me)),
		http.MethodDelete: authed(authHandler.DeleteAccount),
	}))
	mux.Handle("/api/v1/auth/otp", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(http.HandlerFunc(authHandler.ResendOTP)),
	}))
	mux.Handle("/api/v1/auth/otp/verify", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(http.HandlerFunc(authHandler.VerifyAccount)),
	}))
	mux.Handle("/api/v1/auth/password/forgot", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(http.HandlerFunc(authHandler.ForgotPassword)),
	}))
	mux.Handle("/api/v1/auth/password/reset/{token}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(authHandler.CheckResetToken),
	}))
	mux.Handle("/api/v1/auth/password/reset", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(http.HandlerFunc(authHandler.ResetPassword)),
	}))
	mux.Handle("/api/v1/auth/face-verified", methodMux(map[string]http.Handler{
		http.MethodPost: authed(authHandler.FaceVerified),
	}))

	// Event catalog.
	mux.Handle("/api/v1/events", methodMux(map[string]http.Handler{
		http.MethodGet:  identify(http.HandlerFunc(eventsHandler.List)),
		http.MethodPost: authed(eventsHandler.Create),
	}))
	mux.Handle("/api/v1/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(eventsHandler.Get),
		http.MethodPatch:  authed(eventsHandler.Update),
		http.MethodDelete: authed(eventsHandler.Delete),
	}))
	mux.Handle("/api/v1/events/{id}/registrants", methodMux(map[string]http.Handler{
		http.MethodGet: authed(eventsHandler.Registrants),
	}))
	mux.Handle("/api/v1/events/{id}/attendance", methodMux(map[string]http.Handler{
		http.MethodPost: authed(eventsHandler.MarkAttendance),
	}))
	mux.Handle("/api/v1/events/{id}/image", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(eventsHandler.ImageURL),
		http.MethodPost: authed(eventsHandler.ImageUploadURL),
	}))

	// Registration and payment workflow.
	mux.Handle("/api/v1/events/{id}/register", methodMux(map[string]http.Handler{
		http.MethodPost: authed(regHandler.Apply),
	}))
	mux.Handle("/api/v1/events/{id}/registration", methodMux(map[string]http.Handler{
		http.MethodGet: authed(regHandler.Status),
	}))
	mux.Handle("/api/v1/events/{id}/order", methodMux(map[string]http.Handler{
		http.MethodPost: authed(paymentsHandler.CreateOrder),
	}))
	mux.Handle("/api/v1/events/{id}/payment", methodMux(map[string]http.Handler{
		http.MethodGet: authed(paymentsHandler.MyPayment),
	}))
	mux.Handle("/api/v1/registrations", methodMux(map[string]http.Handler{
		http.MethodGet: authed(regHandler.Mine),
	}))
	mux.Handle("/api/v1/payments/verify", methodMux(map[string]http.Handler{
		http.MethodPost: authed(paymentsHandler.VerifyRedirect),
	}))
	mux.Handle("/webhooks/payments", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(paymentsHandler.Webhook),
	}))

	// Search and categories.
	mux.Handle("/api/v1/search", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(searchHandler.Search),
	}))
	mux.Handle("/api/v1/categories", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(categoriesHandler.List),
		http.MethodPost: adminOnly(categoriesHandler.Create),
	}))
	mux.Handle("/api/v1/categories/{id}", methodMux(map[string]http.Handler{
		http.MethodDelete: adminOnly(categoriesHandler.Delete),
	}))

	// Support tickets.
	mux.Handle("/api/v1/tickets", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(ticketsHandler.Open),
		http.MethodGet:  adminOnly(ticketsHandler.List),
	}))
	mux.Handle("/api/v1/tickets/mine", methodMux(map[string]http.Handler{
		http.MethodGet: authed(ticketsHandler.Mine),
	}))
	mux.Handle("/api/v1/tickets/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:   adminOnly(ticketsHandler.Get),
		http.MethodPatch: adminOnly(ticketsHandler.Resolve),
	}))

	// Admin views.
	mux.Handle("/api/v1/admin/users", methodMux(map[string]http.Handler{
		http.MethodGet: adminOnly(adminHandler.ListUsers),
	}))
	mux.Handle("/api/v1/admin/email-logs", methodMux(map[string]http.Handler{
		http.MethodGet: adminOnly(adminHandler.EmailLogs),
	}))

	var handler http.Handler = mux
	handler = middleware.RateLimit(deps.Config.RateLimit)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	return handler
}

func methodMux(byMethod map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := byMethod[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(byMethod))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(byMethod map[string]http.Handler) string {
	methods := make([]string, 0, len(byMethod))
	for method := range byMethod {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
