package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/internal/rate"
	"github.com/MrEthical07/goSessionAuth/middleware"
	"github.com/MrEthical07/goSessionAuth/store"
)

// Engine is the subset of *goSessionAuth.Engine the routes call.
type Engine interface {
	Config() goSessionAuth.Config
	Register(ctx context.Context, in goSessionAuth.RegisterInput) (*goSessionAuth.RegisterResult, error)
	VerifyEmail(ctx context.Context, userID, token string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, in goSessionAuth.LoginInput) (*goSessionAuth.LoginResult, error)
	VerifyLoginTwoFactor(ctx context.Context, in goSessionAuth.VerifyLoginInput) (*goSessionAuth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*goSessionAuth.AuthResult, error)
	Authenticate(ctx context.Context, accessToken string) (*goSessionAuth.Identity, error)
	Logout(ctx context.Context, id goSessionAuth.Identity) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, userID, token, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*goSessionAuth.PasswordChangeResult, error)
	VerifyChangePassword(ctx context.Context, userID, code, newPassword string) error
	ToggleTwoFactor(ctx context.Context, userID string) (store.TwoFactorAction, error)
	VerifyTwoFactor(ctx context.Context, userID, code string) (bool, error)
	GoogleAuth(ctx context.Context, code string) (*goSessionAuth.AuthResult, error)
	Me(ctx context.Context, userID string) (*goSessionAuth.UserView, error)
	ListSessions(ctx context.Context, id goSessionAuth.Identity) ([]goSessionAuth.SessionView, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	RecordRateLimit(ctx context.Context, scope string)
}

// Options configures [NewRouter]. Nil limiters disable the corresponding
// budget; a nil Metrics handler leaves /metrics unrouted.
type Options struct {
	Engine        Engine
	Logger        *zap.Logger
	LoginLimiter  rate.Limiter
	ResendLimiter rate.Limiter
	Metrics       http.Handler
	CORSOrigins   []string
}

// API holds the handler dependencies.
type API struct {
	engine Engine
	cfg    goSessionAuth.Config
	logger *zap.Logger
	dev    bool
}

// NewRouter mounts the /api/v1 routes plus /health and /metrics.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Engine.Config()
	a := &API{
		engine: opts.Engine,
		cfg:    cfg,
		logger: logger.Named("http"),
		dev:    cfg.Security.Development,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(corsMiddleware(opts.CORSOrigins))
	r.Use(middleware.ClientMetadata)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Status: "error", Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Status: "error", Message: "Method not allowed"})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		success(w, http.StatusOK, "OK", nil)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	requireAuth := middleware.RequireAuth(opts.Engine, a.fail)
	limit := func(scope string, l rate.Limiter) func(http.Handler) http.Handler {
		return middleware.RateLimit(middleware.RateLimitOptions{
			Scope:    scope,
			Limiter:  l,
			Recorder: opts.Engine,
			OnError:  a.fail,
			Logger:   a.logger,
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/verify-email/{userId}/{token}", a.verifyEmail)
			r.With(limit("resend", opts.ResendLimiter)).Post("/resend-verification", a.resendVerification)
			r.With(limit("login", opts.LoginLimiter)).Post("/login", a.login)
			r.With(limit("two-factor", opts.LoginLimiter)).Post("/verify-login-two-factor", a.verifyLoginTwoFactor)
			r.Post("/refresh-token", a.refreshToken)
			r.Post("/request-password-reset", a.requestPasswordReset)
			r.Post("/reset-password", a.resetPassword)
			r.Post("/google-auth", a.googleAuth)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", a.logout)
				r.Post("/logout-all-sessions", a.logoutAll)
				r.Post("/change-password", a.changePassword)
				r.Post("/verify-change-password", a.verifyChangePassword)
				r.Post("/verify-change-password-two-factor", a.verifyChangePassword)
				r.Post("/toggle-two-factor", a.toggleTwoFactor)
				r.Post("/verify-two-factor", a.verifyTwoFactor)
			})
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", a.me)
			r.Get("/sessions", a.sessions)
			r.Delete("/sessions/{sessionId}", a.revokeSession)
		})
	})

	return r
}

// corsMiddleware echoes allow-listed origins with credentials enabled.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; ok {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, x-access-token, x-refresh-token")
				h.Set("Access-Control-Expose-Headers", "Authorization, x-access-token, x-refresh-token, Retry-After, X-Request-Id")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
