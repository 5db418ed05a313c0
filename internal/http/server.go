package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"sheetexpense/internal/auth"
	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/middleware/ratelimit"
	"sheetexpense/internal/middleware/security"
	"sheetexpense/internal/middleware/trace"
	"sheetexpense/internal/storage"
	appweb "sheetexpense/web"

	"github.com/alexedwards/scs/v2"
)

// ExpenseAPI is the expense use-case surface.
type ExpenseAPI interface {
	Add(ctx context.Context, userID int64, e core.Expense) error
	Query(ctx context.Context, userID int64, year, month int) ([]core.ExpenseRecord, error)
	Summary(ctx context.Context, userID int64, year int) (core.YearSummary, error)
}

// CategoryAPI is the category use-case surface.
type CategoryAPI interface {
	List(ctx context.Context, userID int64) ([]core.Category, error)
	Add(ctx context.Context, userID int64, name string) (core.Category, error)
	Update(ctx context.Context, userID int64, id int, name string) (core.Category, error)
	Delete(ctx context.Context, userID int64, id int) error
}

// Authenticator drives the Google consent round trip.
type Authenticator interface {
	NewLogin() auth.LoginRequest
	CompleteLogin(ctx context.Context, users auth.Users, code, verifier string) (storage.User, error)
}

// UserDirectory stores and resolves users.
type UserDirectory interface {
	auth.Users
	GetUser(ctx context.Context, id int64) (storage.User, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the process-scoped collaborators of the server.
type Deps struct {
	Expenses   ExpenseAPI
	Categories CategoryAPI
	Auth       Authenticator
	Users      UserDirectory
	Sessions   *scs.SessionManager
	DB         Pinger
	Logger     *log.Logger

	Production         bool
	RateLimitPerMinute int
	// TrustedProxies are CIDRs allowed to set forwarding headers.
	TrustedProxies []string
}

type Server struct {
	http.Server
	templates  *template.Template
	expenses   ExpenseAPI
	categories CategoryAPI
	auth       Authenticator
	users      UserDirectory
	sessions   *scs.SessionManager
	db         Pinger
	logger     *log.Logger
	production bool
	started    time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range d.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		expenses:         d.Expenses,
		categories:       d.Categories,
		auth:             d.Auth,
		users:            d.Users,
		sessions:         d.Sessions,
		db:               d.DB,
		logger:           logger,
		production:       d.Production,
		started:          time.Now(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.DefaultHeadersConfig()
	headers.ForceHSTS = d.Production

	var h http.Handler = mux
	h = s.sessions.LoadAndSave(h)
	h = s.securityDetector.Middleware(h)
	h = security.NewHeadersMiddleware(headers).Middleware(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = log.Middleware(logger)(h)
	h = s.traceMiddleware.Middleware(h)

	s.Addr = addr
	s.Handler = h
	s.ReadHeaderTimeout = 10 * time.Second
	s.ReadTimeout = 30 * time.Second
	s.WriteTimeout = 60 * time.Second
	s.IdleTimeout = 120 * time.Second
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)

	mux.HandleFunc("GET /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/google/callback", s.handleCallback)
	mux.HandleFunc("GET /auth/logout", s.handleLogout)

	api := func(h http.HandlerFunc) http.Handler {
		limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited,
			http.MethodPost, http.MethodPut, http.MethodDelete)
		return limited(security.NoStoreMiddleware(s.requireAuth(h)))
	}
	mux.Handle("GET /expenses", api(s.handleListExpenses))
	mux.Handle("POST /expenses", api(s.handleCreateExpense))
	mux.Handle("GET /expenses/summary", api(s.handleSummary))
	mux.Handle("GET /categories", api(s.handleListCategories))
	mux.Handle("POST /categories", api(s.handleCreateCategory))
	mux.Handle("PUT /categories/{id}", api(s.handleUpdateCategory))
	mux.Handle("DELETE /categories/{id}", api(s.handleDeleteCategory))
}

// requireAuth rejects requests without a session user and exposes the id
// to handlers.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := s.sessions.GetInt64(r.Context(), sessionUserID)
		if userID == 0 {
			ErrorResponse(http.StatusUnauthorized, "Authentication Required", "Please log in to access this resource").Write(w)
			return
		}
		ctx := withUserID(r.Context(), userID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded. Please try again later.").Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
