// Package http serves the web pages and the JSON API.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/middleware/ratelimit"
	"financas/internal/middleware/security"
	"financas/internal/middleware/trace"
	"financas/internal/services"
	"financas/internal/store"
	appweb "financas/web"
)

// Dependencies are the collaborators of the web server.
type Dependencies struct {
	Transactions *services.TransactionService
	Auth         *auth.Service
	// Ready is pinged by /readyz. Nil means always ready.
	Ready              store.Pinger
	Logger             *log.Logger
	RateLimitPerMinute int
	// Now is the clock used for defaults such as the current month.
	Now func() time.Time
}

// Server is the HTTP front end.
type Server struct {
	http.Server

	tx         *services.TransactionService
	auth       *auth.Service
	ready      store.Pinger
	catalog    *core.Catalog
	loc        *time.Location
	now        func() time.Time
	logger     *log.Logger
	structured *log.StructuredLogger
	templates  *template.Template

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and registers every route.
func NewServer(addr string, deps Dependencies) (*Server, error) {
	if deps.Transactions == nil || deps.Auth == nil {
		return nil, errors.New("http server needs a transaction service and an auth service")
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		tx:         deps.Transactions,
		auth:       deps.Auth,
		ready:      deps.Ready,
		catalog:    deps.Transactions.Catalog(),
		loc:        deps.Transactions.Engine().Location(),
		now:        deps.Now,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		detector:   security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
			Now:               deps.Now,
		}),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ClientIP)

	t, err := template.New("financas").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		return nil, err
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.detector.ClientIP, ratelimit.Mutating, s.handleRateLimited)(mux)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(s.inspect(limited))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.limiter.StartCleanup()

	s.logger.Debug("HTTP server configured",
		"addr", addr,
		"rate_limit_per_minute", deps.RateLimitPerMinute,
		"timezone", s.loc.String())
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /dashboard", s.requirePageUser(s.handleDashboard))
	mux.HandleFunc("GET /transactions", s.requirePageUser(s.handleTransactions))
	mux.HandleFunc("GET /transactions/new", s.requirePageUser(s.handleNewTransaction))
	mux.HandleFunc("POST /transactions", s.requirePageUser(s.handleCreateTransaction))
	mux.HandleFunc("POST /transactions/{id}/delete", s.requirePageUser(s.handleDeleteTransaction))
	mux.HandleFunc("GET /analytics", s.requirePageUser(s.handleAnalytics))

	mux.HandleFunc("POST /api/login", s.handleAPILogin)
	mux.HandleFunc("POST /api/logout", s.handleAPILogout)
	mux.HandleFunc("GET /api/transactions", s.requireAPIUser(s.handleAPIListTransactions))
	mux.HandleFunc("POST /api/transactions", s.requireAPIUser(s.handleAPICreateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}", s.requireAPIUser(s.handleAPIGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.requireAPIUser(s.handleAPIUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.requireAPIUser(s.handleAPIDeleteTransaction))
	mux.HandleFunc("GET /api/analysis", s.requireAPIUser(s.handleAPIAnalysis))
	mux.HandleFunc("GET /api/dashboard", s.requireAPIUser(s.handleAPIDashboard))
	mux.HandleFunc("GET /api/categories", s.handleAPICategories)
	return nil
}

// inspect logs requests the detector flags. They are still served.
func (s *Server) inspect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := s.detector.Inspect(r); reason != "" {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				log.FieldClientIP, s.detector.ClientIP(r),
				log.FieldPath, r.URL.Path,
				"reason", reason)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown stops background work and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.structured.LogError(r.Context(), "Readiness check failed", err, log.ComponentBackend, "ping",
				log.NewFields().WithErrorType(log.ErrorTypeDatabase))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes the named template into a buffer so a template error never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structured.LogError(r.Context(), "Template render failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError logs err and renders the generic error page.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	s.logRequestError(r, "Request failed", op, status, err)
	u, _ := userFrom(r.Context())
	s.render(w, r, status, "error", pageData{
		Title: "Erro",
		User:  userPtr(u),
		Error: userMessage(err),
	})
}

// logRequestError logs server failures at error level and rejected requests
// at debug level.
func (s *Server) logRequestError(r *http.Request, msg, op string, status int, err error) {
	fields := log.NewFields().WithErrorType(errorType(status))
	if status >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), msg, err, log.ComponentHTTP, op, fields)
		return
	}
	s.logger.DebugContext(r.Context(), msg, fields.WithError(err).WithOperation(op).ToSlice()...)
}

func (s *Server) currentPeriod() core.Period {
	return core.PeriodOf(s.now().In(s.loc))
}
