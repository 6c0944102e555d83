package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/venla/onboard-gateway/internal/api/handler"
	mw "github.com/venla/onboard-gateway/internal/api/middleware"
	"github.com/venla/onboard-gateway/internal/api/response"
	"github.com/venla/onboard-gateway/internal/audit"
	"github.com/venla/onboard-gateway/internal/coalesce"
	"github.com/venla/onboard-gateway/internal/config"
	"github.com/venla/onboard-gateway/internal/onboarding"
)

// Server wires the gateway's HTTP surface.
type Server struct {
	router      chi.Router
	logger      zerolog.Logger
	cfg         *config.Config
	auditor     *audit.Recorder
	onboardings handler.OnboardingService
	authClient  onboarding.Caller
	coalescer   *coalesce.Coalescer
}

// Deps carries the collaborators built in the composition root.
type Deps struct {
	Onboarding handler.OnboardingService
	AuthClient onboarding.Caller
	Coalescer  *coalesce.Coalescer
	Auditor    *audit.Recorder
}

func NewServer(logger zerolog.Logger, cfg *config.Config, deps Deps) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		cfg:         cfg,
		auditor:     deps.Auditor,
		onboardings: deps.Onboarding,
		authClient:  deps.AuthClient,
		coalescer:   deps.Coalescer,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api/onboarding", func(r chi.Router) {
		r.Use(mw.RequireTenantAuth)

		ob := handler.NewOnboarding(s.onboardings, s.auditor)
		r.Get("/status", ob.Status)
		r.Post("/initialize", ob.Initialize)
		r.Post("/step/complete", ob.CompleteStep)
		r.Put("/step/skip", ob.SkipStep)
		r.Put("/progress", ob.UpdateProgress)
		r.Post("/complete", ob.Complete)
		r.Get("/test", ob.Test)
	})

	s.router.Route("/api/auth", func(r chi.Router) {
		auth := handler.NewAuth(s.authClient, s.coalescer, s.auditor)
		r.Post("/complete-registration", auth.CompleteRegistration)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
