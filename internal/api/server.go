// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/follow-scanner/internal/gating"
	"github.com/follow-scanner/internal/logging"
	"github.com/follow-scanner/internal/service"
	"github.com/follow-scanner/internal/types"
)

// Service interfaces for dependency injection and testing

// ScanServiceInterface defines the scan operations the API exposes
type ScanServiceInterface interface {
	Scan(ctx context.Context, req service.ScanRequest) (*service.ScanOutcome, error)
	LookupUser(ctx context.Context, accountID uint64) (*types.Profile, error)
}

// PremiumServiceInterface defines premium entitlement operations
type PremiumServiceInterface interface {
	Status(ctx context.Context, wallet string) (types.PremiumStatus, error)
	Activate(ctx context.Context, wallet string) (types.PremiumStatus, error)
	Tier(ctx context.Context, wallet string) types.UserTier
}

// StreakServiceInterface defines daily check-in operations
type StreakServiceInterface interface {
	Status(ctx context.Context, wallet string) (types.StreakStatus, error)
	CheckIn(ctx context.Context, wallet string) (types.StreakStatus, error)
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	httpServer     *http.Server
	scanService    ScanServiceInterface
	premiumService PremiumServiceInterface
	streakService  StreakServiceInterface
	gate           *gating.Gate
	config         *ServerConfig
	now            func() time.Time
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	FreeTierRPS     int // Requests per second for free tier
	PremiumTierRPS  int // Requests per second for premium tier

	// ActivationSecret gates POST /api/premium/{wallet}; empty leaves it open
	ActivationSecret string
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	scanService ScanServiceInterface,
	premiumService PremiumServiceInterface,
	streakService StreakServiceInterface,
	gate *gating.Gate,
) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		scanService:    scanService,
		premiumService: premiumService,
		streakService:  streakService,
		gate:           gate,
		config:         config,
		now:            time.Now,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.FreeTierRPS, s.config.PremiumTierRPS)

	// order matters: the request logger must wrap everything else
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter, s.premiumService.Tier))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/relationship-scan", s.handleRelationshipScan).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/users/{accountId}", s.handleGetUser).Methods("GET")

	api.HandleFunc("/premium/{wallet}", s.handleGetPremium).Methods("GET")
	api.HandleFunc("/premium/{wallet}", s.handleActivatePremium).Methods("POST")

	api.HandleFunc("/streak/{wallet}", s.handleGetStreak).Methods("GET")
	api.HandleFunc("/streak/{wallet}/check-in", s.handleCheckIn).Methods("POST")

	// preflight requests only need to reach CORSMiddleware
	s.router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "follow-scanner",
	})
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
