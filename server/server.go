package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"time26/service"
)

// Config holds the HTTP settings
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CronSecret      string
	JWTSecret       string
}

// Services are the use cases exposed over HTTP
type Services struct {
	Ledger     service.LedgerService
	Settlement service.SettlementService
	Claim      service.ClaimService
	Gasless    service.GaslessService
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Server is the TIME26 HTTP API
type Server struct {
	cfg      Config
	services Services
	gatherer prometheus.Gatherer
	health   HealthCheck
	now      func() time.Time
	engine   *gin.Engine
}

// New builds the router. gatherer backs /metrics; health may be nil.
func New(cfg Config, services Services, gatherer prometheus.Gatherer, health HealthCheck) *Server {
	s := &Server{
		cfg:      cfg,
		services: services,
		gatherer: gatherer,
		health:   health,
		now:      time.Now,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the http.Handler serving every route
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	cron := r.Group("/cron")
	cron.Use(cronAuth(s.cfg.CronSecret))
	cron.GET("/rewards", s.handleDailySettlement)
	cron.POST("/rewards", s.handleDailySettlement)
	cron.POST("/merkle-root", s.handlePushRoot)
	cron.POST("/reconcile-mints", s.handleReconcileMints)

	user := r.Group("/user")
	user.Use(userAuth(s.cfg.JWTSecret))
	user.GET("/claim-proof", s.handleClaimProof)
	user.GET("/spend-balance", s.handleGetBalance)
	user.POST("/spend-balance", s.handleSpend)

	mint := r.Group("/mint")
	mint.Use(userAuth(s.cfg.JWTSecret))
	mint.GET("/gasless/eligibility", s.handleEligibility)
	mint.POST("/gasless", s.handleGaslessMint)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
