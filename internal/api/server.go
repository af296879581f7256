package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/internal/monitor"
	"sjsage522/pricemonitor/logger"
	"sjsage522/pricemonitor/services/store"
)

// Checker is the part of the monitor the API drives
type Checker interface {
	CheckNow(ctx context.Context, item models.MonitoredItem) monitor.Result
	AddProduct(ctx context.Context, item models.MonitoredItem, name string) (int64, monitor.Result, error)
	TestScraper(ctx context.Context, url string, platform models.Platform) (monitor.TestResult, error)
}

// HealthCheck reports the state of one backing service
type HealthCheck func(ctx context.Context) error

// Server holds the dependencies for the admin HTTP server.
type Server struct {
	addr       string
	router     http.Handler
	httpServer *http.Server
	checker    Checker
	store      store.Store
	gatherer   prometheus.Gatherer
	health     map[string]HealthCheck
	log        *logger.Logger
}

// NewServer creates the admin server. gatherer and health may be nil.
func NewServer(addr string, checker Checker, st store.Store, gatherer prometheus.Gatherer, health map[string]HealthCheck) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		addr:     addr,
		checker:  checker,
		store:    st,
		gatherer: gatherer,
		health:   health,
		log:      logger.ForAPI(),
	}
	s.router = s.setupRouter()
	return s
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: checkTimeout + 10*time.Second,
	}
	s.log.Info().Str("addr", s.addr).Msg("Admin API listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
