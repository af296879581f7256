package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// checkTimeout bounds a request that runs a live check with retries
const checkTimeout = 3 * time.Minute

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(checkTimeout))

	r.Get("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/healthz", s.handleHealthCheck)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Post("/", s.handleAddProduct)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProduct)
			r.Patch("/", s.handleUpdateProduct)
			r.Delete("/", s.handleDeleteProduct)
			r.Get("/history", s.handleHistory)
			r.Post("/check", s.handleCheckProduct)
		})
	})
	r.Post("/scraper/test", s.handleTestScraper)

	return r
}

// requestLogger logs every request through the component logger
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			s.log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("HTTP request")
		}()

		next.ServeHTTP(ww, r)
	})
}
