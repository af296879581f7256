package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/internal/monitor"
	apperrors "sjsage522/pricemonitor/pkg/errors"
	"sjsage522/pricemonitor/services/store"
)

type addProductRequest struct {
	URL          string  `json:"url"`
	Platform     string  `json:"platform"`
	DesiredPrice float64 `json:"desired_price"`
	Name         string  `json:"name"`
}

type updateProductRequest struct {
	Name         *string  `json:"name"`
	DesiredPrice *float64 `json:"desired_price"`
}

type scraperTestRequest struct {
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

// checkResponse reports a live check; Error holds the user facing failure message
type checkResponse struct {
	Observation *models.PriceObservation `json:"observation,omitempty"`
	Title       string                   `json:"title,omitempty"`
	Alerted     bool                     `json:"alerted"`
	Error       string                   `json:"error,omitempty"`
	ErrorType   string                   `json:"error_type,omitempty"`
}

type productResponse struct {
	Product *models.Product `json:"product"`
	Check   *checkResponse  `json:"check,omitempty"`
}

func newCheckResponse(res monitor.Result) *checkResponse {
	cr := &checkResponse{Observation: res.Observation, Title: res.Title, Alerted: res.Alerted}
	var ce *apperrors.CheckError
	if errors.As(res.Err, &ce) {
		cr.Error = ce.UserMessage()
		cr.ErrorType = string(ce.Type)
	} else if res.Err != nil {
		cr.Error = "An unexpected error occurred."
	}
	return cr
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"status": "healthy"}
	healthy := true
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			healthy = false
			s.log.Error().Err(err).Str("service", name).Msg("Health check failed")
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !healthy {
		healthStatus["status"] = "unhealthy"
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, products)
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body", r.URL.Path)
		return
	}

	item := models.MonitoredItem{
		URL:          req.URL,
		Platform:     models.ParsePlatform(req.Platform),
		DesiredPrice: req.DesiredPrice,
	}
	id, res, err := s.checker.AddProduct(r.Context(), item, req.Name)
	if err != nil {
		WriteCheckError(w, err, r.URL.Path)
		return
	}

	product, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.respondWithJSON(w, http.StatusCreated, productResponse{Product: product, Check: newCheckResponse(res)})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := s.loadProduct(w, r)
	if !ok {
		return
	}
	s.respondWithJSON(w, http.StatusOK, product)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := s.loadProduct(w, r)
	if !ok {
		return
	}

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body", r.URL.Path)
		return
	}
	if req.Name == nil && req.DesiredPrice == nil {
		WriteBadRequest(w, "Nothing to update", r.URL.Path)
		return
	}

	var err error
	switch {
	case req.Name == nil:
		_, err = s.store.UpdateDesiredPrice(r.Context(), product.ID, *req.DesiredPrice)
	case req.DesiredPrice == nil:
		_, err = s.store.UpdateProduct(r.Context(), product.ID, *req.Name, product.DesiredPrice)
	default:
		_, err = s.store.UpdateProduct(r.Context(), product.ID, *req.Name, *req.DesiredPrice)
	}
	if err != nil {
		WriteCheckError(w, err, r.URL.Path)
		return
	}

	updated, err := s.store.GetProduct(r.Context(), product.ID)
	if err != nil {
		WriteCheckError(w, err, r.URL.Path)
		return
	}
	s.respondWithJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	deleted, err := s.store.DeleteProduct(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !deleted {
		WriteNotFound(w, "The product does not exist.", r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	product, ok := s.loadProduct(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteBadRequest(w, "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}

	history, err := s.store.GetHistory(r.Context(), product.ID, limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, history)
}

func (s *Server) handleCheckProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := s.loadProduct(w, r)
	if !ok {
		return
	}

	res := s.checker.CheckNow(r.Context(), product.Item())
	if res.Err != nil {
		WriteCheckError(w, res.Err, r.URL.Path)
		return
	}
	s.respondWithJSON(w, http.StatusOK, newCheckResponse(res))
}

func (s *Server) handleTestScraper(w http.ResponseWriter, r *http.Request) {
	var req scraperTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body", r.URL.Path)
		return
	}

	res, err := s.checker.TestScraper(r.Context(), req.URL, models.ParsePlatform(req.Platform))
	if err != nil {
		WriteCheckError(w, err, r.URL.Path)
		return
	}
	s.respondWithJSON(w, http.StatusOK, res)
}

// --- Helper Functions ---

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteBadRequest(w, "Invalid product id", r.URL.Path)
		return 0, false
	}
	return id, true
}

func (s *Server) loadProduct(w http.ResponseWriter, r *http.Request) (*models.Product, bool) {
	id, ok := productID(w, r)
	if !ok {
		return nil, false
	}

	product, err := s.store.GetProduct(r.Context(), id)
	if errors.Is(err, store.ErrProductNotFound) {
		WriteNotFound(w, "The product does not exist.", r.URL.Path)
		return nil, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return nil, false
	}
	return product, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	WriteError(w, http.StatusInternalServerError, "An unexpected error occurred.", r.URL.Path)
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
