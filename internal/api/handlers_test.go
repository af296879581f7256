package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/internal/monitor"
	"sjsage522/pricemonitor/internal/monitoring"
	apperrors "sjsage522/pricemonitor/pkg/errors"
	"sjsage522/pricemonitor/services/store"
)

// MockChecker implements Checker on top of a real store
type MockChecker struct {
	mu      sync.Mutex
	store   store.Store
	price   float64
	title   string
	err     error
	checked []models.MonitoredItem
}

var _ Checker = (*MockChecker)(nil)

func (m *MockChecker) CheckNow(ctx context.Context, item models.MonitoredItem) monitor.Result {
	m.mu.Lock()
	m.checked = append(m.checked, item)
	m.mu.Unlock()

	res := monitor.Result{Item: item, Title: m.title}
	if m.err != nil {
		res.Err = m.err
		return res
	}

	p, err := m.store.GetProductByURL(ctx, item.URL)
	if err != nil {
		res.Err = err
		return res
	}
	obsID, err := m.store.AppendObservation(ctx, p.ID, m.price)
	if err != nil {
		res.Err = err
		return res
	}
	res.ProductID = p.ID
	res.Observation = &models.PriceObservation{ID: obsID, ProductID: p.ID, Price: m.price, ObservedAt: time.Now().UTC()}
	res.Alerted = m.price < item.DesiredPrice
	return res
}

func (m *MockChecker) AddProduct(ctx context.Context, item models.MonitoredItem, name string) (int64, monitor.Result, error) {
	if err := item.Validate(); err != nil {
		return 0, monitor.Result{}, err
	}
	if item.Platform != models.PlatformAmazon && item.Platform != models.PlatformEbay {
		return 0, monitor.Result{}, apperrors.NewUnsupportedPlatform(item.Platform.String())
	}
	id, err := m.store.UpsertProduct(ctx, item.URL, name, item.Platform, item.DesiredPrice)
	if err != nil {
		return 0, monitor.Result{}, err
	}
	return id, m.CheckNow(ctx, item), nil
}

func (m *MockChecker) TestScraper(ctx context.Context, url string, platform models.Platform) (monitor.TestResult, error) {
	if m.err != nil {
		return monitor.TestResult{}, m.err
	}
	return monitor.TestResult{Title: m.title, Price: "$12.34"}, nil
}

type testServer struct {
	*httptest.Server
	store   store.Store
	checker *MockChecker
}

func newTestServer(t *testing.T, health map[string]HealthCheck) *testServer {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	monitoring.NewMetrics(reg).IncAlert()

	checker := &MockChecker{store: st, price: 42.5, title: "Echo Dot"}
	s := NewServer(":0", checker, st, reg, health)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: st, checker: checker}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (ts *testServer) seed(t *testing.T) int64 {
	t.Helper()
	id, err := ts.store.UpsertProduct(context.Background(), "https://www.amazon.com/dp/B01", "Kindle", models.PlatformAmazon, 80)
	require.NoError(t, err)
	return id
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, map[string]HealthCheck{
		"store": func(ctx context.Context) error { return nil },
	})

	resp := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "healthy", body["store"])
}

func TestHealthCheckUnhealthy(t *testing.T) {
	ts := newTestServer(t, map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	resp := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sb bytes.Buffer
	_, err := sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "price_monitor_alerts_total 1")
}

func TestAddProduct(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodPost, "/products",
		`{"url":"https://www.amazon.com/dp/B0NEW","platform":"Amazon","desired_price":50,"name":"Echo"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body productResponse
	decode(t, resp, &body)
	require.NotNil(t, body.Product)
	assert.Equal(t, "Echo", body.Product.Name)
	assert.Equal(t, models.PlatformAmazon, body.Product.Platform)
	require.NotNil(t, body.Check)
	require.NotNil(t, body.Check.Observation)
	assert.Equal(t, 42.5, body.Check.Observation.Price)
	assert.True(t, body.Check.Alerted)
	assert.Empty(t, body.Check.Error)
}

func TestAddProductFirstCheckFails(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.checker.err = apperrors.NewExtractionFailed("https://www.amazon.com/dp/B0NEW", "price not found")

	resp := ts.do(t, http.MethodPost, "/products",
		`{"url":"https://www.amazon.com/dp/B0NEW","platform":"amazon","desired_price":50}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body productResponse
	decode(t, resp, &body)
	assert.Equal(t, "extraction_failed", body.Check.ErrorType)
	assert.NotEmpty(t, body.Check.Error)
	assert.Nil(t, body.Check.Observation)
}

func TestAddProductValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name     string
		body     string
		wantType string
		wantCode int
	}{
		{"malformed body", `{`, "", http.StatusBadRequest},
		{"invalid url", `{"url":"ftp://x","platform":"amazon","desired_price":5}`, "invalid_url", http.StatusBadRequest},
		{"bad price", `{"url":"https://www.amazon.com/dp/1","platform":"amazon","desired_price":0}`, "invalid_price", http.StatusBadRequest},
		{"unsupported platform", `{"url":"https://www.etsy.com/1","platform":"etsy","desired_price":5}`, "unsupported_platform", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/products", tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

			var pd ProblemDetails
			decode(t, resp, &pd)
			assert.Equal(t, tt.wantCode, pd.Status)
			assert.Equal(t, tt.wantType, pd.ErrorType)
			assert.Equal(t, "/products", pd.Instance)
		})
	}
}

func TestListAndGetProduct(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.seed(t)

	resp := ts.do(t, http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products []models.Product
	decode(t, resp, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "Kindle", products[0].Name)

	resp = ts.do(t, http.MethodGet, "/products/"+itoa(id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var product models.Product
	decode(t, resp, &product)
	assert.Equal(t, id, product.ID)

	resp = ts.do(t, http.MethodGet, "/products/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/products/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateProduct(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.seed(t)
	path := "/products/" + itoa(id)

	resp := ts.do(t, http.MethodPatch, path, `{"desired_price":70}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var product models.Product
	decode(t, resp, &product)
	assert.Equal(t, 70.0, product.DesiredPrice)
	assert.Equal(t, "Kindle", product.Name)

	resp = ts.do(t, http.MethodPatch, path, `{"name":"Kindle Paperwhite"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &product)
	assert.Equal(t, "Kindle Paperwhite", product.Name)
	assert.Equal(t, 70.0, product.DesiredPrice)

	resp = ts.do(t, http.MethodPatch, path, `{"desired_price":-3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPatch, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteProduct(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.seed(t)
	path := "/products/" + itoa(id)

	resp := ts.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckAndHistory(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.seed(t)

	for i := 0; i < 3; i++ {
		resp := ts.do(t, http.MethodPost, "/products/"+itoa(id)+"/check", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body checkResponse
		decode(t, resp, &body)
		require.NotNil(t, body.Observation)
		assert.Equal(t, 42.5, body.Observation.Price)
		assert.True(t, body.Alerted)
	}

	resp := ts.do(t, http.MethodGet, "/products/"+itoa(id)+"/history?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []models.PriceObservation
	decode(t, resp, &history)
	assert.Len(t, history, 2)

	resp = ts.do(t, http.MethodGet, "/products/"+itoa(id)+"/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckProductFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.seed(t)
	ts.checker.err = apperrors.NewRetriesExhausted("https://www.amazon.com/dp/B01", 5, nil)

	resp := ts.do(t, http.MethodPost, "/products/"+itoa(id)+"/check", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var pd ProblemDetails
	decode(t, resp, &pd)
	assert.Equal(t, "retries_exhausted", pd.ErrorType)
	assert.NotEmpty(t, pd.Detail)
}

func TestScraperTest(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodPost, "/scraper/test", `{"url":"https://www.ebay.com/itm/1","platform":"ebay"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res monitor.TestResult
	decode(t, resp, &res)
	assert.Equal(t, monitor.TestResult{Title: "Echo Dot", Price: "$12.34"}, res)

	ts.checker.err = apperrors.NewRateLimit("https://www.ebay.com/itm/1", time.Minute)
	resp = ts.do(t, http.MethodPost, "/scraper/test", `{"url":"https://www.ebay.com/itm/1","platform":"ebay"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(apperrors.ErrorTypeNetworkPermanent))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(apperrors.ErrorTypeParsing))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(apperrors.ErrorTypeCancelled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperrors.ErrorTypeStoreWriteFailed))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
