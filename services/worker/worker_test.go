package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/internal/monitor"
	"sjsage522/pricemonitor/services/notifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockChecker implements the Checker interface for testing
type MockChecker struct {
	mu      sync.Mutex
	batches [][]models.MonitoredItem
	err     error
}

// Ensure MockChecker implements Checker
var _ Checker = (*MockChecker)(nil)

func (m *MockChecker) CheckAll(ctx context.Context, items []models.MonitoredItem) map[string]monitor.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, items)

	results := make(map[string]monitor.Result, len(items))
	for _, item := range items {
		results[item.URL] = monitor.Result{Item: item, Err: m.err}
	}
	return results
}

func (m *MockChecker) Batches() [][]models.MonitoredItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]models.MonitoredItem(nil), m.batches...)
}

// MockLister implements the ProductLister interface for testing
type MockLister struct {
	products []models.Product
	err      error
}

func (m *MockLister) ListProducts(ctx context.Context) ([]models.Product, error) {
	return m.products, m.err
}

// MockNotifier implements notifier.Notifier and notifier.Trimmer for testing
type MockNotifier struct {
	mu      sync.Mutex
	trimmed int
	trimErr error
}

// Ensure MockNotifier implements notifier.Notifier
var _ notifier.Notifier = (*MockNotifier)(nil)
var _ notifier.Trimmer = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, alert notifier.Alert) error {
	return nil
}

func (m *MockNotifier) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return m.trimErr
}

func (m *MockNotifier) Close() error {
	return nil
}

// MockLogger implements the helpers.LoggerInterface for testing
type MockLogger struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

// Ensure MockLogger implements helpers.LoggerInterface
var _ helpers.LoggerInterface = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{
		errors: make([]string, 0),
		infos:  make([]string, 0),
	}
}

func (m *MockLogger) LogError(source string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, source+": "+err.Error())
}

func (m *MockLogger) LogInfo(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, fmt.Sprintf(format, args...))
}

func item(url string) models.MonitoredItem {
	return models.MonitoredItem{URL: url, Platform: models.PlatformAmazon, DesiredPrice: 10}
}

// TestWorkerRunOnce tests that configured and stored items are checked together
func TestWorkerRunOnce(t *testing.T) {
	checker := &MockChecker{}
	lister := &MockLister{products: []models.Product{
		{ID: 1, URL: "https://www.amazon.com/dp/A", Platform: models.PlatformAmazon, DesiredPrice: 99},
		{ID: 2, URL: "https://www.ebay.com/itm/B", Platform: models.PlatformEbay, DesiredPrice: 20},
	}}
	mockNotifier := &MockNotifier{}
	mockLogger := NewMockLogger()

	w := NewWorker(checker, lister, []models.MonitoredItem{
		item("https://www.amazon.com/dp/A"),
		item("https://www.amazon.com/dp/C"),
		item("https://www.amazon.com/dp/C"),
	}, mockNotifier, mockLogger, time.Hour)

	results := w.RunOnce(context.Background())
	assert.Len(t, results, 3)

	batches := checker.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)

	// Configured values win over the stored ones
	assert.Equal(t, 10.0, batches[0][0].DesiredPrice)
	assert.Equal(t, "https://www.amazon.com/dp/C", batches[0][1].URL)
	assert.Equal(t, models.PlatformEbay, batches[0][2].Platform)

	// Streams are trimmed after the pass
	assert.Equal(t, 1, mockNotifier.trimmed)
	assert.Empty(t, mockLogger.errors, "No errors should have been logged")
	assert.Len(t, mockLogger.infos, 1)
}

// TestWorkerListError tests that a store failure still checks the configured items
func TestWorkerListError(t *testing.T) {
	checker := &MockChecker{}
	mockLogger := NewMockLogger()

	w := NewWorker(checker, &MockLister{err: errors.New("database is locked")},
		[]models.MonitoredItem{item("https://www.amazon.com/dp/A")},
		&MockNotifier{trimErr: errors.New("redis gone")}, mockLogger, time.Hour)

	results := w.RunOnce(context.Background())
	assert.Len(t, results, 1)

	require.Len(t, mockLogger.errors, 2)
	assert.Contains(t, mockLogger.errors[0], "ListProducts")
	assert.Contains(t, mockLogger.errors[0], "database is locked")
	assert.Contains(t, mockLogger.errors[1], "StreamTrimming")
}

// TestWorkerNoItems tests that an empty pass never reaches the checker
func TestWorkerNoItems(t *testing.T) {
	checker := &MockChecker{}
	w := NewWorker(checker, nil, nil, &MockNotifier{}, NewMockLogger(), time.Hour)

	assert.Empty(t, w.RunOnce(context.Background()))
	assert.Empty(t, checker.Batches())
}

// TestWorkerStart tests that the loop runs immediately and stops with the context
func TestWorkerStart(t *testing.T) {
	checker := &MockChecker{}
	w := NewWorker(checker, nil, []models.MonitoredItem{item("https://www.amazon.com/dp/A")},
		&MockNotifier{}, NewMockLogger(), 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	err := w.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, len(checker.Batches()), 2)
}

// TestWorkerWithoutFailureLogger tests that the failure logger is optional
func TestWorkerWithoutFailureLogger(t *testing.T) {
	checker := &MockChecker{}
	w := NewWorker(checker, &MockLister{err: errors.New("database is locked")},
		[]models.MonitoredItem{item("https://www.amazon.com/dp/A")},
		&MockNotifier{trimErr: errors.New("redis gone")}, nil, time.Hour)

	var results map[string]monitor.Result
	assert.NotPanics(t, func() {
		results = w.RunOnce(context.Background())
	})
	assert.Len(t, results, 1)
}
