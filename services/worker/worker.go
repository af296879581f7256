package worker

import (
	"context"
	"time"

	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/internal/monitor"
	"sjsage522/pricemonitor/logger"
	"sjsage522/pricemonitor/services/notifier"
)

// Checker runs a batch of price checks
type Checker interface {
	CheckAll(ctx context.Context, items []models.MonitoredItem) map[string]monitor.Result
}

// ProductLister lists the products added at runtime
type ProductLister interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Worker periodically checks every monitored item
type Worker struct {
	checker       Checker
	products      ProductLister
	items         []models.MonitoredItem
	notifier      notifier.Notifier
	logger        helpers.LoggerInterface
	checkInterval time.Duration
	log           *logger.Logger
}

// NewWorker creates a new worker. items are the statically configured
// products; products and failures may be nil.
func NewWorker(
	checker Checker,
	products ProductLister,
	items []models.MonitoredItem,
	n notifier.Notifier,
	failures helpers.LoggerInterface,
	checkInterval time.Duration,
) *Worker {
	return &Worker{
		checker:       checker,
		products:      products,
		items:         items,
		notifier:      n,
		logger:        failures,
		checkInterval: checkInterval,
		log:           logger.ForWorker(),
	}
}

// Start runs a pass immediately and then every checkInterval until ctx is done
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce checks every item once and returns the per-URL results
func (w *Worker) RunOnce(ctx context.Context) map[string]monitor.Result {
	start := time.Now()

	items := w.collectItems(ctx)
	if len(items) == 0 {
		w.log.Warn().Msg("No items to monitor")
		return map[string]monitor.Result{}
	}

	results := w.checker.CheckAll(ctx, items)

	// Trim alert streams after every pass
	if trimmer, ok := w.notifier.(notifier.Trimmer); ok {
		if err := trimmer.TrimStreams(ctx); err != nil {
			w.log.Error().Err(err).Msg("Failed to trim alert streams")
			w.logFailure("StreamTrimming", err)
		}
	}

	if w.logger != nil {
		w.logger.LogInfo("Price check pass took %s for %d items", time.Since(start), len(items))
	}
	return results
}

// collectItems merges configured items with stored products; configured items win
func (w *Worker) collectItems(ctx context.Context) []models.MonitoredItem {
	items := make([]models.MonitoredItem, 0, len(w.items))
	seen := make(map[string]bool, len(w.items))
	for _, item := range w.items {
		if seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		items = append(items, item)
	}

	if w.products == nil {
		return items
	}

	products, err := w.products.ListProducts(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to list stored products")
		w.logFailure("ListProducts", err)
		return items
	}
	for i := range products {
		item := products[i].Item()
		if seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		items = append(items, item)
	}
	return items
}

func (w *Worker) logFailure(source string, err error) {
	if w.logger != nil {
		w.logger.LogError(source, err)
	}
}
