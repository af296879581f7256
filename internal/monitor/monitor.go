package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/internal/extractor"
	"sjsage522/pricemonitor/internal/fetcher"
	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/internal/monitoring"
	"sjsage522/pricemonitor/logger"
	apperrors "sjsage522/pricemonitor/pkg/errors"
	"sjsage522/pricemonitor/services/notifier"
	"sjsage522/pricemonitor/services/store"
)

const defaultMaxConcurrency = 8

// PageFetcher retrieves a product page
type PageFetcher interface {
	Fetch(ctx context.Context, url string, maxRetries int) (*fetcher.Result, error)
}

// StrategyLookup resolves the extraction strategy for a platform
type StrategyLookup interface {
	Lookup(platform models.Platform) (extractor.Strategy, error)
}

// Options configures a Monitor
type Options struct {
	Fetcher  PageFetcher
	Registry StrategyLookup
	Store    store.Store
	Notifier notifier.Notifier
	// Failures receives every failed check; optional
	Failures helpers.LoggerInterface
	Metrics  *monitoring.Metrics

	MaxRetries     int
	MaxConcurrency int
}

// Monitor runs price checks: fetch, extract, validate, persist and alert
type Monitor struct {
	fetcher        PageFetcher
	registry       StrategyLookup
	store          store.Store
	notifier       notifier.Notifier
	failures       helpers.LoggerInterface
	metrics        *monitoring.Metrics
	maxRetries     int
	maxConcurrency int
	log            *logger.Logger
}

// Result is the outcome of checking one item
type Result struct {
	Item        models.MonitoredItem
	ProductID   int64
	Title       string
	Observation *models.PriceObservation
	Alerted     bool
	Err         error
	Duration    time.Duration
}

// OK reports whether the check produced a stored observation
func (r Result) OK() bool {
	return r.Err == nil && r.Observation != nil
}

// TestResult is the outcome of a dry-run scrape
type TestResult struct {
	Title string `json:"title"`
	Price string `json:"price"`
}

// New creates a Monitor
func New(opts Options) *Monitor {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	return &Monitor{
		fetcher:        opts.Fetcher,
		registry:       opts.Registry,
		store:          opts.Store,
		notifier:       opts.Notifier,
		failures:       opts.Failures,
		metrics:        opts.Metrics,
		maxRetries:     opts.MaxRetries,
		maxConcurrency: opts.MaxConcurrency,
		log:            logger.ForMonitor(),
	}
}

// CheckOne checks a single item and returns the stored observation
func (m *Monitor) CheckOne(ctx context.Context, item models.MonitoredItem) (*models.PriceObservation, error) {
	res := m.check(ctx, item)
	return res.Observation, res.Err
}

// check runs the full pipeline for one item. Nothing is written unless a
// valid price was extracted. A panic becomes an Internal error result.
func (m *Monitor) check(ctx context.Context, item models.MonitoredItem) (res Result) {
	start := time.Now()
	res.Item = item
	defer func() {
		if r := recover(); r != nil {
			res = Result{Item: item, Err: apperrors.NewInternal(item.URL, "check panicked", fmt.Errorf("%v", r))}
		}
		res.Duration = time.Since(start)
		m.record(res)
	}()

	if err := item.Validate(); err != nil {
		res.Err = err
		return res
	}
	strategy, err := m.registry.Lookup(item.Platform)
	if err != nil {
		res.Err = err
		return res
	}

	page, err := m.scrape(ctx, item.URL, strategy)
	if err != nil {
		res.Err = err
		return res
	}
	res.Title = page.Title

	if !page.HasPrice {
		res.Err = apperrors.NewExtractionFailed(item.URL, "price not found on page")
		return res
	}
	if !models.ValidPrice(page.Price) {
		res.Err = apperrors.NewInvalidPrice(item.URL, page.Price)
		return res
	}
	if ctx.Err() != nil {
		res.Err = apperrors.NewCancelled(item.URL, ctx.Err())
		return res
	}

	productID, err := m.store.UpsertProduct(ctx, item.URL, m.productName(ctx, item.URL, page.Title), item.Platform, item.DesiredPrice)
	if err != nil {
		res.Err = err
		return res
	}
	res.ProductID = productID

	observationID, err := m.store.AppendObservation(ctx, productID, page.Price)
	if err != nil {
		res.Err = err
		return res
	}
	res.Observation = &models.PriceObservation{
		ID:         observationID,
		ProductID:  productID,
		Price:      page.Price,
		ObservedAt: time.Now().UTC(),
	}

	if page.Price < item.DesiredPrice {
		res.Alerted = m.alert(ctx, item, res)
	}
	return res
}

// productName keeps a stored name over the scraped one; an unrecognised title
// never replaces a real name
func (m *Monitor) productName(ctx context.Context, url, scraped string) string {
	existing, err := m.store.GetProductByURL(ctx, url)
	if err != nil {
		return scraped
	}
	if existing.Name != "" && existing.Name != extractor.UnknownTitle {
		return existing.Name
	}
	return scraped
}

// scrape fetches and parses the page and runs the strategy over it
func (m *Monitor) scrape(ctx context.Context, url string, strategy extractor.Strategy) (extractor.Result, error) {
	page, err := m.fetcher.Fetch(ctx, url, m.maxRetries)
	if err != nil {
		return extractor.Result{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return extractor.Result{}, apperrors.NewParsing(url, "HTML parsing failed", err)
	}
	return extractor.Extract(strategy, doc), nil
}

// alert notifies about a price drop. Delivery failures are logged and never fail the check.
func (m *Monitor) alert(ctx context.Context, item models.MonitoredItem, res Result) bool {
	a := notifier.Alert{
		Title:        res.Title,
		URL:          item.URL,
		Platform:     item.Platform,
		Price:        res.Observation.Price,
		DesiredPrice: item.DesiredPrice,
		ObservedAt:   res.Observation.ObservedAt,
	}
	if m.notifier == nil {
		return false
	}

	if err := m.notifier.Notify(ctx, a); err != nil {
		nerr := apperrors.NewNotification(item.URL, err)
		m.log.Warn().Err(nerr).Str("url", item.URL).Msg("Failed to deliver price alert")
		if m.failures != nil {
			m.failures.LogError(item.URL, nerr)
		}
		return false
	}

	m.metrics.IncAlert()
	m.log.Info().
		Str("url", item.URL).
		Float64("price", a.Price).
		Float64("desired_price", a.DesiredPrice).
		Msg("Price alert sent")
	return true
}

// record logs and counts a finished check
func (m *Monitor) record(res Result) {
	m.metrics.ObserveCheckDuration(res.Item.Platform.String(), res.Duration)

	if res.Err == nil {
		m.metrics.IncCheck("success", "")
		m.metrics.SetObservedPrice(res.Item.Platform.String(), res.Item.URL, res.Observation.Price)
		m.log.Info().
			Str("url", res.Item.URL).
			Str("title", res.Title).
			Float64("price", res.Observation.Price).
			Dur("elapsed", res.Duration).
			Msg("Price checked")
		return
	}

	m.metrics.IncCheck("failed", string(apperrors.TypeOf(res.Err)))
	if errors.Is(res.Err, context.Canceled) || apperrors.Is(res.Err, apperrors.ErrorTypeCancelled) {
		m.log.Warn().Err(res.Err).Str("url", res.Item.URL).Msg("Price check cancelled")
	} else {
		m.log.Error().Err(res.Err).Str("url", res.Item.URL).Msg("Price check failed")
	}
	if m.failures != nil {
		m.failures.LogError(res.Item.URL, res.Err)
	}
}
