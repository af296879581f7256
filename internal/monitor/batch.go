package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"sjsage522/pricemonitor/internal/extractor"
	"sjsage522/pricemonitor/internal/models"
	apperrors "sjsage522/pricemonitor/pkg/errors"
)

// CheckAll checks every item concurrently, at most maxConcurrency at a time.
// Each item's outcome is independent: a failure or panic in one check is
// captured in its Result and never affects the others. Items sharing a URL
// are checked once.
func (m *Monitor) CheckAll(ctx context.Context, items []models.MonitoredItem) map[string]Result {
	runID := uuid.NewString()
	log := m.log.WithField("run_id", runID)

	unique := make([]models.MonitoredItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.URL] {
			log.Warn().Str("url", item.URL).Msg("Duplicate item skipped")
			continue
		}
		seen[item.URL] = true
		unique = append(unique, item)
	}

	log.Info().Int("items", len(unique)).Msg("Starting price checks")

	results := make(map[string]Result, len(unique))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.maxConcurrency)

	for _, item := range unique {
		wg.Add(1)
		go func(item models.MonitoredItem) {
			defer wg.Done()

			var res Result
			select {
			case sem <- struct{}{}:
				res = m.check(ctx, item)
				<-sem
			case <-ctx.Done():
				res = Result{Item: item, Err: apperrors.NewCancelled(item.URL, ctx.Err())}
				m.record(res)
			}

			mu.Lock()
			results[item.URL] = res
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	succeeded := 0
	for _, res := range results {
		if res.OK() {
			succeeded++
		}
	}
	log.Info().
		Int("succeeded", succeeded).
		Int("failed", len(results)-succeeded).
		Msg("Price checks finished")

	return results
}

// CheckNow runs one item through CheckAll and waits for it
func (m *Monitor) CheckNow(ctx context.Context, item models.MonitoredItem) Result {
	return m.CheckAll(ctx, []models.MonitoredItem{item})[item.URL]
}

// AddProduct stores a new item under name and runs its first check. The
// product stays stored even when that check fails. Without a name the product
// is stored as UnknownTitle until a check scrapes its title; an existing name
// is kept.
func (m *Monitor) AddProduct(ctx context.Context, item models.MonitoredItem, name string) (int64, Result, error) {
	if err := item.Validate(); err != nil {
		return 0, Result{}, err
	}
	if _, err := m.registry.Lookup(item.Platform); err != nil {
		return 0, Result{}, err
	}
	if name == "" {
		name = m.productName(ctx, item.URL, extractor.UnknownTitle)
	}

	id, err := m.store.UpsertProduct(ctx, item.URL, name, item.Platform, item.DesiredPrice)
	if err != nil {
		return 0, Result{}, err
	}
	return id, m.CheckNow(ctx, item), nil
}

// TestScraper fetches and extracts without persisting or alerting
func (m *Monitor) TestScraper(ctx context.Context, url string, platform models.Platform) (TestResult, error) {
	item := models.MonitoredItem{URL: url, Platform: platform, DesiredPrice: 1}
	if err := item.Validate(); err != nil {
		return TestResult{}, err
	}
	strategy, err := m.registry.Lookup(platform)
	if err != nil {
		return TestResult{}, err
	}

	page, err := m.scrape(ctx, url, strategy)
	if err != nil {
		return TestResult{}, err
	}

	res := TestResult{Title: page.Title, Price: "N/A"}
	if page.HasPrice && models.ValidPrice(page.Price) {
		res.Price = fmt.Sprintf("$%.2f", page.Price)
	}
	return res, nil
}
