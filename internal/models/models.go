package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"sjsage522/pricemonitor/helpers"
	apperrors "sjsage522/pricemonitor/pkg/errors"
)

// Platform identifies which extraction strategy handles a product page
type Platform string

const (
	PlatformAmazon Platform = "amazon"
	PlatformEbay   Platform = "ebay"
)

// ParsePlatform converts a user supplied tag into a Platform.
// Unknown tags are returned as-is so the extractor registry can reject them.
func ParsePlatform(s string) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(s)))
}

func (p Platform) String() string {
	return string(p)
}

// MonitoredItem is a product URL the user wants to watch
type MonitoredItem struct {
	URL          string   `json:"url" mapstructure:"url"`
	Platform     Platform `json:"platform" mapstructure:"platform"`
	DesiredPrice float64  `json:"desired_price" mapstructure:"desired_price"`
}

// Validate checks the item before any network call is made
func (i MonitoredItem) Validate() error {
	if !helpers.IsValidURL(i.URL) {
		return apperrors.NewInvalidURL(i.URL)
	}
	if !ValidPrice(i.DesiredPrice) {
		return apperrors.NewInvalidPrice(i.URL, i.DesiredPrice)
	}
	return nil
}

// Product is a MonitoredItem as persisted by the record store
type Product struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	Platform     Platform  `json:"platform"`
	DesiredPrice float64   `json:"desired_price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Item returns the monitoring view of a stored product
func (p *Product) Item() MonitoredItem {
	return MonitoredItem{URL: p.URL, Platform: p.Platform, DesiredPrice: p.DesiredPrice}
}

// PriceObservation is one successful price check
type PriceObservation struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

func (o PriceObservation) String() string {
	return fmt.Sprintf("$%.2f at %s", o.Price, o.ObservedAt.Format(time.RFC3339))
}

// ValidPrice reports whether v can be stored as a price
func ValidPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
