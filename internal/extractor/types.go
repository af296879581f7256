package extractor

import (
	"github.com/PuerkitoBio/goquery"

	"sjsage522/pricemonitor/internal/models"
)

// UnknownTitle is returned when no title can be found on a page
const UnknownTitle = "Unknown Product"

// Strategy extracts a title and a price from a parsed product page
type Strategy interface {
	// Platform returns the tag this strategy is registered under
	Platform() models.Platform

	// ExtractTitle never fails; it returns UnknownTitle as a last resort
	ExtractTitle(doc *goquery.Document) string

	// ExtractPrice returns the normalized price and whether one was found
	ExtractPrice(doc *goquery.Document) (float64, bool)
}

// Result is the outcome of running a strategy over one page
type Result struct {
	Title    string
	Price    float64
	HasPrice bool
}

// ElementHandler extracts text from the document root. An empty string means
// "not found" and lets the next handler in the chain run.
type ElementHandler func(root *goquery.Selection) string

// StrategyConfig describes a platform's selector chains. Selectors are tried
// in order, then the extra handlers.
type StrategyConfig struct {
	Platform models.Platform

	TitleSelectors []string
	// TitlePrefixes are stripped from the start of the title, e.g. "Details about"
	TitlePrefixes []string
	// HeadingFallback tries h1..h6 when no title selector matched
	HeadingFallback bool
	TitleHandlers   []ElementHandler

	PriceSelectors []string
	PriceHandlers  []ElementHandler
}

// Extract runs s over doc
func Extract(s Strategy, doc *goquery.Document) Result {
	price, ok := s.ExtractPrice(doc)
	return Result{
		Title:    s.ExtractTitle(doc),
		Price:    price,
		HasPrice: ok,
	}
}
