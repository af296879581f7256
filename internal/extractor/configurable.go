package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/pricemonitor/internal/models"
	"sjsage522/pricemonitor/logger"
)

// ConfigurableStrategy is a Strategy driven by a StrategyConfig
type ConfigurableStrategy struct {
	platform      models.Platform
	titlePrefixes []string
	titleHandlers []ElementHandler
	priceHandlers []ElementHandler
	log           *logger.Logger
}

// NewConfigurableStrategy builds the handler chains for config
func NewConfigurableStrategy(config StrategyConfig) *ConfigurableStrategy {
	s := &ConfigurableStrategy{
		platform:      config.Platform,
		titlePrefixes: config.TitlePrefixes,
		log:           logger.ForExtractor(config.Platform.String()),
	}

	for _, selector := range config.TitleSelectors {
		s.titleHandlers = append(s.titleHandlers, selectorHandler(selector))
	}
	if config.HeadingFallback {
		s.titleHandlers = append(s.titleHandlers, headingHandler)
	}
	s.titleHandlers = append(s.titleHandlers, config.TitleHandlers...)

	for _, selector := range config.PriceSelectors {
		s.priceHandlers = append(s.priceHandlers, selectorHandler(selector))
	}
	s.priceHandlers = append(s.priceHandlers, config.PriceHandlers...)

	return s
}

// Platform returns the platform tag
func (s *ConfigurableStrategy) Platform() models.Platform {
	return s.platform
}

// ExtractTitle returns the first non-empty title with platform prefixes removed
func (s *ConfigurableStrategy) ExtractTitle(doc *goquery.Document) string {
	title := s.cleanTitle(applyHandlers(doc.Selection, s.titleHandlers))
	if title == "" {
		s.log.Warn().Msg("Could not find product title")
		return UnknownTitle
	}
	return title
}

func (s *ConfigurableStrategy) cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, prefix := range s.titlePrefixes {
		if strings.HasPrefix(title, prefix) {
			title = strings.TrimSpace(strings.TrimPrefix(title, prefix))
		}
	}
	return strings.Join(strings.Fields(title), " ")
}

// ExtractPrice normalizes the first matched price text
func (s *ConfigurableStrategy) ExtractPrice(doc *goquery.Document) (float64, bool) {
	text := applyHandlers(doc.Selection, s.priceHandlers)
	if text == "" {
		s.log.Warn().Msg("Price element not found on the page")
		return 0, false
	}

	price, ok := NormalizePrice(text)
	if !ok {
		s.log.Warn().Str("text", text).Msg("Could not parse price text")
	}
	return price, ok
}
