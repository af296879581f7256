package extractor

import (
	"sjsage522/pricemonitor/internal/models"
)

// CreateStrategies creates a strategy for every built-in platform configuration
func CreateStrategies() []Strategy {
	configurations := Configurations()
	strategies := make([]Strategy, 0, len(configurations))
	for _, config := range configurations {
		strategies = append(strategies, NewConfigurableStrategy(config))
	}
	return strategies
}

// Configurations returns the selector chains of the supported platforms
func Configurations() []StrategyConfig {
	return []StrategyConfig{
		{
			// Amazon product page
			Platform:        models.PlatformAmazon,
			TitleSelectors:  []string{"#productTitle"},
			HeadingFallback: true,
			PriceSelectors: []string{
				".a-price .a-offscreen",
				"#priceblock_ourprice",
				"#priceblock_dealprice",
				".a-size-medium.a-color-price",
			},
			PriceHandlers: []ElementHandler{jsonLDPriceHandler},
		},
		{
			// eBay item page, current and legacy layouts
			Platform:        models.PlatformEbay,
			TitleSelectors:  []string{"h1.x-item-title__mainTitle", "#itemTitle"},
			TitlePrefixes:   []string{"Details about"},
			HeadingFallback: true,
			PriceSelectors: []string{
				"div.x-price-primary",
				"#prcIsum",
				"span.notranslate",
				"span[itemprop='price']",
			},
			PriceHandlers: []ElementHandler{dollarTextHandler, jsonLDPriceHandler},
		},
	}
}
