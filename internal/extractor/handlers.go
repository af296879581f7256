package extractor

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	headingSelectors = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

	dollarPattern = regexp.MustCompile(`\$\d+(\.\d{2})?`)
)

// applyHandlers returns the first non-empty handler result
func applyHandlers(root *goquery.Selection, handlers []ElementHandler) string {
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if result := handler(root); result != "" {
			return result
		}
	}
	return ""
}

// selectorHandler returns the trimmed text of the first element matching selector
func selectorHandler(selector string) ElementHandler {
	return func(root *goquery.Selection) string {
		sel := root.Find(selector).First()
		if sel.Length() == 0 {
			return ""
		}
		return strings.TrimSpace(sel.Text())
	}
}

// headingHandler returns the text of the first non-empty heading, h1 first
func headingHandler(root *goquery.Selection) string {
	for _, selector := range headingSelectors {
		var text string
		root.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text = strings.TrimSpace(s.Text())
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}

// dollarTextHandler scans text nodes outside script and style for a "$12.34" amount
func dollarTextHandler(root *goquery.Selection) string {
	for _, n := range root.Nodes {
		if match := findDollarText(n); match != "" {
			return match
		}
	}
	return ""
}

func findDollarText(n *html.Node) string {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
		return ""
	}
	if n.Type == html.TextNode {
		return dollarPattern.FindString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match := findDollarText(c); match != "" {
			return match
		}
	}
	return ""
}

// jsonLDPriceHandler reads offers.price from a schema.org Product block
func jsonLDPriceHandler(root *goquery.Selection) string {
	var price string
	root.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload interface{}
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		price = findProductPrice(payload)
		return price == ""
	})
	return price
}

func findProductPrice(v interface{}) string {
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			if price := findProductPrice(item); price != "" {
				return price
			}
		}
	case map[string]interface{}:
		if graph, ok := node["@graph"]; ok {
			if price := findProductPrice(graph); price != "" {
				return price
			}
		}
		if isProductType(node["@type"]) {
			return offerPrice(node["offers"])
		}
	}
	return ""
}

func isProductType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func offerPrice(offers interface{}) string {
	switch v := offers.(type) {
	case []interface{}:
		for _, offer := range v {
			if price := offerPrice(offer); price != "" {
				return price
			}
		}
	case map[string]interface{}:
		for _, key := range []string{"price", "lowPrice"} {
			switch p := v[key].(type) {
			case string:
				if p != "" {
					return p
				}
			case float64:
				return strconv.FormatFloat(p, 'f', -1, 64)
			}
		}
	}
	return ""
}
