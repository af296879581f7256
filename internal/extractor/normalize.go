package extractor

import (
	"strconv"
	"strings"
)

// NormalizePrice turns matched price text into a number. Every character other
// than digits and '.' is dropped; when more than one '.' remains only the last
// two dot separated segments are kept, so "1.234.56" becomes 234.56.
func NormalizePrice(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if strings.Count(cleaned, ".") > 1 {
		parts := strings.Split(cleaned, ".")
		cleaned = strings.Join(parts[len(parts)-2:], ".")
	}
	if cleaned == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
