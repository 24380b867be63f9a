package parser

import (
	"encoding/json"
	"strings"

	"github.com/opensheets/companion/internal/model"
)

// DecodeKeywords parses the keyword JSON stored on an AppConfig. Malformed
// configuration is recovered locally as an empty list, never propagated.
func DecodeKeywords(raw string) []string {
	if raw == "" {
		return nil
	}

	var keywords []string
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
		return nil
	}
	return keywords
}

// ShouldCapture decides whether a raw notification is worth full parsing.
// Pure function of its inputs: a disabled source captures nothing, an
// enabled source with no keywords captures everything, and otherwise at
// least one keyword must occur case-insensitively in the text or title.
func ShouldCapture(config model.AppConfig, title *string, text string) bool {
	if !config.Enabled {
		return false
	}

	keywords := DecodeKeywords(config.Keywords)
	if len(keywords) == 0 {
		return true
	}

	lowerText := strings.ToLower(text)
	var lowerTitle string
	if title != nil {
		lowerTitle = strings.ToLower(*title)
	}

	for _, keyword := range keywords {
		lower := strings.ToLower(keyword)
		if lower == "" {
			continue
		}
		if strings.Contains(lowerText, lower) || strings.Contains(lowerTitle, lower) {
			return true
		}
	}

	return false
}
