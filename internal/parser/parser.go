// Package parser turns heterogeneous banking notification text into typed
// transaction facts. It layers bank-specific pattern sets, which trade
// recall for precision on known templates, over a generic extractor that
// trades precision for coverage on everything else.
package parser

import (
	"strconv"
	"strings"

	"github.com/opensheets/companion/internal/model"
)

// Extractor parses notification text into a ParsedTransaction. It is
// stateless and safe for concurrent use.
type Extractor struct{}

// NewExtractor creates a new notification text extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses a notification from the given source. It never fails:
// fields that cannot be extracted are simply left unset.
func (e *Extractor) Extract(sourceID string, title *string, text string) model.ParsedTransaction {
	fullText := joinTitleText(title, text)

	// A bank-specific match is trusted only when it produced an amount;
	// a matched merchant or card alone falls through to the generic path.
	if b := bankForSource(sourceID); b != bankUnknown {
		if parsed, ok := extractBank(b, fullText); ok && parsed.Amount != nil {
			return parsed
		}
	}

	return extractGeneric(fullText)
}

func joinTitleText(title *string, text string) string {
	if title == nil || *title == "" {
		return text
	}
	return *title + " " + text
}

// normalizeAmount converts a Brazilian-format amount string ("1.234,56")
// to a float. Returns nil if the normalized string is not a number.
func normalizeAmount(raw string) *float64 {
	normalized := strings.ReplaceAll(raw, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return nil
	}
	return &value
}

func strPtr(s string) *string {
	return &s
}

func dirPtr(d model.Direction) *model.Direction {
	return &d
}
