package parser

import (
	"regexp"
	"strings"

	"github.com/opensheets/companion/internal/model"
)

const (
	maxMerchantLen = 50
	minMerchantLen = 2
)

func extractGeneric(fullText string) model.ParsedTransaction {
	return model.ParsedTransaction{
		Amount:         extractAmount(fullText),
		MerchantName:   extractMerchant(fullText),
		CardLastDigits: extractCardDigits(fullText),
		Direction:      dirPtr(inferDirection(fullText)),
	}
}

// Amount pattern order is a confidence ranking and must be preserved:
// thousands-separated R$ first, plain R$, the loose "RS" prefix, and
// finally the "reais" suffix form.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`R\$\s*([\d.]+,\d{2})`),
	regexp.MustCompile(`R\$\s*(\d+,\d{2})`),
	regexp.MustCompile(`(?i)RS\s*([\d.]+,\d{2})`),
	regexp.MustCompile(`(?i)([\d.]+,\d{2})\s*reais`),
}

func extractAmount(text string) *float64 {
	for _, pattern := range amountPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return normalizeAmount(m[1])
		}
	}
	return nil
}

// Merchant extraction tiers, most specific first: amount-anchored,
// verb-anchored, then the generic preposition form.
var (
	merchantAmountAnchored = regexp.MustCompile(`(?i)R\$\s*[\d.,]+\s+em\s+([\p{L}\d][\p{L}\d\s*.&-]*)`)
	merchantVerbAnchored   = regexp.MustCompile(`(?i)(?:gastou|comprou)\s+R\$\s*[\d.,]+\s+(?:em|no|na)\s+([\p{L}\d][\p{L}\d\s*.&-]*)`)
	merchantGeneric        = regexp.MustCompile(`(?i)\b(?:em|no|na)\s+([\p{L}\d][\p{L}\d\s*.&-]*)`)
)

// Terms that follow "em/no/na" in templated text without naming a merchant.
var merchantFalsePositives = map[string]bool{
	"crédito":  true,
	"credito":  true,
	"débito":   true,
	"debito":   true,
	"pix":      true,
	"fatura":   true,
	"boleto":   true,
	"conta":    true,
	"cartão":   true,
	"cartao":   true,
	"parcela":  true,
	"parcelas": true,
}

// Everything after these markers belongs to the notification template, not
// the merchant name. Matching is case-insensitive on the candidate.
var merchantEndMarkers = []string{
	" para o cartão",
	" para cartão",
	" no cartão",
	" com o cartão",
	" no dia ",
	" - r$",
}

func extractMerchant(text string) *string {
	if m := merchantAmountAnchored.FindStringSubmatch(text); m != nil {
		if merchant := cleanMerchant(m[1]); merchant != nil {
			return merchant
		}
	}

	if m := merchantVerbAnchored.FindStringSubmatch(text); m != nil {
		if merchant := cleanMerchant(m[1]); merchant != nil {
			return merchant
		}
	}

	// The generic preposition form matches templated text too often, so
	// scan every candidate; cleanMerchant rejects the false positives.
	for _, m := range merchantGeneric.FindAllStringSubmatch(text, -1) {
		if merchant := cleanMerchant(m[1]); merchant != nil {
			return merchant
		}
	}

	return nil
}

func firstWordOf(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// cleanMerchant truncates a candidate at the earliest end-of-merchant
// marker or punctuation, trims it, and applies the length bounds. A
// candidate whose first word is a known false-positive term is rejected
// regardless of which tier produced it.
func cleanMerchant(candidate string) *string {
	if merchantFalsePositives[strings.ToLower(firstWordOf(candidate))] {
		return nil
	}
	cut := len(candidate)

	lower := strings.ToLower(candidate)
	for _, marker := range merchantEndMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	if idx := strings.IndexAny(candidate, ".,;:!?"); idx >= 0 && idx < cut {
		cut = idx
	}

	merchant := strings.TrimSpace(candidate[:cut])
	merchant = strings.TrimRight(merchant, "-.,;: ")

	runes := []rune(merchant)
	if len(runes) < minMerchantLen {
		return nil
	}
	if len(runes) > maxMerchantLen {
		merchant = string(runes[:maxMerchantLen])
	}

	return &merchant
}

// Direction keyword sets. Income terms take precedence over expense terms;
// text matching neither defaults to expense. That default intentionally
// matches historical behavior even though it misclassifies unrecognized
// income templates.
var expenseKeywords = []string{
	"compra", "débito", "pagamento", "saque", "transferência enviada",
	"pix enviado", "boleto", "fatura", "cobrança",
}

var incomeKeywords = []string{
	"recebido", "recebeu", "depósito", "transferência recebida",
	"pix recebido", "crédito", "estorno", "cashback",
}

func inferDirection(text string) model.Direction {
	lower := strings.ToLower(text)

	for _, keyword := range incomeKeywords {
		if strings.Contains(lower, keyword) {
			return model.DirectionIncome
		}
	}

	for _, keyword := range expenseKeywords {
		if strings.Contains(lower, keyword) {
			return model.DirectionExpense
		}
	}

	return model.DirectionExpense
}

// Card digit pattern order: explicit "final", masked digits, "cartão", and
// last a bare trailing 4-digit group.
var cardPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)final\s*(\d{4})`),
	regexp.MustCompile(`[•*]+\s*(\d{4})`),
	regexp.MustCompile(`(?i)cartão\s*(\d{4})`),
	regexp.MustCompile(`(\d{4})\s*$`),
}

func extractCardDigits(text string) *string {
	for _, pattern := range cardPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return strPtr(m[1])
		}
	}
	return nil
}
