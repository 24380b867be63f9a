package parser

import (
	"regexp"
	"strings"

	"github.com/opensheets/companion/internal/model"
)

// bank enumerates the sources with dedicated pattern sets. The dispatch is
// a closed switch so that adding a bank is a compile-checked change.
type bank int

const (
	bankUnknown bank = iota
	bankNubank
	bankInter
	bankItau
	bankBradesco
	bankBB
	bankSantander
	bankC6
)

func bankForSource(sourceID string) bank {
	switch sourceID {
	case "com.nu.production":
		return bankNubank
	case "br.com.intermedium":
		return bankInter
	case "com.itau":
		return bankItau
	case "com.bradesco":
		return bankBradesco
	case "br.com.bb.android":
		return bankBB
	case "com.santander.app":
		return bankSantander
	case "com.c6bank.app":
		return bankC6
	default:
		return bankUnknown
	}
}

// extractBank runs the bank's pattern set against fullText. The second
// return value is false when the bank has no match (or no dedicated
// patterns), in which case the caller falls back to the generic extractor.
func extractBank(b bank, fullText string) (model.ParsedTransaction, bool) {
	switch b {
	case bankNubank:
		return extractNubank(fullText)
	case bankInter:
		return extractInter(fullText)
	case bankItau:
		return extractItau(fullText)
	case bankBradesco:
		return extractBradesco(fullText)
	case bankBB, bankSantander, bankC6:
		// Known sources without template-stable notifications so far;
		// the generic extractor handles them.
		return model.ParsedTransaction{}, false
	case bankUnknown:
		return model.ParsedTransaction{}, false
	default:
		return model.ParsedTransaction{}, false
	}
}

// Nubank: "Compra de R$ 10,00 APROVADA em ESTABELECIMENTO para cartão final 1234"
// followed by the debit variant "Compra no débito de R$ 10,00 em ESTABELECIMENTO".
// Pattern order is a confidence ranking; the credit template carries the
// card digits and must win when both could match.
var (
	nubankCreditPattern = regexp.MustCompile(`[Cc]ompra de R\$\s*([\d.,]+)\s*(?:APROVADA|aprovada)\s*em\s+(.+?)\s+para.*final\s*(\d{4})`)
	nubankDebitPattern  = regexp.MustCompile(`[Cc]ompra no débito de R\$\s*([\d.,]+)\s*em\s+(.+)`)
)

func extractNubank(fullText string) (model.ParsedTransaction, bool) {
	if m := nubankCreditPattern.FindStringSubmatch(fullText); m != nil {
		return model.ParsedTransaction{
			Amount:         normalizeAmount(m[1]),
			MerchantName:   cleanBankMerchant(m[2]),
			CardLastDigits: strPtr(m[3]),
			Direction:      dirPtr(model.DirectionExpense),
		}, true
	}

	if m := nubankDebitPattern.FindStringSubmatch(fullText); m != nil {
		return model.ParsedTransaction{
			Amount:       normalizeAmount(m[1]),
			MerchantName: cleanBankMerchant(m[2]),
			Direction:    dirPtr(model.DirectionExpense),
		}, true
	}

	return model.ParsedTransaction{}, false
}

// Inter: "Você gastou R$ 10,00 no ESTABELECIMENTO. Cartão •••• 1234"
var interPurchasePattern = regexp.MustCompile(`[Vv]ocê gastou R\$\s*([\d.,]+)\s*(?:no|na|em)\s+(.+?)\.\s*[Cc]artão\s*[•*]+\s*(\d{4})`)

func extractInter(fullText string) (model.ParsedTransaction, bool) {
	m := interPurchasePattern.FindStringSubmatch(fullText)
	if m == nil {
		return model.ParsedTransaction{}, false
	}

	return model.ParsedTransaction{
		Amount:         normalizeAmount(m[1]),
		MerchantName:   cleanBankMerchant(m[2]),
		CardLastDigits: strPtr(m[3]),
		Direction:      dirPtr(model.DirectionExpense),
	}, true
}

// Itaú: "Compra aprovada no cartão final 1234 - R$ 10,00 - ESTABELECIMENTO"
var itauPurchasePattern = regexp.MustCompile(`[Cc]ompra aprovada.*final\s*(\d{4})\s*-\s*R\$\s*([\d.,]+)\s*-\s*(.+)`)

func extractItau(fullText string) (model.ParsedTransaction, bool) {
	m := itauPurchasePattern.FindStringSubmatch(fullText)
	if m == nil {
		return model.ParsedTransaction{}, false
	}

	return model.ParsedTransaction{
		Amount:         normalizeAmount(m[2]),
		MerchantName:   cleanBankMerchant(m[3]),
		CardLastDigits: strPtr(m[1]),
		Direction:      dirPtr(model.DirectionExpense),
	}, true
}

// Bradesco: "COMPRA CARTAO FINAL 1234 VALOR RS 10,00 ESTABELECIMENTO AUTORIZADA"
var bradescoPurchasePattern = regexp.MustCompile(`(?i)COMPRA.*FINAL\s*(\d{4}).*(?:VALOR|RS)\s*(?:RS)?\s*([\d.,]+)\s*(.+?)\s*AUTORIZADA`)

func extractBradesco(fullText string) (model.ParsedTransaction, bool) {
	m := bradescoPurchasePattern.FindStringSubmatch(fullText)
	if m == nil {
		return model.ParsedTransaction{}, false
	}

	return model.ParsedTransaction{
		Amount:         normalizeAmount(m[2]),
		MerchantName:   cleanBankMerchant(m[3]),
		CardLastDigits: strPtr(m[1]),
		Direction:      dirPtr(model.DirectionExpense),
	}, true
}

func cleanBankMerchant(raw string) *string {
	merchant := strings.TrimSpace(raw)
	if merchant == "" {
		return nil
	}
	if len([]rune(merchant)) > maxMerchantLen {
		merchant = string([]rune(merchant)[:maxMerchantLen])
	}
	return &merchant
}
