package model

import "time"

// AppConfig describes one monitored notification source. Keywords holds a
// JSON array of trigger terms; an empty list captures everything from an
// enabled source.
type AppConfig struct {
	CreatedAt   time.Time
	SourceID    string
	DisplayName string
	Keywords    string
	Enabled     bool
}

// DefaultTriggerKeywords is the built-in trigger list applied when a source
// has no keyword configuration of its own.
const DefaultTriggerKeywords = "compra,R$,pix,transferência,débito,crédito,saque,pagamento,boleto,fatura"

// DefaultAppConfigs returns the built-in list of monitored banking apps,
// seeded on first run when the config table is empty.
func DefaultAppConfigs() []AppConfig {
	names := []struct {
		sourceID    string
		displayName string
	}{
		{"com.nu.production", "Nubank"},
		{"br.com.intermedium", "Inter"},
		{"com.itau", "Itaú"},
		{"com.bradesco", "Bradesco"},
		{"br.com.bb.android", "Banco do Brasil"},
		{"com.santander.app", "Santander"},
		{"br.com.gabba.Caixa", "Caixa"},
		{"com.picpay", "PicPay"},
		{"com.mercadopago.wallet", "Mercado Pago"},
		{"com.c6bank.app", "C6 Bank"},
		{"br.com.original.bank", "Banco Original"},
		{"com.neon", "Neon"},
		{"br.com.xpi.investor", "XP Investimentos"},
		{"com.btgpactual.app", "BTG Pactual"},
		{"br.com.safra.SafraWallet", "Safra"},
	}

	configs := make([]AppConfig, 0, len(names))
	for _, n := range names {
		configs = append(configs, AppConfig{
			SourceID:    n.sourceID,
			DisplayName: n.displayName,
			Enabled:     true,
			Keywords:    "[]",
			CreatedAt:   time.Now(),
		})
	}
	return configs
}
