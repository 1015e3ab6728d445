package domain

import "sort"

// Gateway source tags. The Amex settlement batch disburses on its own
// bank line even though it shares a Braintree merchant account, so it
// carries a distinct tag.
const (
	GatewayBraintree     = "braintree"
	GatewayBraintreeAmex = "braintree_amex"
	GatewayGoCardless    = "gocardless"
	GatewayStripe        = "stripe"
)

// HomeCurrency is the fallback when a merchant account or payout row
// carries no currency marker.
const HomeCurrency = "GBP"

// PayoutGranularGateways lists gateways whose export is already one row
// per payout; their rows become groups directly, without aggregation.
var PayoutGranularGateways = map[string]bool{
	GatewayGoCardless: true,
	GatewayStripe:     true,
}

// DerivedGatewaySources maps settlement-variant source tags to the
// stored gateway they are split from during aggregation. No export row
// ever carries a derived tag, so the fetch phase pulls the base gateway
// instead.
var DerivedGatewaySources = map[string]string{
	GatewayBraintreeAmex: GatewayBraintree,
}

// BankSourceConfig describes one bank ledger source: its currency and
// the gateways that plausibly deposit into it.
type BankSourceConfig struct {
	Currency string
	Gateways []string
}

// AllowsGateway reports whether the gateway is in the source's allow-list.
func (c BankSourceConfig) AllowsGateway(gateway string) bool {
	for _, g := range c.Gateways {
		if g == gateway {
			return true
		}
	}
	return false
}

// DefaultBankSources is the fixed set of known bank-account sources.
func DefaultBankSources() map[string]BankSourceConfig {
	return map[string]BankSourceConfig{
		"bank_main_gbp": {
			Currency: "GBP",
			Gateways: []string{GatewayBraintree, GatewayBraintreeAmex, GatewayGoCardless, GatewayStripe},
		},
		"bank_main_eur": {
			Currency: "EUR",
			Gateways: []string{GatewayBraintree, GatewayBraintreeAmex, GatewayGoCardless, GatewayStripe},
		},
		"bank_ops_usd": {
			Currency: "USD",
			Gateways: []string{GatewayBraintree, GatewayStripe},
		},
	}
}

// DefaultBankSourceNames returns the default run set in stable order.
func DefaultBankSourceNames() []string {
	sources := DefaultBankSources()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GatewayKeywords is one ordered hint-detection rule: the first rule
// whose keywords appear in a bank description wins.
type GatewayKeywords struct {
	Gateway  string
	Keywords []string
}

// DefaultGatewayKeywords returns the hint rules. Amex markers come
// before the generic Braintree marker so the premium batch is never
// shadowed by the broader match.
func DefaultGatewayKeywords() []GatewayKeywords {
	return []GatewayKeywords{
		{Gateway: GatewayBraintreeAmex, Keywords: []string{"amex", "american express"}},
		{Gateway: GatewayBraintree, Keywords: []string{"braintree", "paypal pro"}},
		{Gateway: GatewayGoCardless, Keywords: []string{"gocardless", "gc c1", "direct debit"}},
		{Gateway: GatewayStripe, Keywords: []string{"stripe"}},
	}
}
