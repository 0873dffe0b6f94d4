// Package schema defines the normalized market data types shared by all
// provider adapters. Every provider, whatever its wire format, reshapes its
// output into these types at the adapter boundary.
package schema

import "time"

// Listing is one entry of the tradable universe.
type Listing struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Quote is a normalized near-real-time snapshot for one security.
// Instances are immutable once returned; a refresh produces a fresh value.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Volume    int64   `json:"volume"`
	Amount    float64 `json:"amount"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`

	// PERatio and MarketValue are nil when the provider reported an
	// empty or dash value, or does not carry the field at all.
	PERatio     *float64 `json:"pe_ratio,omitempty"`
	MarketValue *float64 `json:"market_value,omitempty"`

	// Source is the name of the provider that produced this quote.
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

// Empty reports whether the quote carries no data. Adapters return a zero
// Quote to signal "provider has nothing for this symbol".
func (q Quote) Empty() bool {
	return q.Symbol == ""
}

// Valid reports whether the quote is usable by callers: it names a symbol
// and its price fields are non-negative.
func (q Quote) Valid() bool {
	if q.Empty() {
		return false
	}
	return q.Price >= 0 && q.Open >= 0 && q.High >= 0 && q.Low >= 0
}

// ReferenceInfo is static reference data for one security. Coverage varies
// by provider; fields a provider does not carry stay zero and any
// provider-specific extras land in Ext.
type ReferenceInfo struct {
	Symbol      string `json:"symbol"`
	ShortName   string `json:"short_name"`
	Industry    string `json:"industry"`
	TotalShares string `json:"total_shares"`
	FloatShares string `json:"float_shares"`
	ListingDate string `json:"listing_date"`

	// Ext holds provider-specific extension fields, merged at the
	// adapter boundary.
	Ext map[string]string `json:"ext,omitempty"`

	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

// Empty reports whether the info carries no data.
func (r ReferenceInfo) Empty() bool {
	return r.Symbol == ""
}

// ProviderDescriptor describes one provider: its place in the fallback
// order and what it can do. SuccessRate is informational only and is never
// consulted when ordering providers.
type ProviderDescriptor struct {
	Name            string  `json:"name"`
	Priority        int     `json:"priority"`
	SuccessRate     float64 `json:"success_rate"`
	CanListUniverse bool    `json:"can_list_universe"`
	CanFetchInfo    bool    `json:"can_fetch_info"`
	CanFetchQuote   bool    `json:"can_fetch_quote"`
}

// SuccessPattern records per-endpoint diagnostic counters. Observability
// only; correctness never depends on it.
type SuccessPattern struct {
	Endpoint     string            `json:"endpoint"`
	Method       string            `json:"method"`
	SuccessCount int64             `json:"success_count"`
	LastSuccess  time.Time         `json:"last_success"`
	LastHeaders  map[string]string `json:"last_headers"`
}
