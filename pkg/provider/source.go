// Package provider defines the capability interface every market data
// provider implements, and the adapters that translate each provider's
// bespoke wire format into the common schema.
//
// Adapters distinguish "empty result" (the provider has nothing for this
// symbol: zero value, nil error) from "error" (network or transport
// failure: non-nil error). Malformed payloads and short field lists are
// empty results, never crashes.
package provider

import (
	"context"
	"strconv"
	"strings"

	"github.com/quantlab/stockfeed/pkg/schema"
)

// Source is the capability set common to all providers.
type Source interface {
	Name() string
	Descriptor() schema.ProviderDescriptor

	// Universe lists tradable symbols. Providers without a bulk endpoint
	// return a small static sample.
	Universe(ctx context.Context) ([]schema.Listing, error)

	// Info fetches static reference data for one symbol.
	Info(ctx context.Context, symbol string) (schema.ReferenceInfo, error)

	// Quote fetches a near-real-time quote for one symbol.
	Quote(ctx context.Context, symbol string) (schema.Quote, error)
}

// MarketPrefix returns the exchange prefix for a bare symbol: Shanghai
// listings (6xxxxx) are "sh", everything else trades in Shenzhen.
func MarketPrefix(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "sh"
	}
	return "sz"
}

// sampleListings is the static fallback universe for providers that have
// no bulk listing endpoint.
var sampleListings = []schema.Listing{
	{Symbol: "000001", Name: "平安银行"},
	{Symbol: "000002", Name: "万科A"},
	{Symbol: "600000", Name: "浦发银行"},
	{Symbol: "600036", Name: "招商银行"},
	{Symbol: "600519", Name: "贵州茅台"},
}

// SampleUniverse returns a copy of the static sample listing.
func SampleUniverse() []schema.Listing {
	out := make([]schema.Listing, len(sampleListings))
	copy(out, sampleListings)
	return out
}

// fieldAt returns the field at position i, or "" when the position is out
// of range. Out-of-range access is "unknown", never a crash.
func fieldAt(parts []string, i int) string {
	if i < 0 || i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}

// floatField parses the field at position i. Empty and dash values are the
// provider's way of reporting "no data" and become 0.
func floatField(parts []string, i int) float64 {
	s := fieldAt(parts, i)
	if s == "" || s == "-" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// optFloatField parses the field at position i into an optional value:
// empty, dash, out-of-range, and malformed fields are all absent.
func optFloatField(parts []string, i int) *float64 {
	s := fieldAt(parts, i)
	if s == "" || s == "-" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
