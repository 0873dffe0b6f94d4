package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/quantlab/stockfeed/pkg/schema"
)

// mapSource serves quotes from a fixed symbol map.
type mapSource struct {
	name     string
	bySymbol map[string]schema.Quote
}

func (s *mapSource) Name() string { return s.name }

func (s *mapSource) Descriptor() schema.ProviderDescriptor {
	return schema.ProviderDescriptor{Name: s.name, CanFetchQuote: true}
}

func (s *mapSource) Quote(ctx context.Context, symbol string) (schema.Quote, error) {
	return s.bySymbol[symbol], nil
}

func (s *mapSource) Info(ctx context.Context, symbol string) (schema.ReferenceInfo, error) {
	return schema.ReferenceInfo{}, nil
}

func (s *mapSource) Universe(ctx context.Context) ([]schema.Listing, error) {
	return nil, nil
}

func TestQuotes_ResultsInInputOrder(t *testing.T) {
	src := &mapSource{
		name: "primary",
		bySymbol: map[string]schema.Quote{
			"000001": {Symbol: "000001", Name: "平安银行", Price: 12.34, Source: "primary"},
			"600519": {Symbol: "600519", Name: "贵州茅台", Price: 1688.0, Source: "primary"},
		},
	}

	f := New(fastFetcherConfig(src))
	symbols := []string{"000001", "600519", "999999"}

	results := f.Quotes(context.Background(), symbols, BatchConfig{MaxConcurrency: 2})
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	for i, symbol := range symbols {
		if results[i].Symbol != symbol {
			t.Errorf("results[%d].Symbol = %q, want %q", i, results[i].Symbol, symbol)
		}
	}

	if results[0].Err != nil || results[0].Quote.Price != 12.34 {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Err != nil || results[1].Quote.Price != 1688.0 {
		t.Errorf("results[1] = %+v", results[1])
	}

	// The unlisted symbol fails alone without aborting the batch.
	if !errors.Is(results[2].Err, ErrAllSourcesExhausted) {
		t.Errorf("results[2].Err = %v, want ErrAllSourcesExhausted", results[2].Err)
	}
}

func TestQuotes_DefaultsAppliedForZeroConfig(t *testing.T) {
	src := &mapSource{
		name: "primary",
		bySymbol: map[string]schema.Quote{
			"000001": {Symbol: "000001", Name: "平安银行", Price: 12.34, Source: "primary"},
		},
	}

	f := New(fastFetcherConfig(src))
	results := f.Quotes(context.Background(), []string{"000001"}, BatchConfig{})
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
}
