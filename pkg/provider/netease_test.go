package provider

import (
	"context"
	"testing"

	"github.com/quantlab/stockfeed/internal/testutil"
)

func TestNeteaseQuote_ParsesFeedEntry(t *testing.T) {
	mock := testutil.NewMockMarket()
	defer mock.Close()

	mock.SetResponse("/data/feed/000001/money.api", testutil.MockResponse{
		Body: `{"000001":{"name":"平安银行","price":12.34,"percent":2.83,"volume":1520000,"amount":185000.5}}`,
	})

	src := NewNetease(newTestTransport(t), mock.URL())
	q, err := src.Quote(context.Background(), "000001")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	if q.Empty() {
		t.Fatal("Quote() returned empty result")
	}
	if q.Name != "平安银行" || q.Price != 12.34 || q.ChangePct != 2.83 {
		t.Errorf("quote = %+v", q)
	}
	if q.Volume != 1520000 || q.Amount != 185000.5 {
		t.Errorf("Volume/Amount = %v/%v", q.Volume, q.Amount)
	}
	if q.Source != "netease" {
		t.Errorf("Source = %q", q.Source)
	}
}

func TestNeteaseQuote_SymbolMissingFromPayload(t *testing.T) {
	mock := testutil.NewMockMarket()
	defer mock.Close()

	mock.SetResponse("/data/feed/000001/money.api", testutil.MockResponse{
		Body: `{"600000":{"name":"浦发银行","price":8.10}}`,
	})

	src := NewNetease(newTestTransport(t), mock.URL())
	q, err := src.Quote(context.Background(), "000001")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !q.Empty() {
		t.Errorf("Quote() = %+v, want empty", q)
	}
}

func TestNeteaseQuote_ZeroPriceIsEmpty(t *testing.T) {
	mock := testutil.NewMockMarket()
	defer mock.Close()

	mock.SetResponse("/data/feed/000001/money.api", testutil.MockResponse{
		Body: `{"000001":{"name":"平安银行","price":0}}`,
	})

	src := NewNetease(newTestTransport(t), mock.URL())
	q, err := src.Quote(context.Background(), "000001")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !q.Empty() {
		t.Errorf("Quote() = %+v, want empty", q)
	}
}

func TestNeteaseQuote_MalformedBodyIsEmpty(t *testing.T) {
	mock := testutil.NewMockMarket()
	defer mock.Close()

	mock.SetResponse("/data/feed/000001/money.api", testutil.MockResponse{
		Body: `<html>blocked</html>`,
	})

	src := NewNetease(newTestTransport(t), mock.URL())
	q, err := src.Quote(context.Background(), "000001")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !q.Empty() {
		t.Errorf("Quote() = %+v, want empty", q)
	}
}

func TestNeteaseDescriptor(t *testing.T) {
	src := NewNetease(newTestTransport(t), "")
	d := src.Descriptor()
	if !d.CanFetchQuote || d.CanFetchInfo || d.CanListUniverse {
		t.Errorf("descriptor = %+v, want quote-only capabilities", d)
	}

	u, err := src.Universe(context.Background())
	if err != nil || u != nil {
		t.Errorf("Universe() = %v, %v, want nil, nil", u, err)
	}
}
