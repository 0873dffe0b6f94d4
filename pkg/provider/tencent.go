package provider

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/identity"
	"github.com/quantlab/stockfeed/pkg/logging"
	"github.com/quantlab/stockfeed/pkg/schema"
	"github.com/quantlab/stockfeed/pkg/transport"
)

// TencentBaseURL is the production quote endpoint.
const TencentBaseURL = "http://qt.gtimg.cn"

// Tencent is a direct-fetch adapter for the qt.gtimg.cn quote service.
// The payload is a single assignment `v_<mkt><sym>="f0~f1~...~fN";` with
// fixed field positions.
type Tencent struct {
	tr        *transport.Transport
	baseURL   string
	pacingKey string
	logger    zerolog.Logger
}

// NewTencent creates the adapter. An empty baseURL selects production.
func NewTencent(tr *transport.Transport, baseURL string) *Tencent {
	if baseURL == "" {
		baseURL = TencentBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Tencent{
		tr:        tr,
		baseURL:   baseURL,
		pacingKey: hostOf(baseURL) + "/q",
		logger:    logging.NewLogger("provider.tencent"),
	}
}

func (t *Tencent) Name() string { return "tencent" }

func (t *Tencent) Descriptor() schema.ProviderDescriptor {
	return schema.ProviderDescriptor{
		Name:            t.Name(),
		SuccessRate:     0.9,
		CanListUniverse: true,
		CanFetchInfo:    true,
		CanFetchQuote:   true,
	}
}

// Universe returns the static sample: the service has no bulk listing
// endpoint.
func (t *Tencent) Universe(ctx context.Context) ([]schema.Listing, error) {
	return SampleUniverse(), nil
}

func (t *Tencent) fetch(ctx context.Context, symbol string) ([]string, error) {
	resp, err := t.tr.Execute(ctx, transport.Request{
		URL:       t.baseURL + "/q=" + MarketPrefix(symbol) + symbol,
		Kind:      identity.KindAPI,
		PacingKey: t.pacingKey,
	})
	if err != nil {
		return nil, err
	}

	body := string(resp.Body)
	if !strings.Contains(body, "v_") || !strings.Contains(body, "~") {
		t.logger.Debug().Str("symbol", symbol).Msg("Payload missing expected markers")
		return nil, nil
	}
	eq := strings.Index(body, "=")
	if eq < 0 {
		return nil, nil
	}
	data := strings.Trim(body[eq+1:], "\";\n\r ")
	return strings.Split(data, "~"), nil
}

// Quote parses the tilde-delimited payload. Fewer than 40 fields is an
// empty result.
func (t *Tencent) Quote(ctx context.Context, symbol string) (schema.Quote, error) {
	parts, err := t.fetch(ctx, symbol)
	if err != nil {
		return schema.Quote{}, err
	}
	if len(parts) < 40 {
		return schema.Quote{}, nil
	}

	return schema.Quote{
		Symbol:      symbol,
		Name:        fieldAt(parts, 1),
		Price:       floatField(parts, 3),
		Open:        floatField(parts, 5),
		Volume:      int64(floatField(parts, 6)),
		ChangePct:   floatField(parts, 32),
		High:        floatField(parts, 33),
		Low:         floatField(parts, 34),
		Amount:      floatField(parts, 37),
		PERatio:     optFloatField(parts, 39),
		MarketValue: optFloatField(parts, 45),
		Source:      t.Name(),
		ObservedAt:  time.Now(),
	}, nil
}

// Info extracts reference fields from the same payload. Fewer than 45
// fields is an empty result.
func (t *Tencent) Info(ctx context.Context, symbol string) (schema.ReferenceInfo, error) {
	parts, err := t.fetch(ctx, symbol)
	if err != nil {
		return schema.ReferenceInfo{}, err
	}
	if len(parts) < 45 {
		return schema.ReferenceInfo{}, nil
	}

	info := schema.ReferenceInfo{
		Symbol:      symbol,
		ShortName:   fieldAt(parts, 1),
		Industry:    fieldAt(parts, 44),
		TotalShares: fieldAt(parts, 45),
		FloatShares: fieldAt(parts, 46),
		Source:      t.Name(),
		ObservedAt:  time.Now(),
	}
	if pe := fieldAt(parts, 39); pe != "" && pe != "-" {
		info.Ext = map[string]string{"市盈率": pe}
	}
	return info, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
