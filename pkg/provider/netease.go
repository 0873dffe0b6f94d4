package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/identity"
	"github.com/quantlab/stockfeed/pkg/logging"
	"github.com/quantlab/stockfeed/pkg/schema"
	"github.com/quantlab/stockfeed/pkg/transport"
)

// NeteaseBaseURL is the production quote endpoint.
const NeteaseBaseURL = "http://api.money.126.net"

// Netease is a direct-fetch adapter for the money.126.net feed API. The
// payload is JSON keyed by symbol with nested quote fields.
type Netease struct {
	tr        *transport.Transport
	baseURL   string
	pacingKey string
	logger    zerolog.Logger
}

// NewNetease creates the adapter. An empty baseURL selects production.
func NewNetease(tr *transport.Transport, baseURL string) *Netease {
	if baseURL == "" {
		baseURL = NeteaseBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Netease{
		tr:        tr,
		baseURL:   baseURL,
		pacingKey: hostOf(baseURL) + "/data/feed",
		logger:    logging.NewLogger("provider.netease"),
	}
}

func (n *Netease) Name() string { return "netease" }

func (n *Netease) Descriptor() schema.ProviderDescriptor {
	return schema.ProviderDescriptor{
		Name:          n.Name(),
		SuccessRate:   0.7,
		CanFetchQuote: true,
	}
}

// Universe is not served by this provider.
func (n *Netease) Universe(ctx context.Context) ([]schema.Listing, error) {
	return nil, nil
}

// Info is not served by this provider.
func (n *Netease) Info(ctx context.Context, symbol string) (schema.ReferenceInfo, error) {
	return schema.ReferenceInfo{}, nil
}

// Quote fetches and decodes the per-symbol JSON feed. A body without the
// symbol key, or one that does not decode, is an empty result.
func (n *Netease) Quote(ctx context.Context, symbol string) (schema.Quote, error) {
	resp, err := n.tr.Execute(ctx, transport.Request{
		URL:       n.baseURL + "/data/feed/" + symbol + "/money.api",
		Kind:      identity.KindAPI,
		PacingKey: n.pacingKey,
	})
	if err != nil {
		return schema.Quote{}, err
	}

	var payload map[string]struct {
		Name    string  `json:"name"`
		Price   float64 `json:"price"`
		Percent float64 `json:"percent"`
		Volume  float64 `json:"volume"`
		Amount  float64 `json:"amount"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		n.logger.Debug().Str("symbol", symbol).Err(err).Msg("Payload did not decode")
		return schema.Quote{}, nil
	}

	entry, ok := payload[symbol]
	if !ok || entry.Price == 0 {
		return schema.Quote{}, nil
	}

	return schema.Quote{
		Symbol:     symbol,
		Name:       entry.Name,
		Price:      entry.Price,
		ChangePct:  entry.Percent,
		Volume:     int64(entry.Volume),
		Amount:     entry.Amount,
		Source:     n.Name(),
		ObservedAt: time.Now(),
	}, nil
}
