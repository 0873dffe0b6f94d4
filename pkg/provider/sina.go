package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/identity"
	"github.com/quantlab/stockfeed/pkg/logging"
	"github.com/quantlab/stockfeed/pkg/schema"
	"github.com/quantlab/stockfeed/pkg/transport"
)

// SinaBaseURL is the production quote endpoint.
const SinaBaseURL = "http://hq.sinajs.cn"

// shanghaiTime is the exchange timezone used for the payload's date/time
// fields. Falls back to a fixed offset when tzdata is unavailable.
var shanghaiTime = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}()

// Sina is a direct-fetch adapter for the hq.sinajs.cn quote service. The
// payload is `var hq_str_<mkt><sym>="f0,f1,...,f31";` with fixed field
// positions.
type Sina struct {
	tr        *transport.Transport
	baseURL   string
	pacingKey string
	logger    zerolog.Logger
}

// NewSina creates the adapter. An empty baseURL selects production.
func NewSina(tr *transport.Transport, baseURL string) *Sina {
	if baseURL == "" {
		baseURL = SinaBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Sina{
		tr:        tr,
		baseURL:   baseURL,
		pacingKey: hostOf(baseURL) + "/list",
		logger:    logging.NewLogger("provider.sina"),
	}
}

func (s *Sina) Name() string { return "sina" }

func (s *Sina) Descriptor() schema.ProviderDescriptor {
	return schema.ProviderDescriptor{
		Name:            s.Name(),
		SuccessRate:     0.7,
		CanListUniverse: true,
		CanFetchInfo:    false,
		CanFetchQuote:   true,
	}
}

// Universe returns the static sample: the service has no bulk listing
// endpoint.
func (s *Sina) Universe(ctx context.Context) ([]schema.Listing, error) {
	return SampleUniverse(), nil
}

// Info is not served by this provider.
func (s *Sina) Info(ctx context.Context, symbol string) (schema.ReferenceInfo, error) {
	return schema.ReferenceInfo{}, nil
}

// Quote parses the comma-delimited payload. Fewer than 32 fields is an
// empty result.
func (s *Sina) Quote(ctx context.Context, symbol string) (schema.Quote, error) {
	resp, err := s.tr.Execute(ctx, transport.Request{
		URL:       s.baseURL + "/list=" + MarketPrefix(symbol) + symbol,
		Kind:      identity.KindAPI,
		PacingKey: s.pacingKey,
	})
	if err != nil {
		return schema.Quote{}, err
	}

	body := string(resp.Body)
	if !strings.Contains(body, "var hq_str_") {
		s.logger.Debug().Str("symbol", symbol).Msg("Payload missing expected marker")
		return schema.Quote{}, nil
	}
	eq := strings.Index(body, "=")
	if eq < 0 {
		return schema.Quote{}, nil
	}
	data := strings.Trim(body[eq+1:], "\";\n\r ")
	parts := strings.Split(data, ",")
	if len(parts) < 32 {
		return schema.Quote{}, nil
	}

	price := floatField(parts, 3)
	prevClose := floatField(parts, 2)

	q := schema.Quote{
		Symbol:     symbol,
		Name:       fieldAt(parts, 0),
		Open:       floatField(parts, 1),
		Price:      price,
		High:       floatField(parts, 4),
		Low:        floatField(parts, 5),
		Volume:     int64(floatField(parts, 8)),
		Amount:     floatField(parts, 9),
		Source:     s.Name(),
		ObservedAt: observedAt(fieldAt(parts, 30), fieldAt(parts, 31)),
	}
	// The payload carries no change field; derive it from previous close.
	if prevClose > 0 && price > 0 {
		q.ChangePct = (price - prevClose) / prevClose * 100
	}
	return q, nil
}

// observedAt parses the payload's own date and time fields, falling back
// to the local clock when they are malformed.
func observedAt(date, clock string) time.Time {
	if date != "" && clock != "" {
		if ts, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, shanghaiTime); err == nil {
			return ts
		}
	}
	return time.Now()
}
