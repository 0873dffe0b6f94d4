// Package eastmoney is a small client for the eastmoney push2 quote API,
// the bulk tabular backend used by the delegate provider. It exposes the
// full A-share spot table and per-stock reference items.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/identity"
	"github.com/quantlab/stockfeed/pkg/logging"
	"github.com/quantlab/stockfeed/pkg/transport"
)

// DefaultBaseURL is the production push2 endpoint.
const DefaultBaseURL = "http://push2.eastmoney.com"

// Item keys returned by Individual. Names follow the upstream vendor's
// item labels.
const (
	ItemCode        = "股票代码"
	ItemShortName   = "股票简称"
	ItemIndustry    = "行业"
	ItemTotalShares = "总股本"
	ItemFloatShares = "流通股本"
	ItemMarketValue = "总市值"
	ItemListingDate = "上市时间"
)

// SpotRow is one row of the A-share spot table.
type SpotRow struct {
	Code      string
	Name      string
	Price     float64
	ChangePct float64
	Volume    int64
	Amount    float64
}

// Client fetches tabular data through the resilient transport.
type Client struct {
	tr      *transport.Transport
	baseURL string
	logger  zerolog.Logger
}

// NewClient creates a client. An empty baseURL selects the production
// endpoint.
func NewClient(tr *transport.Transport, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		tr:      tr,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.NewLogger("eastmoney"),
	}
}

// Spot returns the full A-share spot table. A response with no data yields
// an empty slice and no error.
func (c *Client) Spot(ctx context.Context) ([]SpotRow, error) {
	url := c.baseURL + "/api/qt/clist/get" +
		"?pn=1&pz=6000&po=1&np=1&fltt=2&invt=2&fid=f3" +
		"&fs=m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23" +
		"&fields=f2,f3,f5,f6,f12,f14"

	resp, err := c.tr.Execute(ctx, transport.Request{
		URL:       url,
		Kind:      identity.KindAPI,
		PacingKey: "push2.eastmoney.com/api/qt/clist/get",
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data *struct {
			Total int                `json:"total"`
			Diff  []map[string]any   `json:"diff"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("parse spot table: %w", err)
	}
	if payload.Data == nil {
		return nil, nil
	}

	rows := make([]SpotRow, 0, len(payload.Data.Diff))
	for _, raw := range payload.Data.Diff {
		code := asString(raw["f12"])
		if code == "" {
			continue
		}
		rows = append(rows, SpotRow{
			Code:      code,
			Name:      asString(raw["f14"]),
			Price:     asFloat(raw["f2"]),
			ChangePct: asFloat(raw["f3"]),
			Volume:    int64(asFloat(raw["f5"])),
			Amount:    asFloat(raw["f6"]),
		})
	}
	c.logger.Debug().Int("rows", len(rows)).Msg("Fetched spot table")
	return rows, nil
}

// Individual returns per-stock reference items keyed by vendor item label.
// A response with no data yields an empty map and no error.
func (c *Client) Individual(ctx context.Context, symbol string) (map[string]string, error) {
	url := c.baseURL + "/api/qt/stock/get" +
		"?invt=2&fltt=2&fields=f57,f58,f84,f85,f116,f127,f189" +
		"&secid=" + secID(symbol)

	resp, err := c.tr.Execute(ctx, transport.Request{
		URL:       url,
		Kind:      identity.KindAPI,
		PacingKey: "push2.eastmoney.com/api/qt/stock/get",
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("parse stock info: %w", err)
	}
	if payload.Data == nil {
		return nil, nil
	}

	items := make(map[string]string)
	put := func(item, field string) {
		if v := asString(payload.Data[field]); v != "" && v != "-" {
			items[item] = v
		}
	}
	put(ItemCode, "f57")
	put(ItemShortName, "f58")
	put(ItemTotalShares, "f84")
	put(ItemFloatShares, "f85")
	put(ItemMarketValue, "f116")
	put(ItemIndustry, "f127")
	put(ItemListingDate, "f189")
	return items, nil
}

// secID maps a bare symbol to the push2 market-qualified id: Shanghai
// symbols (6xxxxx) are market 1, Shenzhen symbols are market 0.
func secID(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "1." + symbol
	}
	return "0." + symbol
}

// The push2 API reports halted or missing numeric fields as the string "-",
// so raw values need coercion in both directions.

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
