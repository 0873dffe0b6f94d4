package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/eastmoney"
	"github.com/quantlab/stockfeed/pkg/logging"
	"github.com/quantlab/stockfeed/pkg/schema"
)

// TableClient is the surface of the bundled analytics library the delegate
// adapter reshapes. eastmoney.Client implements it.
type TableClient interface {
	Spot(ctx context.Context) ([]eastmoney.SpotRow, error)
	Individual(ctx context.Context, symbol string) (map[string]string, error)
}

// Delegate adapts the bundled tabular analytics client to the Source
// interface. Library failures and empty tables are "no result" for this
// provider, never hard failures: the orchestrator moves on to the next
// provider.
type Delegate struct {
	client TableClient
	logger zerolog.Logger
}

// NewDelegate creates the adapter over a table client.
func NewDelegate(client TableClient) *Delegate {
	return &Delegate{
		client: client,
		logger: logging.NewLogger("provider.delegate"),
	}
}

func (d *Delegate) Name() string { return "delegate" }

func (d *Delegate) Descriptor() schema.ProviderDescriptor {
	return schema.ProviderDescriptor{
		Name:            d.Name(),
		SuccessRate:     0.8,
		CanListUniverse: true,
		CanFetchInfo:    true,
		CanFetchQuote:   true,
	}
}

// Universe lists the full tradable universe from the spot table. This is
// the only provider with a bulk endpoint.
func (d *Delegate) Universe(ctx context.Context) ([]schema.Listing, error) {
	rows, err := d.client.Spot(ctx)
	if err != nil {
		d.logger.Debug().Err(err).Msg("Spot table unavailable")
		return nil, nil
	}

	listings := make([]schema.Listing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, schema.Listing{Symbol: row.Code, Name: row.Name})
	}
	return listings, nil
}

// Quote looks the symbol up in the spot table.
func (d *Delegate) Quote(ctx context.Context, symbol string) (schema.Quote, error) {
	rows, err := d.client.Spot(ctx)
	if err != nil {
		d.logger.Debug().Str("symbol", symbol).Err(err).Msg("Spot table unavailable")
		return schema.Quote{}, nil
	}

	for _, row := range rows {
		if row.Code != symbol {
			continue
		}
		return schema.Quote{
			Symbol:     symbol,
			Name:       row.Name,
			Price:      row.Price,
			ChangePct:  row.ChangePct,
			Volume:     row.Volume,
			Amount:     row.Amount,
			Source:     d.Name(),
			ObservedAt: time.Now(),
		}, nil
	}
	return schema.Quote{}, nil
}

// Info reshapes the per-stock item table. Known items map to typed fields;
// everything else lands in the extension map.
func (d *Delegate) Info(ctx context.Context, symbol string) (schema.ReferenceInfo, error) {
	items, err := d.client.Individual(ctx, symbol)
	if err != nil {
		d.logger.Debug().Str("symbol", symbol).Err(err).Msg("Individual info unavailable")
		return schema.ReferenceInfo{}, nil
	}
	if len(items) == 0 {
		return schema.ReferenceInfo{}, nil
	}

	info := schema.ReferenceInfo{
		Symbol:     symbol,
		Source:     d.Name(),
		ObservedAt: time.Now(),
	}
	for item, value := range items {
		switch item {
		case eastmoney.ItemCode:
			// Symbol is already set from the request.
		case eastmoney.ItemShortName:
			info.ShortName = value
		case eastmoney.ItemIndustry:
			info.Industry = value
		case eastmoney.ItemTotalShares:
			info.TotalShares = value
		case eastmoney.ItemFloatShares:
			info.FloatShares = value
		case eastmoney.ItemListingDate:
			info.ListingDate = value
		default:
			if info.Ext == nil {
				info.Ext = make(map[string]string)
			}
			info.Ext[item] = value
		}
	}
	return info, nil
}
