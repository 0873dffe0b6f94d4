// Command fetchd fetches quotes, reference info, or the listing universe
// for a set of symbols and prints one JSON document per line.
//
// Usage:
//
//	fetchd -op quote -symbols 000001,600519
//	fetchd -op universe
//
// Configuration comes from the environment (optionally a .env file); see
// pkg/config for the full surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/cache"
	"github.com/quantlab/stockfeed/pkg/config"
	"github.com/quantlab/stockfeed/pkg/eastmoney"
	"github.com/quantlab/stockfeed/pkg/fetcher"
	"github.com/quantlab/stockfeed/pkg/identity"
	"github.com/quantlab/stockfeed/pkg/logging"
	"github.com/quantlab/stockfeed/pkg/pacing"
	"github.com/quantlab/stockfeed/pkg/provider"
	"github.com/quantlab/stockfeed/pkg/transport"
)

func init() { _ = godotenv.Load() }

func main() {
	var (
		op      = flag.String("op", "quote", "operation: quote, info or universe")
		symbols = flag.String("symbols", "", "comma-separated symbol list")
		workers = flag.Int("workers", 4, "parallel workers for quote batches")
	)
	flag.Parse()

	cfg := config.Load()
	logging.Setup(logging.Config{Level: logging.LogLevel(cfg.LogLevel), Pretty: cfg.LogPretty})
	logger := logging.NewLogger("fetchd")

	f, err := buildFetcher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Startup failed")
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	ctx := context.Background()
	if !run(ctx, f, *op, splitSymbols(*symbols), *workers, logger) {
		os.Exit(1)
	}
}

func buildFetcher(cfg config.Config, logger zerolog.Logger) (*fetcher.Fetcher, error) {
	rotator := identity.NewRotator(identity.DefaultRotateEvery)
	governor := pacing.NewGovernor()

	tr, err := transport.New(transport.Config{
		SessionPoolSize: cfg.SessionPoolSize,
		Timeout:         cfg.RequestTimeout,
		MinInterval:     cfg.MinInterval,
		MaxInterval:     cfg.MaxInterval,
		MaxRetries:      cfg.MaxRetries,
		BaseDelay:       cfg.BaseDelay,
		MaxDelay:        cfg.MaxDelay,
		Proxies:         cfg.Proxies,
	}, rotator, governor)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	sources, err := buildSources(cfg.ProviderOrder, tr)
	if err != nil {
		return nil, err
	}

	return fetcher.New(fetcher.Config{
		Sources:   sources,
		Store:     cache.NewStore(connectRedis(cfg.RedisURL, logger)),
		Governor:  governor,
		CacheTTL:  cfg.CacheTTL,
		PacingMin: cfg.MinInterval,
		PacingMax: cfg.MaxInterval,
	}), nil
}

func buildSources(order []string, tr *transport.Transport) ([]provider.Source, error) {
	sources := make([]provider.Source, 0, len(order))
	for _, name := range order {
		switch name {
		case "delegate":
			sources = append(sources, provider.NewDelegate(eastmoney.NewClient(tr, "")))
		case "tencent":
			sources = append(sources, provider.NewTencent(tr, ""))
		case "sina":
			sources = append(sources, provider.NewSina(tr, ""))
		case "netease":
			sources = append(sources, provider.NewNetease(tr, ""))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return sources, nil
}

// connectRedis returns a pinged client, or nil (memory-only cache) when
// no URL is configured or the server is unreachable.
func connectRedis(url string, logger zerolog.Logger) *goredis.Client {
	if url == "" {
		return nil
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		logger.Warn().Str("url", url).Err(err).Msg("Bad Redis URL, cache is memory-only")
		return nil
	}

	client := goredis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Str("addr", opts.Addr).Err(err).Msg("Redis unreachable, cache is memory-only")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return client
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server failed")
	}
}

func run(ctx context.Context, f *fetcher.Fetcher, op string, symbols []string, workers int, logger zerolog.Logger) bool {
	out := json.NewEncoder(os.Stdout)

	switch op {
	case "universe":
		listings, err := f.Universe(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Universe fetch failed")
			return false
		}
		for _, l := range listings {
			if err := out.Encode(l); err != nil {
				logger.Error().Err(err).Msg("Encoding output failed")
				return false
			}
		}
		return true

	case "quote":
		if len(symbols) == 0 {
			logger.Error().Msg("No symbols given")
			return false
		}
		ok := true
		results := f.Quotes(ctx, symbols, fetcher.BatchConfig{MaxConcurrency: workers})
		for _, res := range results {
			if res.Err != nil {
				logger.Error().Str("symbol", res.Symbol).Err(res.Err).Msg("Quote fetch failed")
				ok = false
				continue
			}
			if err := out.Encode(res.Quote); err != nil {
				logger.Error().Err(err).Msg("Encoding output failed")
				return false
			}
		}
		return ok

	case "info":
		if len(symbols) == 0 {
			logger.Error().Msg("No symbols given")
			return false
		}
		ok := true
		for _, symbol := range symbols {
			info, err := f.Info(ctx, symbol)
			if err != nil {
				logger.Error().Str("symbol", symbol).Err(err).Msg("Info fetch failed")
				ok = false
				continue
			}
			if err := out.Encode(info); err != nil {
				logger.Error().Err(err).Msg("Encoding output failed")
				return false
			}
		}
		return ok

	default:
		logger.Error().Str("op", op).Msg("Unknown operation")
		return false
	}
}

func splitSymbols(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
