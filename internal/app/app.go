package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hyperifyio/ranksearch/internal/aggregate"
	"github.com/hyperifyio/ranksearch/internal/fetch"
	"github.com/hyperifyio/ranksearch/internal/metrics"
	"github.com/hyperifyio/ranksearch/internal/order"
	"github.com/hyperifyio/ranksearch/internal/rank"
	"github.com/hyperifyio/ranksearch/internal/search"
)

// ErrNoQuery is returned by Run when no search term was configured.
var ErrNoQuery = errors.New("no search query")

// ErrNoSearchProvider is returned by New when neither a results file, Bing
// nor SearxNG is configured.
var ErrNoSearchProvider = errors.New("no search provider configured")

type App struct {
	cfg       Config
	search    search.Provider
	providers []rank.Provider
	sorter    *order.Sorter
	metrics   *metrics.Metrics
	http      *http.Client

	stdout io.Writer
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	hc := newRankHTTPClient()

	sp, err := newSearchProvider(cfg, hc)
	if err != nil {
		return nil, err
	}

	fetcher := &fetch.Client{
		HTTPClient:    hc,
		MaxConcurrent: cfg.Parallelism,
	}
	providers, err := NewRankProviders(fetcher, cfg)
	if err != nil {
		return nil, err
	}
	sorter, err := order.New(providers...)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	zerolog.Ctx(ctx).Debug().Str("search", sp.Name()).Strs("rank_providers", names).Msg("app initialised")

	return &App{
		cfg:       cfg,
		search:    sp,
		providers: providers,
		sorter:    sorter,
		metrics:   metrics.New(),
		http:      hc,
		stdout:    os.Stdout,
	}, nil
}

// Close drops the keep-alive connections held for search and rank lookups.
func (a *App) Close() {
	a.http.CloseIdleConnections()
}

// newSearchProvider picks the offline file first, then Bing, then SearxNG.
func newSearchProvider(cfg Config, hc *http.Client) (search.Provider, error) {
	switch {
	case strings.TrimSpace(cfg.FileSearchPath) != "":
		return &search.FileProvider{Path: cfg.FileSearchPath}, nil
	case strings.TrimSpace(cfg.BingKey) != "":
		b, err := search.NewBing(cfg.BingKey, hc)
		if err != nil {
			return nil, err
		}
		if cfg.BingURL != "" {
			b.BaseURL = cfg.BingURL
		}
		return b, nil
	case strings.TrimSpace(cfg.SearxURL) != "":
		return &search.SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey, UserAgent: cfg.SearxUA, HTTPClient: hc}, nil
	}
	return nil, ErrNoSearchProvider
}

// NewRankProviders builds the enabled rank providers in a fixed order:
// GooglePageRank, then AlexaTrafficRank. Per-provider settings win over the
// shared proxy and timeout.
func NewRankProviders(f fetch.Fetcher, cfg Config) ([]rank.Provider, error) {
	var out []rank.Provider
	if !cfg.Google.Disabled {
		p, err := rank.NewGooglePageRank(f, cfg.providerConfig(rank.DefaultGoogleConfig(), cfg.Google))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if !cfg.Alexa.Disabled {
		p, err := rank.NewAlexaTrafficRank(f, cfg.providerConfig(rank.DefaultAlexaConfig(), cfg.Alexa))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (c Config) providerConfig(base rank.Config, pc ProviderConfig) rank.Config {
	if pc.Host != "" {
		base.Host = pc.Host
	}
	base.Proxy = c.RankProxy
	if pc.Proxy != "" {
		base.Proxy = pc.Proxy
	}
	if c.RankTimeout > 0 {
		base.Timeout = c.RankTimeout
	}
	if pc.Timeout > 0 {
		base.Timeout = pc.Timeout
	}
	return base
}

// Search runs term through the search provider, ranks every hit with every
// provider and, when an order is configured, sorts the result. Hits are
// ranked and returned exactly as the search provider produced them. A search
// failure is wrapped in search.ErrSearchFailed.
func (a *App) Search(ctx context.Context, term string) ([]aggregate.RankedHit, error) {
	logger := zerolog.Ctx(ctx)

	hits, err := a.search.Search(ctx, term, a.cfg.Count, a.cfg.Skip)
	a.metrics.ObserveSearch(a.search.Name(), len(hits), err)
	if err != nil {
		if !errors.Is(err, search.ErrSearchFailed) {
			err = fmt.Errorf("%w: %v", search.ErrSearchFailed, err)
		}
		logger.Error().Err(err).Str("provider", a.search.Name()).Str("query", term).Msg("search error")
		return nil, err
	}
	logger.Info().Str("provider", a.search.Name()).Int("hits", len(hits)).Msg("search complete")
	if len(hits) == 0 {
		return []aggregate.RankedHit{}, nil
	}

	ranked, err := aggregate.Aggregate(ctx, hits, a.providers, aggregate.Options{
		Parallelism: a.cfg.Parallelism,
		Metrics:     a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	if name := providerName(a.cfg.Order); name != "" {
		ranked, err = a.sorter.SortBy(ranked, name, a.cfg.Reverse)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
	}
	return ranked, nil
}

func (a *App) Run(ctx context.Context) error {
	term := strings.TrimSpace(a.cfg.Query)
	if term == "" {
		return ErrNoQuery
	}
	logger := zerolog.Ctx(ctx).With().Str("run_id", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	results, err := a.Search(ctx, term)
	if err != nil {
		return err
	}

	var w io.Writer = a.stdout
	if a.cfg.OutputPath != "" {
		f, err := os.Create(a.cfg.OutputPath)
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := render(w, a.cfg.Format, term, a.resultColumns(), results); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info().Int("results", len(results)).Dur("took", time.Since(start)).Str("out", a.cfg.OutputPath).Msg("wrote results")

	if a.cfg.MetricsOut != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsOut); err != nil {
			logger.Warn().Err(err).Str("path", a.cfg.MetricsOut).Msg("metrics textfile not written")
		}
	}
	return nil
}

func (a *App) resultColumns() []string {
	out := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		out = append(out, p.Name())
	}
	return out
}
