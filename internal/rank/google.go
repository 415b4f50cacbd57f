package rank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/hyperifyio/ranksearch/internal/checksum"
	"github.com/hyperifyio/ranksearch/internal/fetch"
)

const toolbarUserAgent = "Mozilla/4.0 (compatible; GoogleToolbar 2.0.111-big; Windows XP 5.1)"

var toolbarRankPattern = regexp.MustCompile(`^Rank_\d+:\d+:(\d+)`)

var errNoMatch = errors.New("response does not carry a rank")

// DefaultGoogleConfig returns the toolbar endpoint settings.
func DefaultGoogleConfig() Config {
	return Config{
		Name:      "GooglePageRank",
		Host:      "toolbarqueries.google.com",
		Timeout:   defaultTimeout,
		UserAgent: toolbarUserAgent,
	}
}

// GooglePageRank reads the toolbar PageRank. Higher is better.
type GooglePageRank struct {
	cfg     Config
	fetcher fetch.Fetcher
}

func NewGooglePageRank(f fetch.Fetcher, cfg Config) (*GooglePageRank, error) {
	if err := cfg.validate(f); err != nil {
		return nil, err
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = toolbarUserAgent
	}
	return &GooglePageRank{cfg: cfg, fetcher: f}, nil
}

func (g *GooglePageRank) Name() string       { return g.cfg.Name }
func (g *GooglePageRank) Polarity() Polarity { return HigherIsBetter }

func (g *GooglePageRank) Rank(ctx context.Context, target string) Rank {
	r, err := g.lookup(ctx, target)
	return settle(ctx, g.cfg.Name, target, r, err)
}

func (g *GooglePageRank) lookup(ctx context.Context, target string) (Rank, error) {
	req := g.cfg.request(g.queryURL(target))
	req.Header = http.Header{"User-Agent": []string{g.cfg.UserAgent}}
	resp, err := g.fetcher.Fetch(ctx, req)
	if err != nil {
		return Unknown, err
	}
	if resp.StatusCode != http.StatusOK {
		return Unknown, fmt.Errorf("status %d", resp.StatusCode)
	}
	return parseToolbarRank(resp.Body)
}

func (g *GooglePageRank) queryURL(target string) string {
	info := "info:" + target
	q := url.Values{}
	q.Set("client", "navclient-auto")
	q.Set("ch", checksum.DerivedToken([]byte(info)))
	q.Set("ie", "UTF-8")
	q.Set("oe", "UTF-8")
	q.Set("features", "Rank")
	q.Set("q", info)
	u := url.URL{Scheme: "http", Host: g.cfg.Host, Path: "/tbr", RawQuery: q.Encode()}
	return u.String()
}

func parseToolbarRank(body []byte) (Rank, error) {
	m := toolbarRankPattern.FindSubmatch(body)
	if m == nil {
		return Unknown, errNoMatch
	}
	v, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return Unknown, fmt.Errorf("parse rank: %w", err)
	}
	return Known(v), nil
}
