package app

import (
	"strings"
	"time"

	"github.com/hyperifyio/ranksearch/internal/rank"
)

// Config holds runtime configuration for the application.
type Config struct {
	Query      string
	Count      int
	Skip       int
	OutputPath string // empty writes to stdout
	Format     string // "markdown" or "json"

	// Order names the provider whose rank sorts the results. Empty keeps
	// search order.
	Order   string
	Reverse bool

	// Search
	SearxURL       string
	SearxKey       string
	SearxUA        string
	BingURL        string
	BingKey        string
	FileSearchPath string

	// Ranking
	Parallelism int
	RankProxy   string
	RankTimeout time.Duration
	Google      ProviderConfig
	Alexa       ProviderConfig

	MetricsOut string
	Verbose    bool
}

// ProviderConfig overrides the shared rank settings for one provider.
type ProviderConfig struct {
	Disabled bool
	Host     string
	Proxy    string
	Timeout  time.Duration
}

const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"

	defaultCount   = 10
	defaultSearxUA = "ranksearch/1.0 (+https://github.com/hyperifyio/ranksearch)"
)

// DefaultConfig returns the values used when neither flags, env nor a config
// file say otherwise.
func DefaultConfig() Config {
	return Config{
		Count:   defaultCount,
		Format:  FormatMarkdown,
		SearxUA: defaultSearxUA,
	}
}

// providerName resolves the short aliases accepted for Order.
func providerName(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "google", "pagerank", strings.ToLower(rank.DefaultGoogleConfig().Name):
		return rank.DefaultGoogleConfig().Name
	case "alexa", strings.ToLower(rank.DefaultAlexaConfig().Name):
		return rank.DefaultAlexaConfig().Name
	}
	return strings.TrimSpace(s)
}

// enabledProviders lists the provider identities cfg turns on.
func (c Config) enabledProviders() []string {
	var out []string
	if !c.Google.Disabled {
		out = append(out, rank.DefaultGoogleConfig().Name)
	}
	if !c.Alexa.Disabled {
		out = append(out, rank.DefaultAlexaConfig().Name)
	}
	return out
}
