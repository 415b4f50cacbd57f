package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides overrides cfg fields with environment variables when the
// corresponding env vars are set. Env takes precedence over values coming
// from a config file while flags remain highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	// Support both SEARX_URL and SEARXNG_URL; prefer SEARX_URL if set
	if v := os.Getenv("SEARXNG_URL"); v != "" {
		cfg.SearxURL = v
	}
	if v := os.Getenv("SEARX_URL"); v != "" {
		cfg.SearxURL = v
	}
	if v := os.Getenv("SEARXNG_KEY"); v != "" {
		cfg.SearxKey = v
	}
	if v := os.Getenv("SEARX_KEY"); v != "" {
		cfg.SearxKey = v
	}
	if v := os.Getenv("BING_ACCOUNT_KEY"); v != "" {
		cfg.BingKey = v
	}
	if v := os.Getenv("SEARCH_FILE"); v != "" {
		cfg.FileSearchPath = v
	}

	if v := os.Getenv("RANK_PROXY"); v != "" {
		cfg.RankProxy = v
	}
	if s := strings.TrimSpace(os.Getenv("RANK_TIMEOUT")); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.RankTimeout = d
		}
	}
	if s := strings.TrimSpace(os.Getenv("RANK_PARALLELISM")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.Parallelism = n
		}
	}
	if v := os.Getenv("RANK_ORDER"); v != "" {
		cfg.Order = v
	}
	if v := os.Getenv("METRICS_OUT"); v != "" {
		cfg.MetricsOut = v
	}

	// Booleans override when env present and truthy/falsey
	if s := strings.ToLower(strings.TrimSpace(os.Getenv("VERBOSE"))); s != "" {
		switch s {
		case "1", "true", "yes", "on":
			cfg.Verbose = true
		case "0", "false", "no", "off":
			cfg.Verbose = false
		}
	}
}
