package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ranksearch/internal/app"
	"github.com/hyperifyio/ranksearch/internal/search"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.DefaultContextLogger = &log.Logger

	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(exitCode(err))
	}
}

// exitCode maps a broken search to 2; every other failure is 1.
func exitCode(err error) int {
	if errors.Is(err, search.ErrSearchFailed) {
		return 2
	}
	return 1
}

type sources struct {
	configPath string
	envFiles   string
}

// parseConfig layers defaults, the config file, the environment and finally
// the flags actually given on the command line. Positional arguments form
// the query when -query is not set.
func parseConfig(args []string, stderr io.Writer) (app.Config, error) {
	// First pass only discovers -config and -env.
	var src sources
	scratch := app.DefaultConfig()
	fs := newFlagSet(&scratch, &src, io.Discard)
	if err := fs.Parse(args); err != nil {
		// Re-parse with output so usage reaches the user.
		_ = newFlagSet(&scratch, &src, stderr).Parse(args)
		return app.Config{}, err
	}

	if err := app.LoadEnvFiles(splitList(src.envFiles)...); err != nil {
		return app.Config{}, fmt.Errorf("load env: %w", err)
	}
	cfg := app.DefaultConfig()
	if src.configPath != "" {
		fc, err := app.LoadConfigFile(src.configPath)
		if err != nil {
			return app.Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := app.ApplyFileConfig(&cfg, fc); err != nil {
			return app.Config{}, err
		}
	}
	app.ApplyEnvOverrides(&cfg)

	// Second pass writes only explicitly given flags over the layered values.
	fs = newFlagSet(&cfg, &src, stderr)
	if err := fs.Parse(args); err != nil {
		return app.Config{}, err
	}
	if strings.TrimSpace(cfg.Query) == "" && fs.NArg() > 0 {
		cfg.Query = strings.Join(fs.Args(), " ")
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}

// newFlagSet binds flags to cfg; each flag's default is cfg's current value.
func newFlagSet(cfg *app.Config, src *sources, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("ranksearch", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&src.configPath, "config", src.configPath, "Path to YAML or JSON config file")
	fs.StringVar(&src.envFiles, "env", src.envFiles, "Comma-separated dotenv files loaded before reading the environment")

	fs.StringVar(&cfg.Query, "query", cfg.Query, "Search query (or pass it as arguments)")
	fs.IntVar(&cfg.Count, "count", cfg.Count, "Number of search results to rank")
	fs.IntVar(&cfg.Skip, "skip", cfg.Skip, "Number of leading search results to skip")
	fs.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "Write results to this file instead of stdout")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Output format: markdown or json")
	fs.StringVar(&cfg.Order, "order", cfg.Order, "Sort by this provider: google, alexa or a full provider name")
	fs.BoolVar(&cfg.Reverse, "reverse", cfg.Reverse, "List least popular results first")

	fs.StringVar(&cfg.SearxURL, "searx.url", cfg.SearxURL, "SearxNG base URL")
	fs.StringVar(&cfg.SearxKey, "searx.key", cfg.SearxKey, "SearxNG API key (optional)")
	fs.StringVar(&cfg.SearxUA, "searx.ua", cfg.SearxUA, "Custom User-Agent for SearxNG requests")
	fs.StringVar(&cfg.BingURL, "bing.url", cfg.BingURL, "Bing Search API base URL")
	fs.StringVar(&cfg.BingKey, "bing.key", cfg.BingKey, "Bing Search API account key")
	fs.StringVar(&cfg.FileSearchPath, "search.file", cfg.FileSearchPath, "Path to JSON file for offline file-based search provider")

	fs.IntVar(&cfg.Parallelism, "rank.parallelism", cfg.Parallelism, "Maximum concurrent rank lookups (0: one per provider)")
	fs.StringVar(&cfg.RankProxy, "rank.proxy", cfg.RankProxy, "Proxy for rank lookups (host:port, http://, socks5://)")
	fs.DurationVar(&cfg.RankTimeout, "rank.timeout", cfg.RankTimeout, "Timeout for each rank lookup (0: provider default)")
	providerFlags(fs, "rank.google", &cfg.Google)
	providerFlags(fs, "rank.alexa", &cfg.Alexa)

	fs.StringVar(&cfg.MetricsOut, "metrics.out", cfg.MetricsOut, "Write Prometheus textfile metrics to this path")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	return fs
}

func providerFlags(fs *flag.FlagSet, prefix string, pc *app.ProviderConfig) {
	fs.BoolVar(&pc.Disabled, prefix+".disable", pc.Disabled, "Do not query this provider")
	fs.StringVar(&pc.Host, prefix+".host", pc.Host, "Override the provider host")
	fs.StringVar(&pc.Proxy, prefix+".proxy", pc.Proxy, "Proxy for this provider only")
	fs.DurationVar(&pc.Timeout, prefix+".timeout", pc.Timeout, "Timeout for this provider only")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func run(cfg app.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}
