// Command rankcheck prints every provider's rank for one or more URLs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ranksearch/internal/aggregate"
	"github.com/hyperifyio/ranksearch/internal/app"
	"github.com/hyperifyio/ranksearch/internal/fetch"
	"github.com/hyperifyio/ranksearch/internal/search"
)

const defaultURL = "http://www.archlinux.org"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.DefaultContextLogger = &log.Logger
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Error().Err(err).Msg("rankcheck failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg := app.DefaultConfig()
	app.ApplyEnvOverrides(&cfg)

	fs := flag.NewFlagSet("rankcheck", flag.ContinueOnError)
	fs.StringVar(&cfg.RankProxy, "proxy", cfg.RankProxy, "Proxy for rank lookups")
	fs.DurationVar(&cfg.RankTimeout, "timeout", cfg.RankTimeout, "Timeout for each rank lookup")
	fs.StringVar(&cfg.Google.Host, "google.host", "", "Override the PageRank host")
	fs.StringVar(&cfg.Alexa.Host, "alexa.host", "", "Override the traffic rank host")
	verbose := fs.Bool("v", cfg.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	urls := fs.Args()
	if len(urls) == 0 {
		urls = []string{defaultURL}
	}
	hits := make([]search.Hit, 0, len(urls))
	for _, u := range urls {
		hits = append(hits, search.Hit{URL: u})
	}

	providers, err := app.NewRankProviders(&fetch.Client{}, cfg)
	if err != nil {
		return err
	}
	ranked, err := aggregate.Aggregate(ctx, hits, providers, aggregate.Options{Parallelism: cfg.Parallelism})
	if err != nil {
		return err
	}
	for _, h := range ranked {
		if len(ranked) > 1 {
			fmt.Fprintln(stdout, h.URL)
		}
		for _, p := range providers {
			fmt.Fprintf(stdout, "%s:%s\n", p.Name(), h.Ranks[p.Name()])
		}
	}
	return nil
}
