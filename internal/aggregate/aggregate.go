package aggregate

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/ranksearch/internal/metrics"
	"github.com/hyperifyio/ranksearch/internal/rank"
	"github.com/hyperifyio/ranksearch/internal/search"
)

// RankedHit is a search hit together with the rank every provider gave it.
type RankedHit struct {
	search.Hit
	Ranks rank.Set `json:"ranks"`
}

// Options configures Aggregate.
type Options struct {
	// Parallelism bounds in-flight rank lookups across all providers.
	// Zero means one per provider.
	Parallelism int
	Metrics     *metrics.Metrics
}

// Aggregate asks every provider for the rank of every hit. A provider that
// cannot score a hit contributes Unknown; it never stops the other lookups.
// The output keeps the input order and every hit carries exactly one entry
// per provider. If ctx is cancelled Aggregate returns ctx.Err() at once;
// lookups still in flight finish in the background and their results are
// discarded.
func Aggregate(ctx context.Context, hits []search.Hit, providers []rank.Provider, opt Options) ([]RankedHit, error) {
	if _, err := rank.Polarities(providers); err != nil {
		return nil, err
	}
	limit := opt.Parallelism
	if limit <= 0 {
		limit = len(providers)
	}
	logger := zerolog.Ctx(ctx)
	start := time.Now()

	tracer := otel.Tracer("ranksearch/aggregate")
	ctx, span := tracer.Start(ctx, "rank.aggregate", trace.WithAttributes(
		attribute.Int("rank.hits", len(hits)),
		attribute.Int("rank.providers", len(providers)),
	))
	defer span.End()

	// Each lookup owns exactly one cell, so no locking is needed.
	grid := make([][]rank.Rank, len(hits))
	for i := range grid {
		grid[i] = make([]rank.Rank, len(providers))
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	// Submission blocks once the limit is reached, so it runs beside the
	// lookups. A cancelled caller stops waiting for both.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, h := range hits {
			for j, p := range providers {
				if ctx.Err() != nil {
					break
				}
				g.Go(func() error {
					if ctx.Err() != nil {
						return nil
					}
					lctx, lspan := tracer.Start(ctx, "rank.lookup",
						trace.WithSpanKind(trace.SpanKindClient),
						trace.WithAttributes(
							attribute.String("rank.provider", p.Name()),
							attribute.String("url.full", h.URL),
						),
					)
					t0 := time.Now()
					r := p.Rank(lctx, h.URL)
					lspan.SetAttributes(attribute.Bool("rank.known", r.IsKnown()))
					lspan.End()
					opt.Metrics.ObserveRank(p.Name(), r.IsKnown(), time.Since(t0))
					grid[i][j] = r
					return nil
				})
			}
		}
		_ = g.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug().Err(err).Int("hits", len(hits)).Msg("aggregation abandoned")
		return nil, err
	}
	opt.Metrics.ObserveAggregation(time.Since(start))

	out := make([]RankedHit, len(hits))
	for i, h := range hits {
		set := make(rank.Set, len(providers))
		for j, p := range providers {
			set[p.Name()] = grid[i][j]
		}
		out[i] = RankedHit{Hit: h, Ranks: set}
	}
	logger.Debug().Int("hits", len(hits)).Int("providers", len(providers)).Int("parallelism", limit).Dur("took", time.Since(start)).Msg("ranks aggregated")
	return out, nil
}
