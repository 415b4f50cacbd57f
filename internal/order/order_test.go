package order

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperifyio/ranksearch/internal/aggregate"
	"github.com/hyperifyio/ranksearch/internal/rank"
	"github.com/hyperifyio/ranksearch/internal/search"
)

const (
	google = "GooglePageRank"
	alexa  = "AlexaTrafficRank"
)

var table = map[string]rank.Polarity{
	google: rank.HigherIsBetter,
	alexa:  rank.LowerIsBetter,
}

func ranked(provider string, ranks ...rank.Rank) []aggregate.RankedHit {
	out := make([]aggregate.RankedHit, 0, len(ranks))
	for i, r := range ranks {
		out = append(out, aggregate.RankedHit{
			Hit:   search.Hit{URL: string(rune('a' + i))},
			Ranks: rank.Set{provider: r},
		})
	}
	return out
}

func urls(hits []aggregate.RankedHit) string {
	s := ""
	for _, h := range hits {
		s += h.URL
	}
	return s
}

func TestSortBy_HigherIsBetter(t *testing.T) {
	s := FromTable(table)
	in := ranked(google, rank.Known(5), rank.Known(3), rank.Unknown) // a=5 b=3 c=unknown

	// least popular first: unknown counts as 0
	got, err := s.SortBy(in, google, true)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if urls(got) != "cba" {
		t.Fatalf("reverse google order = %q, want cba", urls(got))
	}

	got, _ = s.SortBy(in, google, false)
	if urls(got) != "abc" {
		t.Fatalf("default google order = %q, want abc", urls(got))
	}
}

func TestSortBy_LowerIsBetter(t *testing.T) {
	s := FromTable(table)
	in := ranked(alexa, rank.Known(100), rank.Known(50), rank.Unknown) // a=100 b=50 c=unknown

	// most popular first: unknown counts as +Inf and goes last
	got, err := s.SortBy(in, alexa, false)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if urls(got) != "bac" {
		t.Fatalf("default alexa order = %q, want bac", urls(got))
	}

	got, _ = s.SortBy(in, alexa, true)
	if urls(got) != "cab" {
		t.Fatalf("reverse alexa order = %q, want cab", urls(got))
	}
}

func TestSortBy_Stable(t *testing.T) {
	s := FromTable(table)
	in := ranked(google, rank.Known(2), rank.Known(7), rank.Known(2), rank.Unknown, rank.Known(0), rank.Known(7))
	// a=2 b=7 c=2 d=unknown e=0 f=7; unknown and 0 tie for google

	got, _ := s.SortBy(in, google, false)
	if urls(got) != "bfacde" {
		t.Fatalf("stable descending = %q", urls(got))
	}
	got, _ = s.SortBy(in, google, true)
	if urls(got) != "deacbf" {
		t.Fatalf("stable ascending = %q", urls(got))
	}

	in = ranked(alexa, rank.Unknown, rank.Known(9), rank.Unknown, rank.Known(9))
	got, _ = s.SortBy(in, alexa, false)
	if urls(got) != "bdac" {
		t.Fatalf("stable alexa = %q", urls(got))
	}
}

func TestSortBy_LargeRanksStayDistinct(t *testing.T) {
	s := FromTable(table)

	// 2^62 and 2^62+1 collapse to the same float64
	got, err := s.SortBy(ranked(google, rank.Known(1<<62), rank.Known(1<<62+1)), google, false)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if urls(got) != "ba" {
		t.Fatalf("google order = %q, want %q", urls(got), "ba")
	}

	got, err = s.SortBy(ranked(alexa, rank.Unknown, rank.Known(math.MaxInt64), rank.Known(math.MaxInt64-1)), alexa, false)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if urls(got) != "cba" {
		t.Fatalf("alexa order = %q, want %q", urls(got), "cba")
	}
}

func TestSortBy_DoesNotModifyInput(t *testing.T) {
	s := FromTable(table)
	in := ranked(google, rank.Known(1), rank.Known(2))
	if _, err := s.SortBy(in, google, false); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if urls(in) != "ab" {
		t.Fatalf("input reordered: %q", urls(in))
	}
}

func TestSortBy_ContractViolations(t *testing.T) {
	s := FromTable(table)
	if _, err := s.SortBy(ranked(google, rank.Known(1)), "Nope", false); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	in := ranked(google, rank.Known(1))
	if _, err := s.SortBy(in, alexa, false); !errors.Is(err, ErrMissingRank) {
		t.Fatalf("expected ErrMissingRank, got %v", err)
	}
}

func TestSortBy_Empty(t *testing.T) {
	s := FromTable(table)
	got, err := s.SortBy(nil, alexa, false)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}

type namedProvider struct {
	name string
	pol  rank.Polarity
}

func (p namedProvider) Name() string            { return p.name }
func (p namedProvider) Polarity() rank.Polarity { return p.pol }
func (p namedProvider) Rank(_ context.Context, _ string) rank.Rank {
	return rank.Unknown
}

func TestNew_FromProviders(t *testing.T) {
	s, err := New(namedProvider{"x", rank.LowerIsBetter})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := s.SortBy(ranked("x", rank.Known(3), rank.Known(1)), "x", false)
	if err != nil || urls(got) != "ba" {
		t.Fatalf("unexpected order %q err=%v", urls(got), err)
	}
	if _, err := New(namedProvider{"x", 0}, namedProvider{"x", 1}); !errors.Is(err, rank.ErrDuplicateProvider) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}
