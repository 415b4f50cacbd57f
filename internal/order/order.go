// Package order sorts ranked hits by one provider's score.
package order

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hyperifyio/ranksearch/internal/aggregate"
	"github.com/hyperifyio/ranksearch/internal/rank"
)

var (
	// ErrUnknownProvider means the sort key names no configured provider.
	ErrUnknownProvider = errors.New("unknown rank provider")
	// ErrMissingRank means a hit was never ranked by the sort provider.
	ErrMissingRank = errors.New("hit has no rank for provider")
)

// Sorter orders hits using a fixed identity → polarity table.
type Sorter struct {
	polarity map[string]rank.Polarity
}

// New builds a Sorter for providers.
func New(providers ...rank.Provider) (*Sorter, error) {
	table, err := rank.Polarities(providers)
	if err != nil {
		return nil, err
	}
	return &Sorter{polarity: table}, nil
}

// FromTable builds a Sorter from an explicit polarity table.
func FromTable(table map[string]rank.Polarity) *Sorter {
	cp := make(map[string]rank.Polarity, len(table))
	for k, v := range table {
		cp[k] = v
	}
	return &Sorter{polarity: cp}
}

// SortBy returns hits ordered most popular first according to provider,
// or least popular first when reverse is set. Unknown ranks count as the
// least popular value: 0 when higher is better, worse than any known rank
// when lower is better.
// Equal keys keep their input order. hits is not modified.
func (s *Sorter) SortBy(hits []aggregate.RankedHit, provider string, reverse bool) ([]aggregate.RankedHit, error) {
	pol, ok := s.polarity[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	keys := make([]sortKey, len(hits))
	for i, h := range hits {
		r, ok := h.Ranks[provider]
		if !ok {
			return nil, fmt.Errorf("%w: %q (hit %d, %s)", ErrMissingRank, provider, i, h.URL)
		}
		keys[i] = effectiveKey(r, pol)
	}

	// descending when higher is better, flipped by reverse
	descending := (pol == rank.HigherIsBetter) != reverse

	idx := make([]int, len(hits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if descending {
			return kb.less(ka)
		}
		return ka.less(kb)
	})

	out := make([]aggregate.RankedHit, len(hits))
	for i, j := range idx {
		out[i] = hits[j]
	}
	return out, nil
}

// sortKey is a rank with an explicit positive infinity, compared without
// going through float64 so large ranks stay distinct.
type sortKey struct {
	value int64
	inf   bool
}

func (k sortKey) less(o sortKey) bool {
	if k.inf {
		return false
	}
	return o.inf || k.value < o.value
}

func effectiveKey(r rank.Rank, pol rank.Polarity) sortKey {
	if v, ok := r.Value(); ok {
		return sortKey{value: v}
	}
	if pol == rank.LowerIsBetter {
		return sortKey{inf: true}
	}
	return sortKey{}
}
