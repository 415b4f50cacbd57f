// Package rank obtains popularity scores for URLs from third-party rank
// services. A provider that cannot produce a score answers Unknown; only
// misconfiguration is reported as an error.
package rank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/ranksearch/internal/fetch"
)

var (
	// ErrInvalidConfig marks a provider constructed with unusable settings.
	ErrInvalidConfig = errors.New("invalid rank provider config")
	// ErrDuplicateProvider is returned when two providers share an identity.
	ErrDuplicateProvider = errors.New("duplicate rank provider")
)

// Rank is an integer popularity score or Unknown. The zero value is Unknown.
type Rank struct {
	value int64
	known bool
}

// Unknown is the rank of a URL a provider could not score.
var Unknown = Rank{}

// Known returns a rank carrying v.
func Known(v int64) Rank { return Rank{value: v, known: true} }

// Value returns the score and whether it is known.
func (r Rank) Value() (int64, bool) { return r.value, r.known }

// IsKnown reports whether the provider produced a score.
func (r Rank) IsKnown() bool { return r.known }

func (r Rank) String() string {
	if !r.known {
		return "unknown"
	}
	return strconv.FormatInt(r.value, 10)
}

// MarshalJSON encodes Unknown as null.
func (r Rank) MarshalJSON() ([]byte, error) {
	if !r.known {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(r.value, 10)), nil
}

// UnmarshalJSON reads null as Unknown and an integer as a known rank.
func (r *Rank) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Unknown
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Known(v)
	return nil
}

// Polarity tells whether bigger numbers mean more popular.
type Polarity int

const (
	HigherIsBetter Polarity = iota
	LowerIsBetter
)

func (p Polarity) String() string {
	switch p {
	case HigherIsBetter:
		return "higher-is-better"
	case LowerIsBetter:
		return "lower-is-better"
	default:
		return fmt.Sprintf("polarity(%d)", int(p))
	}
}

// Provider scores a URL. Implementations must be safe for concurrent use.
type Provider interface {
	// Name is the identity used as the Set key and the polarity table key.
	Name() string
	Polarity() Polarity
	// Rank never fails; anything short of a parsed score is Unknown.
	Rank(ctx context.Context, url string) Rank
}

// Set maps provider identity to the rank that provider gave one hit.
type Set map[string]Rank

// Polarities builds the identity → polarity table for providers.
func Polarities(providers []Provider) (map[string]Polarity, error) {
	table := make(map[string]Polarity, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("%w: nil provider", ErrInvalidConfig)
		}
		name := p.Name()
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: empty provider name", ErrInvalidConfig)
		}
		if _, ok := table[name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
		}
		table[name] = p.Polarity()
	}
	return table, nil
}

// Config holds per-provider settings.
type Config struct {
	Name  string
	Host  string
	Proxy string
	// Timeout governs each fetch. Zero means no per-request deadline.
	Timeout   time.Duration
	UserAgent string
}

const defaultTimeout = 30 * time.Second

func (c Config) validate(f fetch.Fetcher) error {
	if f == nil {
		return fmt.Errorf("%w: nil fetcher", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: provider name is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: %s: host is required", ErrInvalidConfig, c.Name)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: %s: negative timeout", ErrInvalidConfig, c.Name)
	}
	if _, err := fetch.ParseProxy(c.Proxy); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, c.Name, err)
	}
	return nil
}

func (c Config) request(u string) fetch.Request {
	return fetch.Request{URL: u, Timeout: c.Timeout, Proxy: c.Proxy}
}

// settle turns a lookup outcome into a Rank, logging why a score is missing.
func settle(ctx context.Context, provider, url string, r Rank, err error) Rank {
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("provider", provider).Str("url", url).Msg("rank unavailable")
		return Unknown
	}
	return r
}
