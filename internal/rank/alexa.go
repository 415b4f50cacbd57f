package rank

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/ranksearch/internal/fetch"
)

var errNoPopularity = errors.New("no SD element with POPULARITY")

// DefaultAlexaConfig returns the Alexa XML endpoint settings.
func DefaultAlexaConfig() Config {
	return Config{
		Name:    "AlexaTrafficRank",
		Host:    "xml.alexa.com",
		Timeout: defaultTimeout,
	}
}

// AlexaTrafficRank reads the Alexa traffic rank. Lower is better.
type AlexaTrafficRank struct {
	cfg     Config
	fetcher fetch.Fetcher
}

func NewAlexaTrafficRank(f fetch.Fetcher, cfg Config) (*AlexaTrafficRank, error) {
	if err := cfg.validate(f); err != nil {
		return nil, err
	}
	return &AlexaTrafficRank{cfg: cfg, fetcher: f}, nil
}

func (a *AlexaTrafficRank) Name() string       { return a.cfg.Name }
func (a *AlexaTrafficRank) Polarity() Polarity { return LowerIsBetter }

func (a *AlexaTrafficRank) Rank(ctx context.Context, target string) Rank {
	r, err := a.lookup(ctx, target)
	return settle(ctx, a.cfg.Name, target, r, err)
}

func (a *AlexaTrafficRank) lookup(ctx context.Context, target string) (Rank, error) {
	req := a.cfg.request(a.queryURL(target))
	if a.cfg.UserAgent != "" {
		req.Header = http.Header{"User-Agent": []string{a.cfg.UserAgent}}
	}
	resp, err := a.fetcher.Fetch(ctx, req)
	if err != nil {
		return Unknown, err
	}
	if resp.StatusCode != http.StatusOK {
		return Unknown, fmt.Errorf("status %d", resp.StatusCode)
	}
	return parseAlexaRank(resp.Body)
}

func (a *AlexaTrafficRank) queryURL(target string) string {
	q := url.Values{}
	q.Set("cli", "10")
	q.Set("dat", "nsa")
	q.Set("ver", "quirk-searchstatus")
	q.Set("uid", "20120730094100")
	q.Set("userip", "192.168.0.1")
	q.Set("url", target)
	u := url.URL{Scheme: "http", Host: a.cfg.Host, Path: "/data", RawQuery: q.Encode()}
	return u.String()
}

// alexaDocument matches any root element; only direct SD children count.
type alexaDocument struct {
	SD []struct {
		Popularity *struct {
			Text string `xml:"TEXT,attr"`
		} `xml:"POPULARITY"`
	} `xml:"SD"`
}

func parseAlexaRank(body []byte) (Rank, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	var doc alexaDocument
	if err := dec.Decode(&doc); err != nil {
		return Unknown, fmt.Errorf("decode xml: %w", err)
	}
	for _, sd := range doc.SD {
		if sd.Popularity == nil {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(sd.Popularity.Text), 10, 64)
		if err != nil {
			return Unknown, fmt.Errorf("parse popularity %q: %w", sd.Popularity.Text, err)
		}
		return Known(v), nil
	}
	return Unknown, errNoPopularity
}
