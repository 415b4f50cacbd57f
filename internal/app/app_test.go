package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/ranksearch/internal/fetch"
	"github.com/hyperifyio/ranksearch/internal/search"
)

// rankServer answers both the toolbar and the XML endpoints for a fixed set
// of URLs. URLs missing from a table get an unusable answer.
func rankServer(t *testing.T, pagerank, traffic map[string]int) (host string, calls *int32) {
	t.Helper()
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		switch r.URL.Path {
		case "/tbr":
			target := strings.TrimPrefix(r.URL.Query().Get("q"), "info:")
			if v, ok := pagerank[target]; ok {
				fmt.Fprintf(w, "Rank_1:1:%d\n", v)
				return
			}
			w.WriteHeader(http.StatusForbidden)
		case "/data":
			w.Header().Set("Content-Type", "text/xml")
			if v, ok := traffic[r.URL.Query().Get("url")]; ok {
				fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ALEXA VER="0.9"><SD><POPULARITY URL="x" TEXT="%d"/></SD></ALEXA>`, v)
				return
			}
			_, _ = w.Write([]byte(`<?xml version="1.0"?><ALEXA VER="0.9"><SD/></ALEXA>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://"), &n
}

func writeResults(t *testing.T, hits []search.Hit) string {
	t.Helper()
	b, err := json.Marshal(hits)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p := filepath.Join(t.TempDir(), "results.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write results: %v", err)
	}
	return p
}

var sampleHits = []search.Hit{
	{URL: "https://a.example/", Title: "Rank A", Description: "first"},
	{URL: "https://b.example/", Title: "Rank B", Description: "second"},
	{URL: "https://c.example/", Title: "Rank C", Description: "third"},
}

func testConfig(t *testing.T, host string) Config {
	cfg := DefaultConfig()
	cfg.Query = "rank"
	cfg.FileSearchPath = writeResults(t, sampleHits)
	cfg.Google.Host = host
	cfg.Alexa.Host = host
	cfg.RankTimeout = 5 * time.Second
	return cfg
}

func urlsOf(t *testing.T, a *App, cfg Config) []string {
	t.Helper()
	got, err := a.Search(context.Background(), cfg.Query)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	out := make([]string, 0, len(got))
	for _, h := range got {
		out = append(out, h.URL)
	}
	return out
}

func TestSearch_RanksAndSorts(t *testing.T) {
	host, _ := rankServer(t,
		map[string]int{"https://a.example/": 3, "https://b.example/": 7},
		map[string]int{"https://a.example/": 500, "https://b.example/": 20},
	)

	cases := []struct {
		name    string
		order   string
		reverse bool
		want    string
	}{
		{"search order", "", false, "a b c"},
		{"alexa most popular first", "alexa", false, "b a c"},
		{"google least popular first", "GooglePageRank", true, "c a b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t, host)
			cfg.Order = tc.order
			cfg.Reverse = tc.reverse
			a, err := New(context.Background(), cfg)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			got := urlsOf(t, a, cfg)
			short := make([]string, 0, len(got))
			for _, u := range got {
				short = append(short, strings.TrimSuffix(strings.TrimPrefix(u, "https://"), ".example/"))
			}
			if s := strings.Join(short, " "); s != tc.want {
				t.Fatalf("order = %q, want %q", s, tc.want)
			}
		})
	}
}

func TestSearch_EveryHitCarriesEveryProvider(t *testing.T) {
	host, _ := rankServer(t, map[string]int{"https://a.example/": 3}, nil)
	a, err := New(context.Background(), testConfig(t, host))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := a.Search(context.Background(), "rank")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, h := range got {
		if len(h.Ranks) != 2 {
			t.Fatalf("%s has %d ranks", h.URL, len(h.Ranks))
		}
	}
	if v, ok := got[0].Ranks["GooglePageRank"].Value(); !ok || v != 3 {
		t.Fatalf("a pagerank = %v", got[0].Ranks["GooglePageRank"])
	}
	if got[1].Ranks["AlexaTrafficRank"].IsKnown() {
		t.Fatalf("b traffic rank should be unknown")
	}
}

func TestSearch_NoHitsSkipsRanking(t *testing.T) {
	host, calls := rankServer(t, nil, nil)
	cfg := testConfig(t, host)
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := a.Search(context.Background(), "nothing matches this")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("rank endpoints should not be called without hits")
	}
}

func TestSearch_KeepsHitsVerbatim(t *testing.T) {
	raw := []search.Hit{
		{URL: "http://X.example:80/p?b=2&a=1;c=3&utm_source=feed#frag", Title: "rank one", Description: " padded "},
		{URL: "http://X.example:80/p?b=2&a=1;c=3&utm_source=feed#frag", Title: "rank again"},
		{URL: "/relative/rank", Title: "rank relative"},
	}
	host, _ := rankServer(t, map[string]int{raw[0].URL: 4}, nil)
	cfg := testConfig(t, host)
	cfg.FileSearchPath = writeResults(t, raw)
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	got, err := a.Search(context.Background(), "rank")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != len(raw) {
		t.Fatalf("expected %d hits, got %d", len(raw), len(got))
	}
	for i, h := range got {
		if h.Hit != raw[i] {
			t.Fatalf("hit %d rewritten: got %+v, want %+v", i, h.Hit, raw[i])
		}
	}
	// the rank service saw the URL exactly as returned by search
	if v, ok := got[0].Ranks["GooglePageRank"].Value(); !ok || v != 4 {
		t.Fatalf("pagerank of verbatim url = %v", got[0].Ranks["GooglePageRank"])
	}
}

func TestSearch_FailureIsSearchFailed(t *testing.T) {
	host, _ := rankServer(t, nil, nil)
	cfg := testConfig(t, host)
	cfg.FileSearchPath = filepath.Join(t.TempDir(), "missing.json")
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := a.Search(context.Background(), "rank"); !errors.Is(err, search.ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
}

func TestRun_WritesJSONAndMetrics(t *testing.T) {
	host, _ := rankServer(t,
		map[string]int{"https://a.example/": 3, "https://b.example/": 7},
		map[string]int{"https://b.example/": 20},
	)
	dir := t.TempDir()
	cfg := testConfig(t, host)
	cfg.Format = FormatJSON
	cfg.OutputPath = filepath.Join(dir, "out.json")
	cfg.MetricsOut = filepath.Join(dir, "ranksearch.prom")
	cfg.Order = "google"

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	b, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var report struct {
		Query     string   `json:"query"`
		Providers []string `json:"providers"`
		Results   []struct {
			URL   string            `json:"url"`
			Ranks map[string]*int64 `json:"ranks"`
		} `json:"results"`
	}
	if err := json.Unmarshal(b, &report); err != nil {
		t.Fatalf("decode output: %v\n%s", err, b)
	}
	if report.Query != "rank" || len(report.Results) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if strings.Join(report.Providers, ",") != "GooglePageRank,AlexaTrafficRank" {
		t.Fatalf("providers = %v", report.Providers)
	}
	first := report.Results[0]
	if first.URL != "https://b.example/" || first.Ranks["GooglePageRank"] == nil || *first.Ranks["GooglePageRank"] != 7 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if report.Results[2].Ranks["AlexaTrafficRank"] != nil {
		t.Fatalf("unknown rank should encode as null")
	}

	prom, err := os.ReadFile(cfg.MetricsOut)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		`search_requests_total{provider="file",result="ok"} 1`,
		`rank_fetches_total{outcome="known",provider="GooglePageRank"} 2`,
		`rank_fetches_total{outcome="unknown",provider="AlexaTrafficRank"} 2`,
	} {
		if !strings.Contains(string(prom), want) {
			t.Fatalf("metrics missing %q:\n%s", want, prom)
		}
	}
}

func TestRun_MarkdownToStdout(t *testing.T) {
	host, _ := rankServer(t, map[string]int{"https://a.example/": 3}, nil)
	cfg := testConfig(t, host)
	cfg.Alexa.Disabled = true
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var buf bytes.Buffer
	a.stdout = &buf
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Results for \"rank\"",
		"1. [Rank A](https://a.example/)",
		"GooglePageRank: 3",
		"GooglePageRank: unknown",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "AlexaTrafficRank") {
		t.Fatalf("disabled provider rendered:\n%s", out)
	}
}

func TestRun_NoQuery(t *testing.T) {
	host, _ := rankServer(t, nil, nil)
	cfg := testConfig(t, host)
	cfg.Query = "  "
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Run(context.Background()); !errors.Is(err, ErrNoQuery) {
		t.Fatalf("expected ErrNoQuery, got %v", err)
	}
}

func TestNew_RequiresSearchProvider(t *testing.T) {
	if _, err := New(context.Background(), DefaultConfig()); !errors.Is(err, ErrNoSearchProvider) {
		t.Fatalf("expected ErrNoSearchProvider, got %v", err)
	}
}

func TestNew_PicksSearchProvider(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"file wins", Config{FileSearchPath: "x.json", BingKey: "k", SearxURL: "http://s"}, "file"},
		{"bing before searx", Config{BingKey: "k", SearxURL: "http://s"}, "bing"},
		{"searx", Config{SearxURL: "http://s"}, "searxng"},
	}
	for _, tc := range cases {
		p, err := newSearchProvider(tc.cfg, http.DefaultClient)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if p.Name() != tc.want {
			t.Fatalf("%s: got %s", tc.name, p.Name())
		}
	}

	p, err := newSearchProvider(Config{BingKey: "k", BingURL: "http://bing.test"}, http.DefaultClient)
	if err != nil {
		t.Fatalf("bing: %v", err)
	}
	if b := p.(*search.Bing); b.BaseURL != "http://bing.test" {
		t.Fatalf("bing base url = %q", b.BaseURL)
	}
}

type recordingFetcher struct {
	reqs []fetch.Request
}

func (r *recordingFetcher) Fetch(_ context.Context, req fetch.Request) (fetch.Response, error) {
	r.reqs = append(r.reqs, req)
	return fetch.Response{StatusCode: http.StatusServiceUnavailable}, nil
}

func TestNewRankProviders_Overrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RankProxy = "proxy.internal:3128"
	cfg.RankTimeout = 7 * time.Second
	cfg.Google.Host = "pr.internal"
	cfg.Alexa.Proxy = "socks5://127.0.0.1:1080"
	cfg.Alexa.Timeout = 2 * time.Second

	f := &recordingFetcher{}
	providers, err := NewRankProviders(f, cfg)
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	if len(providers) != 2 || providers[0].Name() != "GooglePageRank" || providers[1].Name() != "AlexaTrafficRank" {
		t.Fatalf("unexpected providers: %v", providers)
	}
	for _, p := range providers {
		if p.Rank(context.Background(), "http://x.example").IsKnown() {
			t.Fatalf("%s: 503 must yield unknown", p.Name())
		}
	}
	g, al := f.reqs[0], f.reqs[1]
	if !strings.HasPrefix(g.URL, "http://pr.internal/tbr?") || g.Proxy != "proxy.internal:3128" || g.Timeout != 7*time.Second {
		t.Fatalf("google request = %+v", g)
	}
	if !strings.HasPrefix(al.URL, "http://xml.alexa.com/data?") || al.Proxy != "socks5://127.0.0.1:1080" || al.Timeout != 2*time.Second {
		t.Fatalf("alexa request = %+v", al)
	}

	cfg.Google.Disabled = true
	providers, err = NewRankProviders(f, cfg)
	if err != nil || len(providers) != 1 || providers[0].Name() != "AlexaTrafficRank" {
		t.Fatalf("disabling google: %v %v", providers, err)
	}

	cfg.RankProxy = "ftp://nope"
	cfg.Google.Disabled = false
	if _, err := NewRankProviders(f, cfg); err == nil {
		t.Fatalf("expected invalid proxy error")
	}
}
