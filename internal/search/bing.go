package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBingBaseURL is the Azure Marketplace endpoint of the Bing Search API.
const DefaultBingBaseURL = "https://api.datamarket.azure.com:443"

// Bing implements Provider against the Azure Marketplace Bing web search.
type Bing struct {
	BaseURL    string
	AccountKey string
	HTTPClient *http.Client
}

// NewBing requires the marketplace account key.
func NewBing(accountKey string, hc *http.Client) (*Bing, error) {
	if strings.TrimSpace(accountKey) == "" {
		return nil, errors.New("bing: account key is required")
	}
	return &Bing{BaseURL: DefaultBingBaseURL, AccountKey: accountKey, HTTPClient: hc}, nil
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) Search(ctx context.Context, term string, count, skip int) ([]Hit, error) {
	if b.AccountKey == "" {
		return nil, fmt.Errorf("%w: bing account key is empty", ErrSearchFailed)
	}
	if count <= 0 {
		count = 10
	}
	u, err := b.searchURL(term, count, skip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	req.SetBasicAuth("", b.AccountKey)
	hc := b.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP GET failed, status code = %d", ErrSearchFailed, resp.StatusCode)
	}
	var br bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("%w: decode bing response: %v", ErrSearchFailed, err)
	}
	if br.D == nil || br.D.Results == nil {
		return nil, fmt.Errorf("%w: unexpected formatting in search results", ErrSearchFailed)
	}
	out := make([]Hit, 0, len(br.D.Results))
	for _, r := range br.D.Results {
		if r.URL == nil || r.Title == nil || r.Description == nil {
			return nil, fmt.Errorf("%w: unexpected formatting in search results", ErrSearchFailed)
		}
		out = append(out, Hit{URL: *r.URL, Title: *r.Title, Description: *r.Description})
	}
	return out, nil
}

func (b *Bing) searchURL(term string, count, skip int) (string, error) {
	base := b.BaseURL
	if base == "" {
		base = DefaultBingBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u = u.JoinPath("Data.ashx", "Bing", "Search", "v1", "Web")
	// The OData parameter names start with '$', so the query is built by hand.
	var sb strings.Builder
	sb.WriteString("Query=%27")
	sb.WriteString(strings.ReplaceAll(url.QueryEscape(term), "+", "%20"))
	sb.WriteString("%27&$top=")
	sb.WriteString(strconv.Itoa(count))
	if skip > 0 {
		sb.WriteString("&$skip=")
		sb.WriteString(strconv.Itoa(skip))
	}
	sb.WriteString("&$format=JSON")
	u.RawQuery = sb.String()
	return u.String(), nil
}

type bingResponse struct {
	D *struct {
		Results []struct {
			URL         *string `json:"Url"`
			Title       *string `json:"Title"`
			Description *string `json:"Description"`
		} `json:"results"`
	} `json:"d"`
}
