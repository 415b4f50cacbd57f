package app

import (
	"net"
	"net/http"
	"time"
)

// newRankHTTPClient returns the base client shared by search and rank
// lookups. Rank fan-out hits the same two hosts many times, so the per-host
// idle pool is large. Per-request deadlines come from the rank timeout; the
// client timeout only guards against hangs.
func newRankHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          0,   // no global limit
		MaxIdleConnsPerHost:   256, // fan-out targets few hosts
		MaxConnsPerHost:       0,   // bounded by rank parallelism instead
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   2 * time.Minute,
	}
}
