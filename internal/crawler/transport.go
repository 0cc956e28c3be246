package crawler

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPTransport returns the pooled transport shared by all collectors of a run.
func NewHTTPTransport(cfg Config) *http.Transport {
	perHost := cfg.Parallelism * 2
	if perHost <= 0 {
		perHost = 2
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxConnsPerHost:       perHost,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	}
}
