package util

import (
	"log/slog"
	"net/http"
	"time"
)

const restTimeout = 20 * time.Second

// NewRestClient is the HTTP client behind the Discord REST API. Every request is
// bounded so a stuck call cannot hold a verification past its deadline.
func NewRestClient() *http.Client {
	return &http.Client{
		Timeout:   restTimeout,
		Transport: &rateLimitTripper{tripper: http.DefaultTransport},
	}
}

// rateLimitTripper logs responses Discord throttled. Retrying is left to the REST client.
type rateLimitTripper struct {
	tripper http.RoundTripper
}

func (t *rateLimitTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.tripper.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusTooManyRequests {
		slog.Warn("rest: rate limited",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("retry_after", res.Header.Get("Retry-After")),
			slog.String("scope", res.Header.Get("X-RateLimit-Scope")))
	}
	return res, nil
}
