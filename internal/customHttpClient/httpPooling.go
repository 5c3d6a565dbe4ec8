package customHttpClient

import (
	"net/http"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
)

// one transport for every provider SDK so connections to the same host are reused
var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// NewClient returns an http.Client on the shared pooled transport.
// A zero timeout leaves deadlines to the request context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   timeout,
	}
}
