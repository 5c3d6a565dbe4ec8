package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/GoAnalyze/internal/metrics"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	reason       string
	errorMessage string
}

type Config struct {
	JWTSecret    string
	NoAuthBypass bool
	RateLimit    bool
	// Limiter defaults to a per-IP limiter from the config rates.
	Limiter *IPRateLimiter
}

// Middleware runs trace injection, authentication and rate limiting in that order.
type Middleware struct {
	jwtSecret    []byte
	noAuthBypass bool
	rateLimit    bool
	limiter      *IPRateLimiter
}

func New(cfg Config) *Middleware {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = defaultLimiter()
	}
	if cfg.NoAuthBypass {
		logger_i.NewLogger("middleware").Warn("Authentication bypass is enabled, X-User-Id is trusted as is")
	}
	return &Middleware{
		jwtSecret:    []byte(cfg.JWTSecret),
		noAuthBypass: cfg.NoAuthBypass,
		rateLimit:    cfg.RateLimit,
		limiter:      limiter,
	}
}

func (m *Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := m.processRequest(requestResponseStruct{req: r, writer: rec})

		if !handleBadRequest(re) {
			metrics.HttpRequestsTotal.WithLabelValues(routeLabel(re.req), strconv.Itoa(rec.Status)).Inc()
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(routeLabel(re.req), strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

// Handler adapts Wrap for mounted handlers such as the MCP endpoint.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return m.Wrap(next.ServeHTTP)
}

func (m *Middleware) processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "path", re.req.URL.Path)

	re = injectTrace(re)
	if m.rateLimit {
		re = m.rateLimiter(re)
		if re.badRequest.isBadRequest {
			return re
		}
	}
	return m.authenticate(re)
}

// routeLabel uses the route pattern so job ids do not explode the label set.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
