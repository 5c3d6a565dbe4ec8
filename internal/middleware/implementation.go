package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/akolanti/GoAnalyze/internal/adapter/utils"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/handlers"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/golang-jwt/jwt/v5"
)

const bypassUserId = "local"

var (
	errMissingToken = errors.New("missing bearer token")
	errNoSubject    = errors.New("token has no subject")
)

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	trace := req.Header.Get("X-Trace-Id")
	if trace == "" {
		trace = utils.GetNewUUID()
	}
	re.logger = re.logger.With("traceId", trace)
	ctx := context.WithValue(req.Context(), config.TRACE_ID_KEY, trace)
	req.Header.Set(`X-Trace-Id`, trace)
	re.writer.Header().Set(`X-Trace-Id`, trace)
	re.req = req.WithContext(ctx)

	re.logger.Debug("trace middleware injected")
	return re
}

func (m *Middleware) authenticate(re requestResponseStruct) requestResponseStruct {
	user, err := m.userFromRequest(re.req, re.logger)
	if err != nil {
		re.logger.Warn("Unauthorized request", "error", err)
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusUnauthorized,
			reason:       "unauthorized",
			errorMessage: "Unauthorized",
		}
		return re
	}
	re.logger = re.logger.With("userId", user)
	re.req = re.req.WithContext(context.WithValue(re.req.Context(), config.USER_ID_KEY, user))
	re.logger.Debug("Authorized")
	return re
}

// userFromRequest returns the subject of a valid HS256 bearer token. In bypass mode the
// caller names itself with X-User-Id.
func (m *Middleware) userFromRequest(r *http.Request, log *logger_i.Logger) (string, error) {
	if m.noAuthBypass {
		if user := strings.TrimSpace(r.Header.Get("X-User-Id")); user != "" {
			return user, nil
		}
		log.Debug("auth bypass without X-User-Id")
		return bypassUserId, nil
	}
	return ParseBearerToken(r.Header.Get("Authorization"), m.jwtSecret)
}

// ParseBearerToken validates the Authorization header value and returns the token subject.
func ParseBearerToken(authHeader string, secret []byte) (string, error) {
	raw, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}

	token, err := jwt.Parse(strings.TrimSpace(raw), func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(subject) == "" {
		return "", errNoSubject
	}
	return subject, nil
}

func (m *Middleware) rateLimiter(re requestResponseStruct) requestResponseStruct {
	ip, _, err := net.SplitHostPort(re.req.RemoteAddr)
	if err != nil {
		ip = re.req.RemoteAddr
	}

	if !m.limiter.GetLimiter(ip).Allow() {
		re.logger.Warn("Too many requests", "ip", ip)
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusTooManyRequests,
			reason:       "rate_limited",
			errorMessage: "Rate limit exceeded",
		}
		return re
	}
	return re
}

// handleBadRequest writes the rejection and reports whether the request may continue.
func handleBadRequest(re requestResponseStruct) bool {
	if re.badRequest.isBadRequest {
		re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "IP", re.req.RemoteAddr)
		handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, re.badRequest.reason, re.badRequest.errorMessage, re.badRequest.httpCode == http.StatusTooManyRequests)
		return false
	}
	return true
}
