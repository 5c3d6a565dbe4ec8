package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/GoAnalyze/internal/adapter"
	"github.com/akolanti/GoAnalyze/internal/analysis"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/corpus"
	"github.com/akolanti/GoAnalyze/internal/rag/ingest"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logger_i.NewLogger("RequestHandler").Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, reason string, message string, retry bool) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(httpCode, reason, message, retry))
}

// writeServiceError maps pipeline errors onto the response categories callers can act on.
// Provider details stay in the logs.
func writeServiceError(w http.ResponseWriter, log *logger_i.Logger, err error) {
	switch {
	case errors.Is(err, rag.ErrValidation):
		WriteErrorResponse(w, http.StatusBadRequest, "validation", err.Error(), false)
	case errors.Is(err, corpus.ErrUnreadableContent), errors.Is(err, ingest.ErrUnsupportedContentType):
		WriteErrorResponse(w, http.StatusUnprocessableEntity, "unreadable_content", err.Error(), false)
	case errors.Is(err, rag.ErrNoUsableContent):
		WriteErrorResponse(w, http.StatusUnprocessableEntity, "no_usable_content", "None of the selected sources has cached content to analyze", false)
	case errors.Is(err, analysisModel.ErrJobNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "not_found", "Job not found", false)
	case errors.Is(err, llm.ErrProviderUnavailable):
		log.Warn("Provider unavailable", "error", err)
		WriteErrorResponse(w, http.StatusBadGateway, "provider_unavailable", "The analysis provider is temporarily unavailable", true)
	case errors.Is(err, analysis.ErrNotScheduled):
		log.Error("Job not scheduled", "error", err)
		WriteErrorResponse(w, http.StatusServiceUnavailable, "not_scheduled", "The analysis queue is full, try again shortly", true)
	case errors.Is(err, context.DeadlineExceeded):
		WriteErrorResponse(w, http.StatusGatewayTimeout, "timeout", "The request took too long", true)
	case errors.Is(err, context.Canceled):
		log.Debug("Request cancelled by client")
	default:
		log.Error("Request failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "internal", "Internal server error", true)
	}
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", rag.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", rag.ErrValidation, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// userId is set by the auth middleware; a request without one never reaches a handler.
func userId(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(config.USER_ID_KEY).(string)
	return id, ok && id != ""
}

func validateContext(ctx context.Context, log *logger_i.Logger) bool {
	if err := ctx.Err(); err != nil {
		log.Warn("context error", "error", err)
		return false
	}
	return true
}
