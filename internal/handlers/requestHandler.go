package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akolanti/GoAnalyze/internal/adapter"
	"github.com/akolanti/GoAnalyze/internal/adapter/utils"
	"github.com/akolanti/GoAnalyze/internal/api"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/ingest"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

const (
	defaultQueryLogLimit = 20
	maxQueryLogLimit     = 100
)

func GetHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// QueryHandler godoc
// @Summary      Query sources synchronously
// @Description  Returns up to 8 verbatim snippets from the project's sources with attribution. Nothing is cached between calls.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.QueryRequest   true  "Query, project and optional source subset"
// @Success      200      {object}  api.QueryResponse
// @Failure      400      {object}  api.ErrorResponse  "Invalid request"
// @Failure      422      {object}  api.ErrorResponse  "No source has usable content"
// @Failure      502      {object}  api.ErrorResponse  "Provider unavailable, retry"
// @Router       /query [post]
func (h *Handler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logRH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	var req api.QueryRequest
	if err := decodeAndValidate(w, r, maxJSONBody, &req); err != nil {
		log.Warn("Bad query request", "error", err)
		writeServiceError(w, log, err)
		return
	}

	result, err := h.query.Query(r.Context(), user, req.ProjectId, rag.QueryRequest{Query: req.Query, SourceIds: req.SourceIds})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToQueryResponse(result))
}

type streamToken struct {
	Token string `json:"token"`
}

type streamError struct {
	Message string `json:"message"`
	Retry   bool   `json:"can_retry"`
}

// AnalyzeStreamHandler godoc
// @Summary      Stream an analysis of one source
// @Description  Server-sent events: "token" events carry text, then exactly one "done" or "error" event ends the stream.
// @Tags         Analysis
// @Accept       json
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        request  body      api.AnalyzeDocumentRequest  true  "Source and instruction"
// @Success      200      {string}  string                      "event stream"
// @Failure      400      {object}  api.ErrorResponse
// @Failure      422      {object}  api.ErrorResponse
// @Failure      502      {object}  api.ErrorResponse
// @Router       /analyze/stream [post]
func (h *Handler) AnalyzeStreamHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logRH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	var req api.AnalyzeDocumentRequest
	if err := decodeAndValidate(w, r, maxJSONBody, &req); err != nil {
		log.Warn("Bad stream request", "error", err)
		writeServiceError(w, log, err)
		return
	}

	events, err := h.query.AnalyzeDocument(r.Context(), user, req.ProjectId, req.SourceId, req.Instruction)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			log.Debug("Stream client went away", "sourceId", req.SourceId)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var werr error
			switch ev.Type {
			case llm.StreamToken:
				werr = writeEvent(w, "token", streamToken{Token: ev.Token})
			case llm.StreamDone:
				werr = writeEvent(w, "done", struct{}{})
			case llm.StreamError:
				log.Warn("Stream failed", "sourceId", req.SourceId, "error", ev.Err)
				werr = writeEvent(w, "error", streamError{
					Message: "The analysis provider is temporarily unavailable",
					Retry:   ev.Err == nil || errors.Is(ev.Err, llm.ErrProviderUnavailable),
				})
			}
			if werr == nil {
				werr = rc.Flush()
			}
			if werr != nil {
				log.Warn("Could not write stream event", "error", werr)
				return
			}
			if ev.Type != llm.StreamToken {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// PostSourceHandler godoc
// @Summary      Register a text source
// @Description  Stores plain text, markdown or HTML content and its catalog entry. Re-posting a sourceId replaces its content.
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.SourceRequest   true  "Source content"
// @Success      201      {object}  api.SourceResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      422      {object}  api.ErrorResponse
// @Router       /sources [post]
func (h *Handler) PostSourceHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logRH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	var req api.SourceRequest
	if err := decodeAndValidate(w, r, config.MaxUploadSize, &req); err != nil {
		log.Warn("Bad source request", "error", err)
		writeServiceError(w, log, err)
		return
	}

	h.registerSource(w, r, log, commonModels.Source{
		Id:          sourceIdOrNew(req.SourceId),
		UserId:      user,
		ProjectId:   req.ProjectId,
		Title:       req.Title,
		ContentType: commonModels.ContentType(req.ContentType),
	}, []byte(req.Content))
}

// UploadSourceHandler handles pdf, docx, txt, markdown and html uploads.
// @Summary      Upload a source document
// @Description  Receives a file via multipart/form-data. Binary formats are converted to text once, at upload.
// @Tags         Sources
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  formData  string  true   "Project ID"
// @Param        title      formData  string  false  "Display title, defaults to the file name"
// @Param        sourceId   formData  string  false  "Existing source to replace"
// @Param        document   formData  file    true   "The file to upload"
// @Success      201  {object}  api.SourceResponse
// @Failure      400  {object}  api.ErrorResponse  "Missing fields or unsupported file type"
// @Failure      413  {object}  api.ErrorResponse  "File too large"
// @Failure      422  {object}  api.ErrorResponse  "No text could be extracted"
// @Router       /sources/upload [post]
func (h *Handler) UploadSourceHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logRH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize+maxJSONBody)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "too_large", "File too large", false)
			return
		}
		WriteErrorResponse(w, http.StatusBadRequest, "validation", "Bad multipart request", false)
		return
	}
	defer r.MultipartForm.RemoveAll()

	projectId := strings.TrimSpace(r.FormValue("projectId"))
	if projectId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "validation", "projectId is required", false)
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "validation", "Could not retrieve file", false)
		return
	}
	defer fileReader.Close()

	contentType := ingest.ContentTypeFromFilename(fileMetadata.Filename)
	if contentType == commonModels.ERR {
		WriteErrorResponse(w, http.StatusBadRequest, "validation", "Unsupported file type "+filepath.Ext(fileMetadata.Filename), false)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(fileReader, config.MaxUploadSize+1))
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, "internal", "Read error", true)
		return
	}
	if len(raw) > config.MaxUploadSize {
		WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "too_large", "File too large", false)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = fileMetadata.Filename
	}
	log.Debug("Upload received", "file", fileMetadata.Filename, "bytes", len(raw), "contentType", contentType)

	h.registerSource(w, r, log, commonModels.Source{
		Id:          sourceIdOrNew(r.FormValue("sourceId")),
		UserId:      user,
		ProjectId:   projectId,
		Title:       title,
		ContentType: contentType,
	}, raw)
}

func (h *Handler) registerSource(w http.ResponseWriter, r *http.Request, log *logger_i.Logger, src commonModels.Source, raw []byte) {
	saved, err := h.sources.Register(r.Context(), src, raw)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJsonResponse(w, http.StatusCreated, adapter.ToSourceResponse(saved))
}

func sourceIdOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return utils.GetNewUUID()
}

// ListSourcesHandler godoc
// @Summary      List a project's sources
// @Tags         Sources
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  query     string  true  "Project ID"
// @Success      200        {object}  api.SourceListResponse
// @Failure      400        {object}  api.ErrorResponse
// @Router       /sources [get]
func (h *Handler) ListSourcesHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logRH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	projectId := strings.TrimSpace(r.URL.Query().Get("projectId"))
	if projectId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "validation", "projectId is required", false)
		return
	}
	sources, err := h.sources.ResolveSources(r.Context(), user, projectId, nil)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSourceListResponse(sources))
}

// ListQueriesHandler godoc
// @Summary      Recent queries of the caller
// @Description  Analytics trail of synchronous queries, newest first. Snippet content is never stored.
// @Tags         Query
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "At most 100, default 20"
// @Success      200    {object}  api.QueryLogResponse
// @Router       /queries [get]
func (h *Handler) ListQueriesHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logRH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	limit := defaultQueryLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteErrorResponse(w, http.StatusBadRequest, "validation", "limit must be a positive integer", false)
			return
		}
		limit = min(n, maxQueryLogLimit)
	}

	if h.queryLog == nil {
		writeJsonResponse(w, http.StatusOK, adapter.ToQueryLogResponse(nil))
		return
	}
	records, err := h.queryLog.RecentQueries(r.Context(), user, limit)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToQueryLogResponse(records))
}
