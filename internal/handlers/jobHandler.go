package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/akolanti/GoAnalyze/internal/adapter"
	"github.com/akolanti/GoAnalyze/internal/adapter/utils"
	"github.com/akolanti/GoAnalyze/internal/analysis"
	"github.com/akolanti/GoAnalyze/internal/api"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

// Analyzer is the job side of the pipeline: submit, then poll.
type Analyzer interface {
	Submit(ctx context.Context, userId string, projectId string, req analysis.Request) (analysis.SubmitResult, error)
	Status(ctx context.Context, userId string, jobId string) (analysisModel.AnalysisJob, error)
	Latest(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, error)
}

// SourceRegistry stores and lists a user's sources.
type SourceRegistry interface {
	Register(ctx context.Context, src commonModels.Source, raw []byte) (commonModels.Source, error)
	ResolveSources(ctx context.Context, userId string, projectId string, sourceIds []string) ([]commonModels.Source, error)
}

type Deps struct {
	Analyzer Analyzer
	Query    rag.Service
	Sources  SourceRegistry
	// QueryLog is optional; without it GET /queries returns an empty list.
	QueryLog analysisModel.QueryLogReader
}

type Handler struct {
	analyzer Analyzer
	query    rag.Service
	sources  SourceRegistry
	queryLog analysisModel.QueryLogReader
	logJH    *logger_i.Logger
	logRH    *logger_i.Logger
}

func NewHandler(deps Deps) *Handler {
	h := &Handler{
		analyzer: deps.Analyzer,
		query:    deps.Query,
		sources:  deps.Sources,
		queryLog: deps.QueryLog,
		logJH:    logger_i.NewLogger("JobHandler"),
		logRH:    logger_i.NewLogger("RequestHandler"),
	}
	h.logJH.Info("Starting job handler")
	return h
}

// AnalyzeHandler godoc
// @Summary      Analyze a project's sources
// @Description  Small corpora are answered inline with snippets (200). Larger ones start a background map-reduce job (201) to poll at statusUrl.
// @Tags         Analysis
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.AnalyzeRequest   true  "Instruction, project and optional source subset"
// @Success      200      {object}  api.QueryResponse    "Answered inline"
// @Success      201      {object}  api.InitJobResponse  "Job created"
// @Failure      400      {object}  api.ErrorResponse    "Invalid request"
// @Failure      422      {object}  api.ErrorResponse    "No source has usable content"
// @Failure      502      {object}  api.ErrorResponse    "Provider unavailable, retry"
// @Failure      503      {object}  api.ErrorResponse    "Queue full, retry"
// @Router       /analyze [post]
func (h *Handler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logJH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	var req api.AnalyzeRequest
	if err := decodeAndValidate(w, r, maxJSONBody, &req); err != nil {
		log.Warn("Bad analyze request", "error", err)
		writeServiceError(w, log, err)
		return
	}

	res, err := h.analyzer.Submit(r.Context(), user, req.ProjectId, analysis.Request{
		Instruction: req.Instruction,
		SourceIds:   req.SourceIds,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	if res.Sync != nil {
		writeJsonResponse(w, http.StatusOK, adapter.ToQueryResponse(*res.Sync))
		return
	}

	body := adapter.ToInitJobResponse(*res.Job)
	log.Info("Created analysis job", "jobId", res.Job.Id)
	w.Header().Set("Location", body.StatusURL)
	writeJsonResponse(w, http.StatusCreated, body)
}

// GetJobHandler godoc
// @Summary      Get job status
// @Description  Progress and outcome of one of the caller's analysis jobs. Jobs expire 24h after creation.
// @Tags         Analysis
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse    "Current job state"
// @Failure      404  {object}  api.ErrorResponse  "Unknown, expired or someone else's job"
// @Router       /job/{id} [get]
func (h *Handler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logJH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	id := strings.TrimSpace(utils.GetChiURLParam(r, "id"))
	log.Debug("Get job request", "jobId", id)
	if id == "" {
		WriteErrorResponse(w, http.StatusNotFound, "not_found", "Job not found", false)
		return
	}

	job, err := h.analyzer.Status(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToJobResponse(job))
}

// GetLatestJobHandler godoc
// @Summary      Get the latest job of a project
// @Description  Lets a client resume polling after a reload instead of resubmitting.
// @Tags         Analysis
// @Produce      json
// @Security     BearerAuth
// @Param        projectId  query     string  true  "Project ID"
// @Success      200        {object}  api.JobResponse
// @Failure      400        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Router       /job/latest [get]
func (h *Handler) GetLatestJobHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logJH.FromContext(r.Context())
	if !validateContext(r.Context(), log) {
		return
	}
	user, _ := userId(r.Context())

	projectId := strings.TrimSpace(r.URL.Query().Get("projectId"))
	if projectId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "validation", "projectId is required", false)
		return
	}
	job, err := h.analyzer.Latest(r.Context(), user, projectId)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToJobResponse(job))
}
