package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/GoAnalyze/internal/adapter/utils"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/handlers"
	"github.com/akolanti/GoAnalyze/internal/middleware"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

var server *http.Server

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

// Routes mounts the API on r. mcpHandler is optional.
func Routes(r chi.Router, h *handlers.Handler, mw *middleware.Middleware, mcpHandler http.Handler) {
	r.Get("/health", handlers.GetHandler)

	r.Post("/analyze", mw.Wrap(h.AnalyzeHandler))
	r.Post("/analyze/stream", mw.Wrap(h.AnalyzeStreamHandler))
	r.Post("/query", mw.Wrap(h.QueryHandler))
	r.Get("/job/latest", mw.Wrap(h.GetLatestJobHandler))
	r.Get("/job/{id}", mw.Wrap(h.GetJobHandler))

	r.Post("/sources", mw.Wrap(h.PostSourceHandler))
	r.Post("/sources/upload", mw.Wrap(h.UploadSourceHandler))
	r.Get("/sources", mw.Wrap(h.ListSourcesHandler))
	r.Get("/queries", mw.Wrap(h.ListQueriesHandler))

	if mcpHandler != nil {
		r.Handle("/mcp", mw.Handler(mcpHandler))
	}
}

func CreateServer(listenAddr string, h *handlers.Handler, mw *middleware.Middleware, mcpHandler http.Handler) {
	logger := logger_i.NewLogger("Server")

	r := utils.GetRouter()
	Routes(r.Router, h, mw, mcpHandler)

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      r.Router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	logger := logger_i.NewLogger("Server")
	logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers; running jobs finish on their own detached contexts
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Gracefully is shutting down")
	case <-ctx.Done():
		logger.Info("Force Shut down")
		os.Exit(1)
	}
}
