// @title           Source Analysis API
// @version         1.0
// @description     Answers questions over a project's reference sources and runs long analyses as background jobs.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.email   ank.github@gmail.com

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/GoAnalyze/internal/analysis"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/data/postgresStore"
	"github.com/akolanti/GoAnalyze/internal/data/redisStore"
	"github.com/akolanti/GoAnalyze/internal/data/store"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/handlers"
	"github.com/akolanti/GoAnalyze/internal/job"
	"github.com/akolanti/GoAnalyze/internal/mcpserver"
	"github.com/akolanti/GoAnalyze/internal/middleware"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/corpus"
	"github.com/akolanti/GoAnalyze/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/internal/rag/llm/gemini"
	"github.com/akolanti/GoAnalyze/internal/rag/llm/openaiChat"
	"github.com/akolanti/GoAnalyze/internal/rag/retrieval"
	"github.com/akolanti/GoAnalyze/internal/server"
	"github.com/akolanti/GoAnalyze/internal/worker"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

var (
	listenAddr        string
	configFile        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

// stores groups the persistence backends picked at startup.
type stores struct {
	jobs     analysisModel.JobStore
	queryLog analysisModel.QueryLogStore
	catalog  commonModels.SourceCatalog
	content  commonModels.ContentStore
}

func main() {
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides the listen_addr setting")
	flag.StringVar(&configFile, "config", "", "optional config file")
	flag.Parse()

	settings, err := config.Load(configFile)
	if err != nil {
		logger_i.Init(config.IS_PROD, config.LOG_LEVEL_PROD)
		logger_i.NewLogger("main").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger_i.Init(settings.IsProd, settings.SlogLevel())
	var logger = logger_i.NewLogger("main")
	if listenAddr == "" {
		listenAddr = settings.ListenAddr
	}

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	s, ok := initStores(serviceContext, settings, logger)
	if !ok {
		logger.Error("No usable store. Shutting down.")
		return
	}

	provider, err := initProvider(serviceContext, settings)
	if err != nil {
		logger.Error("LLM provider failed to initialize. Shutting down.", "provider", settings.LLMProvider, "error", err)
		return
	}

	var ranker retrieval.Ranker
	if settings.SemanticRank {
		embedder, err := googleEmbedding.GetGoogleEmbeddingClient(serviceContext, settings.EmbeddingModel, settings.GeminiAPIKey)
		if err != nil {
			logger.Warn("Semantic ranking disabled, keyword ranking only", "error", err)
		} else {
			ranker = retrieval.SemanticRanker{Embedder: embedder}
		}
	}

	loader := corpus.NewLoader(s.catalog, s.content)
	ragService := rag.NewService(loader, retrieval.NewRetriever(ranker), provider, s.queryLog)

	//init buffered job channel
	jobChannel := make(chan job.QueuedJob, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	logger.Info("Starting job service")
	jobService := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
	})

	runLock, _ := s.jobs.(analysisModel.RunLock)
	engine := analysis.NewEngine(analysis.EngineConfig{
		Jobs:     s.jobs,
		RunLock:  runLock,
		Loader:   loader,
		Provider: provider,
		Query:    ragService,
		Enqueuer: jobService,
	})

	//init worker pool
	worker.InitServices(jobService, engine)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	queryLogReader, _ := s.queryLog.(analysisModel.QueryLogReader)
	h := handlers.NewHandler(handlers.Deps{
		Analyzer: engine,
		Query:    ragService,
		Sources:  loader,
		QueryLog: queryLogReader,
	})
	mw := middleware.New(middleware.Config{
		JWTSecret:    settings.JWTSecret,
		NoAuthBypass: settings.NoAuthBypass,
		RateLimit:    settings.RateLimit,
	})
	if settings.NoAuthBypass {
		logger.Warn("Authentication is bypassed, X-User-Id is trusted")
	}

	mcp, err := mcpserver.NewServer(ragService, engine)
	if err != nil {
		logger.Error("MCP server failed to initialize. Shutting down.", "error", err)
		return
	}

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr, h, mw, mcp.Handler())

	<-stopExecution
	logger.Info("Server stopped")
}

// initStores prefers Postgres for jobs, the catalog and the query log when a database
// url is set, Redis otherwise. Source content always lives in Redis or memory.
func initStores(ctx context.Context, settings *config.Settings, logger *logger_i.Logger) (stores, bool) {
	var s stores
	redisOpts := redisStore.Options{Addr: settings.RedisAddr, Password: settings.RedisPassword}

	if settings.DatabaseURL != "" {
		db, err := postgresStore.Connect(ctx, postgresStore.DefaultConfig(settings.DatabaseURL))
		if err == nil {
			err = db.InitSchema(ctx)
		}
		if err != nil {
			logger.Error("Postgres is offline", "error", err)
		} else {
			s.jobs = postgresStore.NewJobStore(db)
			s.queryLog = postgresStore.NewQueryLogStore(db)
			s.catalog = postgresStore.NewSourceCatalog(db)
			go func() {
				<-ctx.Done()
				db.Close()
			}()
		}
	}

	if s.jobs == nil {
		jobs := store.GetRedisJobStore(ctx, redisOpts)
		queryLog := store.GetRedisQueryLogStore(ctx, redisOpts)
		catalog := store.GetRedisSourceCatalog(ctx, redisOpts)
		if jobs != nil && queryLog != nil && catalog != nil {
			s.jobs, s.queryLog, s.catalog = jobs, queryLog, catalog
		}
	}
	if content := store.GetRedisContentStore(ctx, redisOpts); content != nil {
		s.content = content
	}

	if s.jobs != nil && s.content != nil {
		return s, true
	}
	if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
		return s, false
	}

	logger.Error("Redis stores are offline, falling back to in-memory stores")
	if s.jobs == nil {
		s.jobs = store.InitInMemoryJobStore()
		s.queryLog = store.InitQueryLogStore()
		s.catalog = store.InitInMemorySourceCatalog()
	}
	if s.content == nil {
		s.content = store.InitInMemoryContentStore()
	}
	return s, true
}

func initProvider(ctx context.Context, settings *config.Settings) (llm.Provider, error) {
	if settings.LLMProvider == "openai" {
		return openaiChat.GetOpenAIClient(settings.OpenAIAPIKey, settings.OpenAIModel, settings.OpenAIBaseURL)
	}
	return gemini.GetGeminiClient(ctx, settings.GeminiAPIKey, settings.GeminiModel)
}
