package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to the in-memory stores
	TRACE_ID_KEY                    = "traceId"
	USER_ID_KEY                     = "userId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5

	//chunking
	MaxChunkChars = 3000

	//token budgeting - estimates only, see budget.WordEstimator
	WordsPerToken             = 0.75
	DefaultMaxContextTokens   = 12000
	SystemPromptReserveTokens = 1000
	ResponseReserveTokens     = 2000

	//synchronous query path
	MaxQueryLength       = 1000
	QueryChunkQuota      = 8
	MaxSnippets          = 8
	QueryMaxOutputTokens = 4096
	QueryTimeout         = 60 * time.Second

	//map-reduce analysis
	InlineTokenThreshold  = DefaultMaxContextTokens //a corpus that fits the sync context never becomes a job
	BatchTokenBudget      = 80000
	MapConcurrency        = 3 //fixed ceiling for the provider's rate limits - do not scale with corpus size
	MapMaxAttempts        = 3
	MapRetryBaseDelay     = 2 * time.Second
	MapMaxOutputTokens    = 4096
	ReduceMaxOutputTokens = 8192
	JobTTL                = 24 * time.Hour
	JobRunTimeout         = 45 * time.Minute
	MaxInstructionLength  = 4000
	MaxSourcesPerRequest  = 200

	//client polling contract
	PollInterval   = 3 * time.Second
	MinPollTimeout = 5 * time.Minute
	MaxPollTimeout = 30 * time.Minute

	MaxWorkerCount    int64 = 10
	MinWorkerCount    int64 = 1
	IdleWorkerTimeout       = 1 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 120 * time.Second //streaming analysis holds the connection
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//upload
	MaxUploadSize = 32 << 20 //32mb

	//llm
	DefaultLLMProvider                    = "gemini"
	GeminiModelName                       = "gemini-2.5-flash-lite-preview-09-2025"
	OpenAIModelName                       = "gpt-4o-mini"
	GoogleEmbeddingModel                  = "gemini-embedding-001"
	EmbeddingOutputDimensionality int32   = 768
	ModelTemperature              float32 = 0.2

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore      = 0
	RedisContentStore  = 1
	RedisCatalogStore  = 2
	RedisQueryLogStore = 3

	RedisQueryLogTTL    = 7 * 24 * time.Hour
	RedisQueryLogLength = 1000
	RedisContentTTL     = 0 //cached source content lives until replaced

	//postgres
	PostgresMaxOpenConns    = 25
	PostgresMaxIdleConns    = 5
	PostgresConnMaxLifetime = 5 * time.Minute
)
