package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Settings holds the values that differ per deployment: addresses, secrets and provider choice.
// Tunables that shape the pipeline stay as constants in environmentVariables.go.
type Settings struct {
	ListenAddr    string `mapstructure:"listen_addr"`
	LogLevel      string `mapstructure:"log_level"`
	IsProd        bool   `mapstructure:"is_prod"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	DatabaseURL   string `mapstructure:"database_url"`

	LLMProvider    string `mapstructure:"llm_provider"`
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	GeminiModel    string `mapstructure:"gemini_model"`
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	OpenAIModel    string `mapstructure:"openai_model"`
	OpenAIBaseURL  string `mapstructure:"openai_base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	SemanticRank   bool   `mapstructure:"semantic_rank"`

	JWTSecret    string `mapstructure:"jwt_secret"`
	NoAuthBypass bool   `mapstructure:"no_auth_bypass"`
	RateLimit    bool   `mapstructure:"rate_limit"`
}

// Load reads settings from ANALYZE_* environment variables and an optional config file.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ServerListenAddr)
	v.SetDefault("log_level", "debug")
	v.SetDefault("is_prod", IS_PROD)
	v.SetDefault("redis_addr", RedisAddr)
	v.SetDefault("redis_password", "")
	v.SetDefault("database_url", "")
	v.SetDefault("llm_provider", DefaultLLMProvider)
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", GeminiModelName)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", OpenAIModelName)
	v.SetDefault("openai_base_url", "")
	v.SetDefault("embedding_model", GoogleEmbeddingModel)
	v.SetDefault("semantic_rank", false)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("no_auth_bypass", false)
	v.SetDefault("rate_limit", true)

	v.SetEnvPrefix("ANALYZE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	switch s.LLMProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", s.LLMProvider)
	}
	if !s.NoAuthBypass && s.JWTSecret == "" {
		return errors.New("jwt_secret is required unless no_auth_bypass is set")
	}
	return nil
}

// SlogLevel maps the configured level name onto slog, defaulting to debug.
func (s *Settings) SlogLevel() slog.Level {
	if s.IsProd && s.LogLevel == "" {
		return LOG_LEVEL_PROD
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
