package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/customHttpClient"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"google.golang.org/genai"
)

const providerName = "gemini"

type llmClient struct {
	client    *genai.Client
	modelName string
	logger    *logger_i.Logger
}

var _ llm.Provider = (*llmClient)(nil)

func GetGeminiClient(ctx context.Context, apiKey string, modelName string) (llm.Provider, error) {
	logger := logger_i.NewLogger("llm_gemini")
	if apiKey == "" {
		return nil, errors.New("gemini api key is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.NewClient(0),
	})
	if err != nil {
		logger.Error("Error creating Gemini client", "error", err)
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	logger.Info("Gemini client created", "model", modelName)
	return &llmClient{client: c, modelName: modelName, logger: logger}, nil
}

func (c *llmClient) contentConfig(req llm.CompletionRequest) *genai.GenerateContentConfig {
	temperature := config.ModelTemperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.JSONSchema
	}
	return cfg
}

func (c *llmClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	logger := c.logger.FromContext(ctx)
	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(req.User), c.contentConfig(req))
	if err != nil {
		logger.Error("Gemini completion failed", "error", err)
		return llm.Completion{}, llm.Unavailable(providerName, err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.Completion{}, llm.Unavailable(providerName, errors.New("empty response"))
	}

	out := llm.Completion{Text: result.Text()}
	if result.UsageMetadata != nil {
		out.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	logger.Debug("Gemini completion done", "inputTokens", out.InputTokens, "outputTokens", out.OutputTokens)
	return out, nil
}

func (c *llmClient) StreamComplete(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	out := make(chan llm.StreamEvent, config.BufferLimit)
	logger := c.logger.FromContext(ctx)

	go func() {
		defer close(out)
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.modelName, genai.Text(req.User), c.contentConfig(req)) {
			if err != nil {
				logger.Error("Gemini stream failed", "error", err)
				llm.Emit(ctx, out, llm.StreamEvent{Type: llm.StreamError, Err: llm.Unavailable(providerName, err)})
				return
			}
			if text := resp.Text(); text != "" {
				if !llm.Emit(ctx, out, llm.StreamEvent{Type: llm.StreamToken, Token: text}) {
					return
				}
			}
		}
		llm.Emit(ctx, out, llm.StreamEvent{Type: llm.StreamDone})
	}()
	return out, nil
}
