package openaiChat

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/customHttpClient"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerName = "openai"

type llmClient struct {
	client    openai.Client
	modelName string
	logger    *logger_i.Logger
}

var _ llm.Provider = (*llmClient)(nil)

// GetOpenAIClient builds a chat completion provider. baseURL is optional and lets
// the client target any OpenAI-compatible endpoint.
func GetOpenAIClient(apiKey string, modelName string, baseURL string) (llm.Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(customHttpClient.NewClient(0)),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	logger := logger_i.NewLogger("llm_openai")
	logger.Info("OpenAI client created", "model", modelName)
	return &llmClient{client: openai.NewClient(opts...), modelName: modelName, logger: logger}, nil
}

func (c *llmClient) params(req llm.CompletionRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	p := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.modelName),
		Messages:    messages,
		Temperature: openai.Float(float64(config.ModelTemperature)),
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONSchema != nil {
		p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "structured_output",
					Schema: req.JSONSchema,
				},
			},
		}
	}
	return p
}

func (c *llmClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	logger := c.logger.FromContext(ctx)
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			logger.Error("OpenAI completion rejected", "status", apiErr.StatusCode, "error", err)
		} else {
			logger.Error("OpenAI completion failed", "error", err)
		}
		return llm.Completion{}, llm.Unavailable(providerName, err)
	}
	if len(resp.Choices) == 0 {
		return llm.Completion{}, llm.Unavailable(providerName, errors.New("no choices returned"))
	}

	out := llm.Completion{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	logger.Debug("OpenAI completion done", "inputTokens", out.InputTokens, "outputTokens", out.OutputTokens)
	return out, nil
}

func (c *llmClient) StreamComplete(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	if stream == nil {
		return nil, llm.Unavailable(providerName, fmt.Errorf("stream not opened"))
	}
	out := make(chan llm.StreamEvent, config.BufferLimit)
	logger := c.logger.FromContext(ctx)

	go func() {
		defer close(out)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !llm.Emit(ctx, out, llm.StreamEvent{Type: llm.StreamToken, Token: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			logger.Error("OpenAI stream failed", "error", err)
			llm.Emit(ctx, out, llm.StreamEvent{Type: llm.StreamError, Err: llm.Unavailable(providerName, err)})
			return
		}
		llm.Emit(ctx, out, llm.StreamEvent{Type: llm.StreamDone})
	}()
	return out, nil
}
