package rag_test

import (
	"context"
	"sync"

	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
)

// MockLLM implements llm.Provider
type MockLLM struct {
	OnComplete       func(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error)
	OnStreamComplete func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error)

	mu       sync.Mutex
	Requests []llm.CompletionRequest
}

func (m *MockLLM) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.OnComplete != nil {
		return m.OnComplete(ctx, req)
	}
	return llm.Completion{Text: `{"snippets":[],"summary":"","noResults":true}`}, nil
}

func (m *MockLLM) StreamComplete(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.OnStreamComplete != nil {
		return m.OnStreamComplete(ctx, req)
	}
	out := make(chan llm.StreamEvent, 2)
	out <- llm.StreamEvent{Type: llm.StreamToken, Token: "mocked"}
	out <- llm.StreamEvent{Type: llm.StreamDone}
	close(out)
	return out, nil
}

func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// MockQueryLog records every saved QueryRecord
type MockQueryLog struct {
	OnSaveQuery func(ctx context.Context, record analysisModel.QueryRecord) error

	mu      sync.Mutex
	Records []analysisModel.QueryRecord
}

func (m *MockQueryLog) SaveQuery(ctx context.Context, record analysisModel.QueryRecord) error {
	m.mu.Lock()
	m.Records = append(m.Records, record)
	m.mu.Unlock()
	if m.OnSaveQuery != nil {
		return m.OnSaveQuery(ctx, record)
	}
	return nil
}
