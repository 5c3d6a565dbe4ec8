package rag

import (
	"errors"

	"github.com/akolanti/GoAnalyze/internal/rag/llm"
)

var (
	// ErrValidation marks bad input. It is never retried and never reaches the pipeline.
	ErrValidation = errors.New("invalid request")
	// ErrNoUsableContent means none of the in-scope sources has cached text to search.
	ErrNoUsableContent = errors.New("no sources with usable content")
	// ErrProviderUnavailable is the generic retryable failure of the query path.
	ErrProviderUnavailable = llm.ErrProviderUnavailable
	// ErrMalformedOutput is model output that could not be read as data at all.
	// The query path reports it as ErrProviderUnavailable.
	ErrMalformedOutput = errors.New("malformed model output")
)
