package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoAnalyze/internal/config"
)

type QueryRequest struct {
	Query     string
	SourceIds []string
}

// ValidateQuery checks the request shape. Catalog membership of SourceIds is checked later,
// against the caller's own project, and reported as ErrValidation too.
func ValidateQuery(req QueryRequest) error {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return fmt.Errorf("%w: query is empty", ErrValidation)
	}
	if utf8.RuneCountInString(q) > config.MaxQueryLength {
		return fmt.Errorf("%w: query exceeds %d characters", ErrValidation, config.MaxQueryLength)
	}
	return ValidateSourceIds(req.SourceIds)
}

// ValidateSourceIds rejects oversized lists and blank ids.
func ValidateSourceIds(ids []string) error {
	if len(ids) > config.MaxSourcesPerRequest {
		return fmt.Errorf("%w: at most %d sources per request", ErrValidation, config.MaxSourcesPerRequest)
	}
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: sourceIds[%d] is empty", ErrValidation, i)
		}
	}
	return nil
}

// ValidateInstruction applies to document analysis and analysis jobs.
func ValidateInstruction(instruction string) error {
	in := strings.TrimSpace(instruction)
	if in == "" {
		return fmt.Errorf("%w: instruction is empty", ErrValidation)
	}
	if utf8.RuneCountInString(in) > config.MaxInstructionLength {
		return fmt.Errorf("%w: instruction exceeds %d characters", ErrValidation, config.MaxInstructionLength)
	}
	return nil
}
