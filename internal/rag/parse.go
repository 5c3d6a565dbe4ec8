package rag

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var queryOutputSchema = jsonschema.MustCompileString("query_output.json", querySchemaJSON)

type queryOutput struct {
	Snippets  []commonModels.Snippet `json:"snippets"`
	Summary   string                 `json:"summary"`
	NoResults bool                   `json:"noResults"`
}

// ParseQueryOutput reads the model's structured answer. A payload that is data but has the
// wrong shape is salvaged snippet by snippet; only text that is not data at all is an error.
// The snippet cap is left to attribute, after foreign sources are dropped.
func ParseQueryOutput(raw string) (commonModels.QueryResult, error) {
	doc, err := parseStructuredJSON(raw)
	if err != nil {
		return commonModels.QueryResult{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	var out queryOutput
	if verr := queryOutputSchema.Validate(doc); verr == nil {
		b, _ := json.Marshal(doc)
		if err := json.Unmarshal(b, &out); err != nil {
			return commonModels.QueryResult{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	} else {
		out = salvage(doc)
	}
	return finalize(out), nil
}

func finalize(out queryOutput) commonModels.QueryResult {
	snippets := make([]commonModels.Snippet, 0, len(out.Snippets))
	for _, s := range out.Snippets {
		if strings.TrimSpace(s.Content) == "" || strings.TrimSpace(s.SourceId) == "" {
			continue
		}
		s.Relevance = clampRelevance(s.Relevance)
		snippets = append(snippets, s)
	}
	return commonModels.QueryResult{
		Snippets:  snippets,
		Summary:   strings.TrimSpace(out.Summary),
		NoResults: len(snippets) == 0,
	}
}

func clampRelevance(r float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// salvage walks any decoded JSON value and keeps every object that looks like a snippet.
func salvage(doc any) queryOutput {
	var out queryOutput
	if m, ok := doc.(map[string]any); ok {
		if s, ok := m["summary"].(string); ok {
			out.Summary = s
		}
	}
	var walk func(v any)
	walk = func(v any) {
		switch n := v.(type) {
		case map[string]any:
			if s, ok := snippetFrom(n); ok {
				out.Snippets = append(out.Snippets, s)
				return
			}
			for _, child := range n {
				walk(child)
			}
		case []any:
			for _, child := range n {
				walk(child)
			}
		}
	}
	// map iteration order is random; walk the usual container first so order is stable there
	if m, ok := doc.(map[string]any); ok {
		if list, ok := m["snippets"]; ok {
			walk(list)
			return out
		}
	}
	walk(doc)
	return out
}

func snippetFrom(m map[string]any) (commonModels.Snippet, bool) {
	content, _ := m["content"].(string)
	sourceId, _ := m["sourceId"].(string)
	if strings.TrimSpace(content) == "" || strings.TrimSpace(sourceId) == "" {
		return commonModels.Snippet{}, false
	}
	s := commonModels.Snippet{Content: content, SourceId: sourceId}
	s.SourceTitle, _ = m["sourceTitle"].(string)
	s.SourceLocation, _ = m["sourceLocation"].(string)
	if r, ok := m["relevance"].(float64); ok {
		s.Relevance = r
	}
	return s, true
}

// parseStructuredJSON tries the raw text, then fence-stripped, then the outermost {...} or [...].
func parseStructuredJSON(content string) (any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			switch parsed.(type) {
			case map[string]any, []any:
				return parsed, nil
			}
		}
	}
	return nil, fmt.Errorf("failed to parse structured JSON")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start, closeChar := -1, ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start, closeChar = objectStart, "}"
	case arrayStart >= 0:
		start, closeChar = arrayStart, "]"
	default:
		return ""
	}
	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// attribute drops snippets citing a source that was not in the prompt, fills
// missing titles and locations from the chunk the content was copied from and
// keeps at most MaxSnippets of what remains.
func attribute(result commonModels.QueryResult, chunks []commonModels.Chunk) commonModels.QueryResult {
	bySource := map[string][]commonModels.Chunk{}
	for _, c := range chunks {
		bySource[c.SourceId] = append(bySource[c.SourceId], c)
	}

	kept := result.Snippets[:0]
	for _, s := range result.Snippets {
		candidates, ok := bySource[s.SourceId]
		if !ok {
			continue
		}
		s.SourceTitle = candidates[0].SourceTitle
		if s.SourceLocation == "" {
			needle := collapse(s.Content)
			for _, c := range candidates {
				if strings.Contains(collapse(c.Text), needle) {
					s.SourceLocation = c.Location()
					break
				}
			}
		}
		kept = append(kept, s)
		if len(kept) == config.MaxSnippets {
			break
		}
	}
	result.Snippets = kept
	result.NoResults = len(kept) == 0
	return result
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
