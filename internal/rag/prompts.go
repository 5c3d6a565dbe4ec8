package rag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
)

const querySchemaJSON = `{
  "type": "object",
  "properties": {
    "snippets": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "content": {"type": "string", "minLength": 1},
          "sourceId": {"type": "string", "minLength": 1},
          "sourceTitle": {"type": "string"},
          "sourceLocation": {"type": "string"},
          "relevance": {"type": "number"}
        },
        "required": ["content", "sourceId", "sourceTitle", "sourceLocation", "relevance"],
        "additionalProperties": false
      }
    },
    "summary": {"type": "string"},
    "noResults": {"type": "boolean"}
  },
  "required": ["snippets", "summary", "noResults"],
  "additionalProperties": false
}`

// QuerySchema is the structured output schema handed to the provider.
func QuerySchema() map[string]any {
	var schema map[string]any
	if err := json.Unmarshal([]byte(querySchemaJSON), &schema); err != nil {
		panic(fmt.Sprintf("query schema: %v", err))
	}
	return schema
}

var querySystemPrompt = fmt.Sprintf(`You find passages in an author's reference sources that answer their question.

Rules:
- Every snippet's content must be copied verbatim from the source text. Never paraphrase, shorten, correct or join passages.
- Copy the exact sourceId and sourceTitle from the header of the chunk the snippet came from, and use the header's location as sourceLocation.
- Return at most %d snippets, most relevant first, each with a relevance between 0 and 1.
- The summary is one or two sentences on what the sources say about the question.
- If nothing in the sources answers the question, return an empty snippets list and set noResults to true.
- Use only the sources below. Do not draw on outside knowledge.

Respond with JSON only, matching this schema:
%s`, config.MaxSnippets, querySchemaJSON)

const documentSystemPrompt = `You are a research assistant analysing one reference document for an author.
Follow the author's instruction using only the document excerpts provided.
Quote the document exactly when you cite it and name the location from the excerpt header.
If the excerpts do not contain what the instruction asks for, say so plainly.`

const mapSystemPrompt = `You are analysing one batch of an author's reference sources.
Produce an intermediate summary of this batch that answers the instruction.
Keep every finding attributed: cite the sourceTitle and location of the excerpt it came from.
Quote exact wording for key evidence. Report only what this batch contains; another step merges batches.`

const reduceSystemPrompt = `You are combining intermediate summaries of an author's reference sources into one final answer.
Synthesize the batch summaries into one coherent answer to the original instruction.
Merge overlapping findings, preserve source attribution exactly as given, and organise the answer by theme rather than by batch.
Do not mention batches.
If a summary ends with a coverage note, say in the answer which source was only partly analyzed.`

// CoverageNotePrefix marks the note appended to a batch summary whose sources were trimmed to fit.
const CoverageNotePrefix = "Coverage note:"

// ChunkHeader is the attribution line the model must echo back.
func ChunkHeader(c commonModels.Chunk) string {
	return fmt.Sprintf("[sourceId=%s | sourceTitle=%s | location=%s]", c.SourceId, c.SourceTitle, c.Location())
}

// FormatChunks renders chunks under their headers, separated by blank lines.
func FormatChunks(chunks []commonModels.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(ChunkHeader(c))
		sb.WriteString("\n")
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func buildQueryPrompt(query string, chunks []commonModels.Chunk) string {
	return "Sources:\n\n" + FormatChunks(chunks) + "\n\nQuestion: " + strings.TrimSpace(query)
}

func buildDocumentPrompt(instruction string, chunks []commonModels.Chunk) string {
	return "Document excerpts:\n\n" + FormatChunks(chunks) + "\n\nInstruction: " + strings.TrimSpace(instruction)
}

// BuildMapPrompt is the per-batch prompt of an analysis job.
func BuildMapPrompt(instruction string, batch int, totalBatches int, chunks []commonModels.Chunk) (system string, user string) {
	user = fmt.Sprintf("Batch %d of %d.\n\nSources:\n\n%s\n\nInstruction: %s",
		batch, totalBatches, FormatChunks(chunks), strings.TrimSpace(instruction))
	return mapSystemPrompt, user
}

// BuildReducePrompt is the synthesis prompt over all batch summaries, in batch order.
func BuildReducePrompt(instruction string, summaries []string) (system string, user string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original instruction: %s\n\nSynthesize the following %d batch summaries.", strings.TrimSpace(instruction), len(summaries))
	for i, s := range summaries {
		fmt.Fprintf(&sb, "\n\n--- Summary %d ---\n%s", i+1, strings.TrimSpace(s))
	}
	return reduceSystemPrompt, sb.String()
}
