package commonModels

import (
	"context"
	"time"
)

type ContentType string

const (
	TEXT     ContentType = "text"
	MARKDOWN ContentType = "markdown"
	HTML     ContentType = "html"
	PDF      ContentType = "pdf"
	DOCX     ContentType = "docx"
	ERR      ContentType = "error"
)

// IsBinary reports whether the content must be extracted to text before chunking.
func (c ContentType) IsBinary() bool {
	return c == PDF || c == DOCX
}

func (c ContentType) Valid() bool {
	switch c {
	case TEXT, MARKDOWN, HTML, PDF, DOCX:
		return true
	}
	return false
}

// Source is one reference document in a user's project corpus.
// Only metadata lives here; the text itself sits in the ContentStore under ContentKey.
type Source struct {
	Id          string      `json:"source_id"`
	ProjectId   string      `json:"project_id"`
	UserId      string      `json:"user_id"`
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
	ContentKey  string      `json:"content_key"`
	WordCount   int         `json:"word_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Chunk is a transient span of one source's text. It is never persisted.
type Chunk struct {
	SourceId         string   `json:"source_id"`
	SourceTitle      string   `json:"source_title"`
	HeadingChain     []string `json:"heading_chain"`
	Text             string   `json:"text"`
	DocumentPosition int      `json:"document_position"`
	EstimatedTokens  int      `json:"estimated_tokens"`
}

// Location renders the heading chain for prompts and snippet attribution.
func (c Chunk) Location() string {
	if len(c.HeadingChain) == 0 {
		return ""
	}
	out := c.HeadingChain[0]
	for _, h := range c.HeadingChain[1:] {
		out += " > " + h
	}
	return out
}

// SourceChunks groups one source's chunks in that source's relevance order.
type SourceChunks struct {
	Source Source
	Chunks []Chunk
}

type Snippet struct {
	Content        string  `json:"content"`
	SourceId       string  `json:"sourceId"`
	SourceTitle    string  `json:"sourceTitle"`
	SourceLocation string  `json:"sourceLocation"`
	Relevance      float64 `json:"relevance"`
}

type QueryResult struct {
	Snippets  []Snippet `json:"snippets"`
	Summary   string    `json:"summary"`
	NoResults bool      `json:"noResults"`
}

type ContentMeta struct {
	ContentType ContentType `json:"content_type"`
	Size        int         `json:"size"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ContentStore holds the cached plain text, HTML or raw upload of each source.
type ContentStore interface {
	GetContent(ctx context.Context, key string) ([]byte, bool, error)
	PutContent(ctx context.Context, key string, data []byte, meta ContentMeta) error
}

// SourceCatalog lists sources per (user, project). Results never cross users.
type SourceCatalog interface {
	UpsertSource(ctx context.Context, source Source) error
	ListSources(ctx context.Context, userId string, projectId string) ([]Source, error)
}
