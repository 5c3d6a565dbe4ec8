package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag/budget"
	"github.com/akolanti/GoAnalyze/internal/rag/ingest"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

var (
	ErrUnknownSource = errors.New("unknown source id")
	// ErrUnreadableContent is an upload whose text could not be extracted.
	ErrUnreadableContent = errors.New("source content could not be read")
)

// Loader reads a user's corpus snapshot: catalog metadata plus cached content, chunked fresh on every call.
type Loader struct {
	Catalog commonModels.SourceCatalog
	Content commonModels.ContentStore
	Chunker ingest.Chunker
}

func NewLoader(catalog commonModels.SourceCatalog, content commonModels.ContentStore) *Loader {
	return &Loader{Catalog: catalog, Content: content, Chunker: ingest.NewChunker()}
}

// ResolveSources returns the project's sources, narrowed to sourceIds when given.
// Every requested id must exist in this user's project; order follows sourceIds.
func (l *Loader) ResolveSources(ctx context.Context, userId string, projectId string, sourceIds []string) ([]commonModels.Source, error) {
	all, err := l.Catalog.ListSources(ctx, userId, projectId)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	if len(sourceIds) == 0 {
		return all, nil
	}

	byId := make(map[string]commonModels.Source, len(all))
	for _, s := range all {
		byId[s.Id] = s
	}
	out := make([]commonModels.Source, 0, len(sourceIds))
	seen := map[string]struct{}{}
	for _, id := range sourceIds {
		s, ok := byId[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// LoadText returns a source's chunkable text. ok is false when no usable content is cached.
func (l *Loader) LoadText(ctx context.Context, source commonModels.Source) (string, commonModels.ContentType, bool, error) {
	logger := logger_i.NewLogger("corpus").FromContext(ctx)
	key := source.ContentKey
	if key == "" {
		key = source.Id
	}
	data, found, err := l.Content.GetContent(ctx, key)
	if err != nil {
		return "", "", false, fmt.Errorf("reading content of %s: %w", source.Id, err)
	}
	if !found || len(data) == 0 {
		logger.Debug("No cached content", "sourceId", source.Id)
		return "", "", false, nil
	}

	text, contentType, err := ingest.ExtractText(source.ContentType, data)
	if err != nil {
		// unreadable content is treated like missing content, not as a request failure
		logger.Warn("Could not extract source text", "sourceId", source.Id, "error", err)
		return "", "", false, nil
	}
	if strings.TrimSpace(text) == "" {
		return "", "", false, nil
	}
	return text, contentType, true, nil
}

// LoadChunks chunks every source with usable content. Sources without any are left out.
func (l *Loader) LoadChunks(ctx context.Context, sources []commonModels.Source) ([]commonModels.SourceChunks, error) {
	var out []commonModels.SourceChunks
	for _, s := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, contentType, ok, err := l.LoadText(ctx, s)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		chunks := l.Chunker.Chunk(s.Id, s.Title, text, contentType)
		if len(chunks) == 0 {
			continue
		}
		out = append(out, commonModels.SourceChunks{Source: s, Chunks: chunks})
	}
	return out, nil
}

// SourceSizes is the metadata-only view used for batching and the inline threshold. No content is read.
func SourceSizes(sources []commonModels.Source) []budget.SourceSize {
	out := make([]budget.SourceSize, len(sources))
	for i, s := range sources {
		out[i] = budget.SourceSize{Id: s.Id, EstimatedWordCount: s.WordCount}
	}
	return out
}

// EstimateTokens sums the word-count estimate over sources.
func EstimateTokens(sources []commonModels.Source) int {
	total := 0
	for _, s := range sources {
		total += budget.EstimateWordCount(s.WordCount)
	}
	return total
}

// Register stores a source's content and catalog entry. Binary uploads are extracted
// once here and cached as plain text, so reads never parse a PDF twice.
// WordCount is always recomputed from the stored text.
func (l *Loader) Register(ctx context.Context, src commonModels.Source, raw []byte) (commonModels.Source, error) {
	logger := logger_i.NewLogger("corpus").FromContext(ctx)

	if !src.ContentType.Valid() {
		return commonModels.Source{}, fmt.Errorf("%w: %q", ingest.ErrUnsupportedContentType, src.ContentType)
	}
	text, contentType, err := ingest.ExtractText(src.ContentType, raw)
	if err != nil {
		logger.Warn("Rejecting unreadable source", "sourceId", src.Id, "error", err)
		return commonModels.Source{}, fmt.Errorf("%w: %v", ErrUnreadableContent, err)
	}
	if strings.TrimSpace(text) == "" {
		return commonModels.Source{}, ErrUnreadableContent
	}

	if src.ContentKey == "" {
		src.ContentKey = src.UserId + ":" + src.ProjectId + ":" + src.Id
	}
	src.ContentType = contentType
	src.WordCount = ingest.WordCount(text, contentType)
	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now

	meta := commonModels.ContentMeta{ContentType: contentType, Size: len(text), UpdatedAt: now}
	if err := l.Content.PutContent(ctx, src.ContentKey, []byte(text), meta); err != nil {
		return commonModels.Source{}, fmt.Errorf("storing content of %s: %w", src.Id, err)
	}
	if err := l.Catalog.UpsertSource(ctx, src); err != nil {
		return commonModels.Source{}, fmt.Errorf("registering source %s: %w", src.Id, err)
	}
	logger.Info("Source registered", "sourceId", src.Id, "projectId", src.ProjectId, "words", src.WordCount)
	return src, nil
}
