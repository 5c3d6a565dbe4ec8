package ingest

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag/budget"
)

// Chunker splits one document into ordered, heading-annotated chunks.
// It is a pure value: no I/O, safe to share between goroutines.
type Chunker struct {
	MaxChunkChars int
	Estimator     budget.Estimator
}

func NewChunker() Chunker {
	return Chunker{MaxChunkChars: config.MaxChunkChars, Estimator: budget.WordEstimator{}}
}

// Chunk runs the default chunker. Binary content types must already be extracted to text.
func Chunk(sourceId string, sourceTitle string, rawText string, contentType commonModels.ContentType) []commonModels.Chunk {
	return NewChunker().Chunk(sourceId, sourceTitle, rawText, contentType)
}

type heading struct {
	level int
	text  string
}

type chunkBuilder struct {
	max      int
	sourceId string
	title    string
	out      []commonModels.Chunk
	text     strings.Builder
	size     int
	chain    []string
}

// fits reports whether piece, preceded by sep, stays under the ceiling.
func (b *chunkBuilder) fits(piece string, sep string) bool {
	if b.size == 0 {
		return true
	}
	return b.size+utf8.RuneCountInString(sep)+utf8.RuneCountInString(piece) <= b.max
}

func (b *chunkBuilder) add(piece string, sep string, chain []string) {
	if b.size == 0 {
		b.chain = chain
	} else {
		b.text.WriteString(sep)
		b.size += utf8.RuneCountInString(sep)
	}
	b.text.WriteString(piece)
	b.size += utf8.RuneCountInString(piece)
}

func (b *chunkBuilder) flush() {
	if b.size == 0 {
		return
	}
	b.out = append(b.out, commonModels.Chunk{
		SourceId:         b.sourceId,
		SourceTitle:      b.title,
		HeadingChain:     b.chain,
		Text:             b.text.String(),
		DocumentPosition: len(b.out),
	})
	b.text.Reset()
	b.size = 0
}

func (c Chunker) Chunk(sourceId string, sourceTitle string, rawText string, contentType commonModels.ContentType) []commonModels.Chunk {
	if strings.TrimSpace(rawText) == "" {
		return nil
	}
	limit := c.MaxChunkChars
	if limit <= 0 {
		limit = config.MaxChunkChars
	}
	est := c.Estimator
	if est == nil {
		est = budget.WordEstimator{}
	}

	blocks := normalize(rawText, contentType)
	b := &chunkBuilder{max: limit, sourceId: sourceId, title: sourceTitle}

	var stack []heading
	hasHeadings := false
	for _, blk := range blocks {
		if blk.headingLevel > 0 {
			// a new section never shares a chunk with the previous one
			b.flush()
			hasHeadings = true
			for len(stack) > 0 && stack[len(stack)-1].level >= blk.headingLevel {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, heading{level: blk.headingLevel, text: blk.text})
			continue
		}

		chain := chainOf(stack)
		if utf8.RuneCountInString(blk.text) <= limit {
			if !b.fits(blk.text, paragraphJoiner) {
				b.flush()
			}
			b.add(blk.text, paragraphJoiner, chain)
			continue
		}

		// sentences keep the line breaks that separated them
		b.flush()
		for _, s := range sentenceSpans(blk.text) {
			if !b.fits(s.text, s.sep) {
				b.flush()
			}
			b.add(s.text, s.sep, chain)
		}
		b.flush()
	}
	b.flush()

	for i := range b.out {
		if !hasHeadings {
			b.out[i].HeadingChain = []string{sectionLabel(i, sourceTitle)}
		}
		b.out[i].EstimatedTokens = est.EstimateTokens(b.out[i].Text)
	}
	return b.out
}

func chainOf(stack []heading) []string {
	if len(stack) == 0 {
		return []string{}
	}
	chain := make([]string, len(stack))
	for i, h := range stack {
		chain[i] = h.text
	}
	return chain
}

func sectionLabel(position int, title string) string {
	if title == "" {
		title = "document"
	}
	return "Section " + strconv.Itoa(position+1) + " of " + title
}
