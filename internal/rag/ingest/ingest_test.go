package ingest

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(chunks []commonModels.Chunk) []string {
	var out []string
	for _, c := range chunks {
		out = append(out, strings.Fields(c.Text)...)
	}
	return out
}

func assertContiguous(t *testing.T, chunks []commonModels.Chunk) {
	t.Helper()
	for i, c := range chunks {
		assert.Equal(t, i, c.DocumentPosition)
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
		assert.Greater(t, c.EstimatedTokens, 0)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	assert.Empty(t, Chunk("s1", "Doc", "", commonModels.TEXT))
	assert.Empty(t, Chunk("s1", "Doc", " \n\t\n ", commonModels.MARKDOWN))
	assert.Empty(t, Chunk("s1", "Doc", "<html><body>  </body></html>", commonModels.HTML))
}

func TestChunk_PlainTextGetsSectionLabels(t *testing.T) {
	c := Chunker{MaxChunkChars: 30}
	raw := "First paragraph here.\n\nSecond paragraph here.\n\nThird one."
	chunks := c.Chunk("s1", "Field Notes", raw, commonModels.TEXT)

	require.Len(t, chunks, 3)
	assertContiguous(t, chunks)
	assert.Equal(t, []string{"Section 1 of Field Notes"}, chunks[0].HeadingChain)
	assert.Equal(t, []string{"Section 3 of Field Notes"}, chunks[2].HeadingChain)
	assert.Equal(t, "s1", chunks[1].SourceId)
	assert.Equal(t, "Field Notes", chunks[1].SourceTitle)
}

func TestChunk_ParagraphsAccumulateUntilCeiling(t *testing.T) {
	c := Chunker{MaxChunkChars: 50}
	raw := "aaaa bbbb.\n\ncccc dddd.\n\neeee ffff.\n\n" + strings.Repeat("g", 45)
	chunks := c.Chunk("s1", "", raw, commonModels.TEXT)

	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaa bbbb.\n\ncccc dddd.\n\neeee ffff.", chunks[0].Text)
	assert.Equal(t, []string{"Section 1 of document"}, chunks[0].HeadingChain)
}

func TestChunk_OversizedParagraphSplitsAtSentences(t *testing.T) {
	c := Chunker{MaxChunkChars: 30}
	raw := "One short sentence. Another short one! Is this the third? " + strings.Repeat("x", 40) + ". Tail."
	chunks := c.Chunk("s1", "Doc", raw, commonModels.TEXT)

	require.NotEmpty(t, chunks)
	assertContiguous(t, chunks)
	for _, ch := range chunks {
		if utf8.RuneCountInString(ch.Text) > 30 {
			// only a lone sentence may exceed the ceiling
			assert.Len(t, splitSentences(ch.Text), 1, ch.Text)
		}
	}
	assert.Equal(t, strings.Fields(raw), words(chunks))
}

func TestChunk_SplitParagraphKeepsLineBreaks(t *testing.T) {
	raw := "First line ends here.\nSecond line follows. Third on same line.\nFourth closes it."
	chunks := Chunker{MaxChunkChars: 45}.Chunk("s1", "Doc", raw, commonModels.TEXT)

	require.Len(t, chunks, 2)
	assert.Equal(t, "First line ends here.\nSecond line follows.", chunks[0].Text)
	assert.Equal(t, "Third on same line.\nFourth closes it.", chunks[1].Text)
	assertContiguous(t, chunks)
}

func TestChunk_MarkdownHeadingChain(t *testing.T) {
	raw := `# Book

Intro text.

## Chapter One

Body of one.

### Scene

Deep text.

## Chapter Two

Body of two.`
	chunks := Chunk("s1", "Book", raw, commonModels.MARKDOWN)

	require.Len(t, chunks, 4)
	assert.Equal(t, []string{"Book"}, chunks[0].HeadingChain)
	assert.Equal(t, []string{"Book", "Chapter One"}, chunks[1].HeadingChain)
	assert.Equal(t, []string{"Book", "Chapter One", "Scene"}, chunks[2].HeadingChain)
	assert.Equal(t, []string{"Book", "Chapter Two"}, chunks[3].HeadingChain)
	assert.Equal(t, "Book > Chapter One > Scene", chunks[2].Location())
	for _, ch := range chunks {
		assert.NotContains(t, ch.Text, "#")
	}
}

func TestChunk_HTMLNormalization(t *testing.T) {
	raw := `<html><head><title>x</title><style>p{color:red}</style></head><body>
<h1>Report</h1>
<p>Hello <b>bold</b> world.</p>
<script>alert("no")</script>
<div>Second<br>line</div>
<h2>Details</h2>
<ul><li>item one</li><li>item two</li></ul>
</body></html>`
	chunks := Chunker{MaxChunkChars: 17}.Chunk("s1", "Report", raw, commonModels.HTML)

	var texts []string
	for _, c := range chunks {
		texts = append(texts, c.Text)
		assert.NotContains(t, c.Text, "<")
		assert.NotContains(t, c.Text, "alert")
		assert.NotContains(t, c.Text, "color")
	}
	assert.Equal(t, []string{"Hello bold world.", "Second\n\nline", "item one", "item two"}, texts)
	assert.Equal(t, []string{"Report"}, chunks[0].HeadingChain)
	assert.Equal(t, []string{"Report", "Details"}, chunks[3].HeadingChain)
}

func TestChunk_PropertyReconstructsAndRespectsCeiling(t *testing.T) {
	paragraph := "The quick brown fox jumps over the lazy dog. It was not amused! Why would it be? "
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString(strings.Repeat(paragraph, 1+i%7))
		sb.WriteString("\n\n")
	}
	raw := sb.String()

	for _, limit := range []int{60, 200, 1000, 3000} {
		chunks := Chunker{MaxChunkChars: limit}.Chunk("s", "t", raw, commonModels.TEXT)
		assertContiguous(t, chunks)
		assert.Equal(t, strings.Fields(raw), words(chunks), "limit %d", limit)
		for _, c := range chunks {
			if utf8.RuneCountInString(c.Text) > limit {
				assert.Len(t, splitSentences(c.Text), 1)
			}
		}
	}
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"A b.", "C d!", "E?", "tail"}, splitSentences("A b. C d! E?  tail"))
	assert.Equal(t, []string{"no terminator"}, splitSentences("no terminator"))
	assert.Equal(t, []string{"v1.2 stays whole."}, splitSentences("v1.2 stays whole."))
}

func TestContentTypeFromFilename(t *testing.T) {
	tests := []struct {
		path     string
		expected commonModels.ContentType
	}{
		{"test.pdf", commonModels.PDF},
		{"DOC.DOCX", commonModels.DOCX},
		{"notes.txt", commonModels.TEXT},
		{"readme.md", commonModels.MARKDOWN},
		{"page.HTM", commonModels.HTML},
		{"image.png", commonModels.ERR},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ContentTypeFromFilename(tt.path), tt.path)
	}
}

func TestExtractText(t *testing.T) {
	text, ct, err := ExtractText(commonModels.MARKDOWN, []byte("# hi"))
	require.NoError(t, err)
	assert.Equal(t, "# hi", text)
	assert.Equal(t, commonModels.MARKDOWN, ct)

	_, _, err = ExtractText("epub", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedContentType))

	_, _, err = ExtractText(commonModels.PDF, []byte("not a pdf"))
	assert.Error(t, err)
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 3, WordCount("<p>one <b>two</b></p><script>var x = 1;</script><p>three</p>", commonModels.HTML))
	assert.Equal(t, 4, WordCount("# Title\n\nbody text here", commonModels.MARKDOWN))
	assert.Equal(t, 0, WordCount("  \n\n ", commonModels.TEXT))
}
