package ingest

import (
	"regexp"
	"strings"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const paragraphJoiner = "\n\n"

// block is one normalized unit: a paragraph, or a heading when headingLevel > 0.
type block struct {
	headingLevel int
	text         string
}

var (
	blankLine     = regexp.MustCompile(`\n[ \t\r]*\n`)
	atxHeading    = regexp.MustCompile(`^(#{1,6})[ \t]+(.*?)[ \t]*#*[ \t]*$`)
	sentenceBreak = regexp.MustCompile(`[.!?]+\s+`)
)

func normalize(raw string, contentType commonModels.ContentType) []block {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	switch contentType {
	case commonModels.HTML:
		return htmlBlocks(raw)
	case commonModels.MARKDOWN:
		return markdownBlocks(raw)
	default:
		return textBlocks(raw)
	}
}

func textBlocks(raw string) []block {
	var out []block
	for _, p := range blankLine.Split(raw, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, block{text: p})
		}
	}
	return out
}

func markdownBlocks(raw string) []block {
	var out []block
	var para []string
	flush := func() {
		if p := strings.TrimSpace(strings.Join(para, "\n")); p != "" {
			out = append(out, block{text: p})
		}
		para = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := atxHeading.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			if text := strings.TrimSpace(m[2]); text != "" {
				out = append(out, block{headingLevel: len(m[1]), text: text})
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	flush()
	return out
}

// blockElements end the running paragraph; everything else is inline and stripped.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Br: true, atom.Blockquote: true,
	atom.Pre: true, atom.Tr: true, atom.Section: true, atom.Article: true, atom.Ul: true,
	atom.Ol: true, atom.Table: true, atom.Hr: true, atom.Header: true, atom.Footer: true,
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

func htmlBlocks(raw string) []block {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// html.Parse only fails on reader errors; treat as plain text
		return textBlocks(raw)
	}

	var out []block
	var buf strings.Builder
	flush := func() {
		if p := collapseSpace(buf.String()); p != "" {
			out = append(out, block{text: p})
		}
		buf.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template:
				return
			}
			if level, ok := headingLevels[n.DataAtom]; ok {
				flush()
				if text := collapseSpace(nodeText(n)); text != "" {
					out = append(out, block{headingLevel: level, text: text})
				}
				return
			}
			if blockElements[n.DataAtom] {
				flush()
				defer flush()
			}
			if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
				defer buf.WriteByte(' ')
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	flush()
	return out
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sentence is one piece of an oversized paragraph and the separator that preceded it:
// "\n" when the original break contained a line break, " " otherwise.
type sentence struct {
	text string
	sep  string
}

// sentenceSpans cuts at runs of . ! or ? followed by whitespace. Text after the
// last terminator is kept as a final sentence.
func sentenceSpans(p string) []sentence {
	var out []sentence
	sep := ""
	start := 0
	emit := func(raw string, next string) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		if len(out) > 0 {
			if lead := raw[:len(raw)-len(strings.TrimLeft(raw, " \t\r\n"))]; strings.Contains(sep+lead, "\n") {
				sep = "\n"
			} else {
				sep = " "
			}
		}
		out = append(out, sentence{text: trimmed, sep: sep})
		sep = next
	}
	for _, loc := range sentenceBreak.FindAllStringIndex(p, -1) {
		// the break's trailing whitespace separates this sentence from the next
		body := p[start:loc[1]]
		tail := body[len(strings.TrimRight(body, " \t\r\n")):]
		emit(body, tail)
		start = loc[1]
	}
	emit(p[start:], "")
	return out
}

func splitSentences(p string) []string {
	spans := sentenceSpans(p)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.text
	}
	return out
}

// WordCount counts the words a reader would see, so HTML markup is not counted.
func WordCount(text string, contentType commonModels.ContentType) int {
	n := 0
	for _, b := range normalize(text, contentType) {
		n += len(strings.Fields(b.text))
	}
	return n
}
