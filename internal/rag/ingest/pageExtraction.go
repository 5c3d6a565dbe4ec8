package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

var ErrUnsupportedContentType = errors.New("unsupported content type")

const pageExtractTimeout = 10 * time.Second

// ContentTypeFromFilename maps an upload's extension to a content type, or ERR.
func ContentTypeFromFilename(name string) commonModels.ContentType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return commonModels.PDF
	case ".docx":
		return commonModels.DOCX
	case ".txt":
		return commonModels.TEXT
	case ".md", ".markdown":
		return commonModels.MARKDOWN
	case ".html", ".htm":
		return commonModels.HTML
	default:
		return commonModels.ERR
	}
}

// ExtractText turns stored content into chunkable text. It returns the text and
// the content type to chunk it as: binary formats come back as plain text.
func ExtractText(contentType commonModels.ContentType, data []byte) (string, commonModels.ContentType, error) {
	switch contentType {
	case commonModels.TEXT, commonModels.MARKDOWN, commonModels.HTML:
		return strings.ToValidUTF8(string(data), ""), contentType, nil
	case commonModels.PDF:
		text, err := extractPDF(data)
		return text, commonModels.TEXT, err
	case commonModels.DOCX:
		text, err := extractDocx(data)
		return text, commonModels.TEXT, err
	default:
		return "", commonModels.ERR, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
}

func extractPDF(data []byte) (string, error) {
	logger := logger_i.NewLogger("ingest")
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := r.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(page)
		if err != nil {
			// one broken page should not lose the rest of the document
			logger.Error("Error parsing page content", "page", i, "error", err)
			continue
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, paragraphJoiner), nil
}

// extractDocx goes through a temp file because cat dispatches on the file extension.
func extractDocx(data []byte) (string, error) {
	f, err := os.CreateTemp("", "source-*.docx")
	if err != nil {
		return "", fmt.Errorf("failed to stage docx: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err = f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to stage docx: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("failed to stage docx: %w", err)
	}

	text, err := cat.File(f.Name())
	if err != nil {
		return "", fmt.Errorf("failed to extract docx: %w", err)
	}
	return text, nil
}

// protectExtract bounds GetPlainText, which can spin on malformed content streams.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{"", fmt.Errorf("pdf page panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		return "", errors.New("page extraction timeout")
	}
}
