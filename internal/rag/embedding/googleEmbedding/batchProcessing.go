package googleEmbedding

import (
	"errors"
	"net/http"

	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxBatchSize is the most contents one EmbedContent call accepts.
const maxBatchSize = 100

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

// doRetry reports whether err is a rate limit worth waiting out.
func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Code == http.StatusServiceUnavailable) {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	return false
}

func splitBatches(chunks []string) [][]string {
	var out [][]string
	for i := 0; i < len(chunks); i += maxBatchSize {
		end := min(i+maxBatchSize, len(chunks))
		out = append(out, chunks[i:end])
	}
	return out
}
