package budget

import "github.com/akolanti/GoAnalyze/internal/domain/commonModels"

// Distribute takes one chunk per source per round until quota is met or every
// source is exhausted. A source short of its fair share leaves the rest to the others.
func Distribute(groups []commonModels.SourceChunks, quota int) []commonModels.Chunk {
	if quota <= 0 || len(groups) == 0 {
		return nil
	}

	taken := make([]int, len(groups))
	out := make([]commonModels.Chunk, 0, quota)
	for len(out) < quota {
		progressed := false
		for i, g := range groups {
			if len(out) == quota {
				break
			}
			if taken[i] >= len(g.Chunks) {
				continue
			}
			out = append(out, g.Chunks[taken[i]])
			taken[i]++
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}
