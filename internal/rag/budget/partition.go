package budget

// SourceSize is the metadata-only view of a source used for batching.
type SourceSize struct {
	Id                 string
	EstimatedWordCount int
}

// Partition packs sources into batches in input order. A batch is closed when the
// next source would push it over batchTokenBudget; a source larger than the budget
// sits alone in its own batch. Single pass, not optimal packing.
func Partition(sources []SourceSize, batchTokenBudget int) [][]string {
	var batches [][]string
	var current []string
	currentTokens := 0

	for _, s := range sources {
		tokens := EstimateWordCount(s.EstimatedWordCount)
		if len(current) > 0 && currentTokens+tokens > batchTokenBudget {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, s.Id)
		currentTokens += tokens
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
