package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
)

// applyTransition is the compare-and-set body shared by the Redis and in-memory job stores.
func applyTransition(job *analysisModel.AnalysisJob, t analysisModel.JobTransition) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if job.Status != t.From {
		return fmt.Errorf("%w: job %s is %s, expected %s", analysisModel.ErrTransitionRejected, job.Id, job.Status, t.From)
	}
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	t.Apply(job)
	return nil
}

// jobTTL keeps a job key alive until its expiry; an already expired job gets a short grace
// so the lazy delete on read still sees it.
func jobTTL(job analysisModel.AnalysisJob) time.Duration {
	ttl := time.Until(job.ExpiresAt)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func sortSources(sources []commonModels.Source) {
	sort.SliceStable(sources, func(i, j int) bool {
		if !sources[i].CreatedAt.Equal(sources[j].CreatedAt) {
			return sources[i].CreatedAt.Before(sources[j].CreatedAt)
		}
		return sources[i].Id < sources[j].Id
	})
}
