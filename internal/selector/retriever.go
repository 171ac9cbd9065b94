package selector

import (
	"context"
	"fmt"
	"strconv"

	"regai/internal/index"
	"regai/internal/logging"
	"regai/internal/store"
)

// DefaultFetchK is how many similar submissions are fetched before
// diversification narrows them down.
const DefaultFetchK = 50

// Retriever assembles selection candidates: it queries the similarity index
// for approved-submission documents near the query text and joins each with
// its approved grade from the store.
type Retriever struct {
	index  *index.Index
	store  *store.Store
	fetchK int
	logger logging.Logger
}

// NewRetriever creates a retriever. fetchK <= 0 uses DefaultFetchK.
func NewRetriever(idx *index.Index, st *store.Store, fetchK int, logger logging.Logger) *Retriever {
	if fetchK <= 0 {
		fetchK = DefaultFetchK
	}
	return &Retriever{index: idx, store: st, fetchK: fetchK, logger: logging.OrNop(logger)}
}

// Candidates returns the fetchK most similar approved submissions with their
// grades, ready for Select. Documents missing grade linkage are skipped with
// a warning rather than failing the whole retrieval.
func (r *Retriever) Candidates(ctx context.Context, submissionText string) ([]Candidate, error) {
	results, err := r.index.Query(ctx, submissionText, index.DocSubmission, r.fetchK)
	if err != nil {
		return nil, fmt.Errorf("query similar submissions: %w", err)
	}

	cands := make([]Candidate, 0, len(results))
	for _, res := range results {
		gradeID := res.Document.Metadata["grade_id"]
		if gradeID == "" {
			r.logger.Warn("submission document %s has no grade linkage, skipping", res.Document.ID)
			continue
		}
		score, err := strconv.ParseFloat(res.Document.Metadata["score"], 64)
		if err != nil {
			r.logger.Warn("submission document %s has unparseable score %q, skipping", res.Document.ID, res.Document.Metadata["score"])
			continue
		}
		grade, err := r.store.GetGrade(ctx, gradeID)
		if err != nil {
			r.logger.Warn("grade %s referenced by index not found: %v", gradeID, err)
			continue
		}
		cands = append(cands, Candidate{
			GradeID:        grade.ID,
			SubmissionID:   grade.SubmissionID,
			SubmissionText: res.Document.Content,
			Content:        grade.Content,
			Score:          score,
			Similarity:     float64(res.Similarity),
		})
	}
	return cands, nil
}
