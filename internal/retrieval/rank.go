package retrieval

import (
	"sort"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

// DefaultTopK is the number of chunks handed to generation.
const DefaultTopK = 5

// Candidate is a chunk eligible for ranking together with its vector.
type Candidate struct {
	Chunk  *domain.Chunk
	Vector []float32
}

// ScoredChunk is a ranked search hit.
type ScoredChunk struct {
	Chunk *domain.Chunk
	Score float64
}

// CandidatesFromChunks pairs chunks with their stored embeddings, skipping chunks without one.
func CandidatesFromChunks(chunks []*domain.Chunk) []Candidate {
	out := make([]Candidate, 0, len(chunks))
	for _, c := range chunks {
		if c == nil || !c.HasEmbedding() {
			continue
		}
		out = append(out, Candidate{Chunk: c, Vector: c.Embedding})
	}
	return out
}

// Search ranks candidates by cosine similarity to query and returns at most k hits.
// Equal scores are ordered by ascending sequence index, then by input order.
// An empty query vector yields no hits.
func Search(query []float32, candidates []Candidate, k int) []ScoredChunk {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(query) == 0 || len(candidates) == 0 {
		return []ScoredChunk{}
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Chunk == nil || len(c.Vector) == 0 {
			continue
		}
		scored = append(scored, ScoredChunk{
			Chunk: c.Chunk,
			Score: CosineSimilarity(query, c.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.SequenceIndex < scored[j].Chunk.SequenceIndex
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// Chunks strips scores from ranked hits, keeping rank order.
func Chunks(hits []ScoredChunk) []*domain.Chunk {
	out := make([]*domain.Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk
	}
	return out
}
