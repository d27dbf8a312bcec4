// Package retriever performs hybrid search over the keyword and vector
// indexes.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"tourchat/internal/indexer"

	"github.com/blevesearch/bleve/v2"
)

// ErrNoQueryOrVector is returned when a search has neither a keyword query
// nor a query vector.
var ErrNoQueryOrVector = errors.New("search needs a query, a vector, or both")

// Hit is one retrieved section with its fused relevance score.
type Hit struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	SourcePage string  `json:"sourcepage"`
	SourceFile string  `json:"sourcefile"`
	Score      float64 `json:"score"`
}

// Retriever searches the two indexes an Index maintains.
type Retriever struct {
	Index *indexer.Index
}

func New(idx *indexer.Index) *Retriever {
	return &Retriever{Index: idx}
}

// Search runs hybrid retrieval: cosine similarity over the stored vectors
// plus a keyword match query, merged with Reciprocal Rank Fusion. Either
// leg may be skipped by passing an empty query or a nil vector; at least
// one must be present.
func (r *Retriever) Search(ctx context.Context, query string, vector []float32, top int) ([]Hit, error) {
	if query == "" && len(vector) == 0 {
		return nil, ErrNoQueryOrVector
	}
	if top <= 0 {
		top = 3
	}
	candidates := top * 3

	// Vector ranks by cosine similarity.
	vectorRanks := make(map[string]int)
	if len(vector) > 0 {
		type scored struct {
			id    string
			score float64
		}
		var scores []scored
		r.Index.EachSection(func(s indexer.IndexedSection) {
			scores = append(scores, scored{s.ID, cosineSimilarity(vector, s.Embedding)})
		})
		sort.Slice(scores, func(i, j int) bool {
			if scores[i].score != scores[j].score {
				return scores[i].score > scores[j].score
			}
			return scores[i].id < scores[j].id
		})
		limit := candidates
		if limit > len(scores) {
			limit = len(scores)
		}
		for rank, s := range scores[:limit] {
			vectorRanks[s.id] = rank + 1
		}
	}

	// Keyword ranks from the match query.
	keywordRanks := make(map[string]int)
	if query != "" {
		searchReq := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
		searchReq.Size = candidates
		res, err := r.Index.Keyword.SearchInContext(ctx, searchReq)
		if err != nil {
			return nil, fmt.Errorf("keyword search error: %w", err)
		}
		for rank, hit := range res.Hits {
			keywordRanks[hit.ID] = rank + 1
		}
	}

	// Reciprocal Rank Fusion (k=60).
	const k = 60.0
	allIDs := make(map[string]bool)
	for id := range vectorRanks {
		allIDs[id] = true
	}
	for id := range keywordRanks {
		allIDs[id] = true
	}

	type fused struct {
		id    string
		score float64
	}
	var merged []fused
	for id := range allIDs {
		score := 0.0
		if vr, ok := vectorRanks[id]; ok {
			score += 1.0 / (k + float64(vr))
		}
		if kr, ok := keywordRanks[id]; ok {
			score += 1.0 / (k + float64(kr))
		}
		merged = append(merged, fused{id, score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].id < merged[j].id
	})

	var hits []Hit
	for _, f := range merged {
		if len(hits) >= top {
			break
		}
		s, ok := r.Index.Section(f.id)
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			ID:         s.ID,
			Content:    s.Content,
			Category:   s.Category,
			SourcePage: s.SourcePage,
			SourceFile: s.SourceFile,
			Score:      f.score,
		})
	}

	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
