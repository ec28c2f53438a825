package rag

import (
	"math"
	"sort"
)

// index is the in-memory vector index. Built once, read-only afterwards,
// so searches need no locking.
type index struct {
	chunks  []Chunk
	vectors [][]float64
	docs    int
}

// SearchResult is a chunk matched against a query vector.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// search returns the topK chunks ranked by cosine similarity.
func (ix *index) search(query []float64, topK int) []SearchResult {
	results := make([]SearchResult, 0, len(ix.chunks))
	for i, vec := range ix.vectors {
		results = append(results, SearchResult{
			Chunk: ix.chunks[i],
			Score: cosine(query, vec),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// cosine computes cosine similarity; mismatched or zero vectors score 0.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
