package zipline

import (
	"errors"
	"math"
	"sort"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BM25 RANKING
// ═══════════════════════════════════════════════════════════════════════════════
// BM25 estimates how relevant a document is to a query. For each query
// term:
//
//	score += IDF(term) * (tf * (k1 + 1)) / (tf + k1 * (1 - b + b * len/L̄))
//
// Where:
//
//	IDF = precomputed smoothed inverse document frequency (rare → high)
//	tf  = occurrences of the term in this document
//	len = distinct components in this document
//	L̄   = mean document size over the corpus
//	k1  = 1.2 (term frequency saturation)
//	b   = 0.75 (length normalization strength)
//
// A term the document lacks contributes 0 (the numerator is 0). A term
// the whole CORPUS lacks carries a default IDF instead of a precomputed
// one, but its tf is 0 in every document, so it still adds nothing to
// any score.
//
// The engine scores EVERY document with a dense scan over ids 0..N-1.
// Archive listings are small corpora; a posting-list merge would be an
// optimization, not a behavior change.
// ═══════════════════════════════════════════════════════════════════════════════

// ErrInvalidQuery reports a query that cannot be evaluated, such as a
// non-numeric max_length reaching the service layer.
var ErrInvalidQuery = errors.New("invalid query")

// BM25 tuning parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// smoothedIDF is the smoothed BM25 inverse document frequency. The +1 inside the
// log keeps the value non-negative for every df ≤ n.
func smoothedIDF(n, df float64) float64 {
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// defaultIDF is the weight assigned to query terms absent from the whole
// corpus, equivalent to smoothedIDF with df = 0.
//
// TODO: revisit whether out-of-vocabulary terms should contribute zero
// weight instead; the current value deliberately matches the shipped
// behavior, which ranks them HIGHER than any seen term.
func defaultIDF(n float64) float64 {
	return math.Log((n+0.5)/0.5 + 1)
}

// ScoreFunc computes the relevance of one document for a query. The
// search pipeline is parameterized over this so alternative scoring
// functions can be plugged in per request; BM25Score is the default.
type ScoreFunc func(terms []string, postings map[Term]*TermPosting, sizes map[DocumentID]uint64, doc DocumentID) float64

// BM25Score is the standard Okapi BM25 scoring function.
//
// The mean document size is recomputed from the sizes map on each call;
// the map is small (one entry per archive) and keeping the signature
// free of corpus-level state is what lets scorers swap cleanly.
func BM25Score(terms []string, postings map[Term]*TermPosting, sizes map[DocumentID]uint64, doc DocumentID) float64 {
	docCount := float64(len(sizes))

	var meanSize float64
	for _, size := range sizes {
		meanSize += float64(size)
	}
	meanSize /= docCount

	docSize := float64(sizes[doc])

	var score float64
	for _, term := range terms {
		idf := defaultIDF(docCount)
		var tf float64
		if posting, ok := postings[term]; ok {
			idf = posting.IDF
			tf = float64(posting.Counts[doc])
		}
		numerator := tf * (bm25K1 + 1)
		denominator := tf + bm25K1*(1-bm25B+(bm25B*docSize)/meanSize)
		score += idf * (numerator / denominator)
	}
	return score
}

// Match is one ranked search hit.
type Match struct {
	FileName string  `json:"file_name"`
	Score    float64 `json:"score"`
}

// SearchResult is the ranked, filtered outcome of one query. Total is
// the length of Matches after filtering and truncation.
type SearchResult struct {
	Matches []Match `json:"matches"`
	Total   int     `json:"total"`
}

// SearchOptions tune one search call.
type SearchOptions struct {
	// MaxLength caps the number of returned matches. Nil means no cap.
	MaxLength *int

	// MinScore excludes matches scoring at or below this value; the
	// comparison is strictly greater-than, so the zero default already
	// drops exact-zero scores. Nil means 0.
	MinScore *float64

	// Scorer overrides the scoring function. Nil means BM25Score.
	Scorer ScoreFunc
}

// Search evaluates the query against every document and returns the
// ranked result list.
//
// The call is pure: the index is never mutated, and identical inputs
// yield identical outputs. Tied scores sort in unspecified order.
func (idx *Index) Search(terms []string, opts SearchOptions) SearchResult {
	scorer := opts.Scorer
	if scorer == nil {
		scorer = BM25Score
	}
	minScore := 0.0
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	}

	// Degenerate corpora (no documents, or only empty listings) make
	// the BM25 length normalization divide by zero; every document is
	// equally irrelevant, so the whole query short-circuits.
	if idx.DocCount() == 0 || idx.MeanDocSize() == 0 {
		return SearchResult{Matches: []Match{}}
	}

	scored := make([]Match, 0, idx.DocCount())
	for doc := DocumentID(0); doc < DocumentID(idx.DocCount()); doc++ {
		name, ok := idx.DocName(doc)
		if !ok {
			continue
		}
		scored = append(scored, Match{
			FileName: name,
			Score:    scorer(terms, idx.Postings, idx.DocSizes, doc),
		})
	}

	// Descending by score under a total order: NaN sorts last.
	sort.Slice(scored, func(i, j int) bool {
		return scoreGreater(scored[i].Score, scored[j].Score)
	})

	matches := make([]Match, 0, len(scored))
	for _, m := range scored {
		if m.Score > minScore {
			matches = append(matches, m)
		}
	}
	if opts.MaxLength != nil {
		limit := *opts.MaxLength
		if limit < 0 {
			limit = 0
		}
		if len(matches) > limit {
			matches = matches[:limit]
		}
	}

	return SearchResult{Matches: matches, Total: len(matches)}
}

// scoreGreater orders floats descending with NaN treated as least.
func scoreGreater(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}
