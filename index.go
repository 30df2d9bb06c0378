package zipline

import (
	"errors"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// ═══════════════════════════════════════════════════════════════════════════════
// THE INVERTED INDEX
// ═══════════════════════════════════════════════════════════════════════════════
// An inverted index maps each term to the documents it appears in.
//
// Example: given these archive listings:
//
//	Doc 0 (a.zip): src/main.go  src/util.go
//	Doc 1 (b.zip): docs/util.go
//
// The index looks like:
//
//	"src"     → {0: 2}
//	"main.go" → {0: 1}
//	"util.go" → {0: 1, 1: 1}
//	"docs"    → {1: 1}
//
// Each posting stores HOW MANY entry-name components in the document
// equal the term (the BM25 term frequency), plus the set of documents as
// a roaring bitmap, plus the precomputed inverse document frequency.
//
// HYBRID STORAGE:
//   - Counts map: exact per-document occurrence counts (needed by BM25)
//   - Roaring bitmap: compressed document-id set; document frequency is
//     its cardinality, and corpus statistics sum cardinalities without
//     walking the maps
// ═══════════════════════════════════════════════════════════════════════════════

// ErrDuplicateDocument reports two records sharing a display name within
// one build.
var ErrDuplicateDocument = errors.New("duplicate document name")

// DocumentID identifies a document within one build of the index.
//
// Ids are assigned sequentially from 0 in ingestion order and are dense:
// after a build of N documents the ids are exactly {0 … N-1}. They are
// NOT stable across rebuilds.
type DocumentID = uint64

// Term is one path component of an archive entry name.
type Term = string

// TermPosting holds everything the engine knows about a single term.
type TermPosting struct {
	// Counts maps document id → number of entry-name components in
	// that document equal to this term.
	Counts map[DocumentID]uint64

	// Docs is the same document set as the keys of Counts, as a
	// roaring bitmap. Its cardinality is the document frequency.
	Docs *roaring64.Bitmap

	// IDF is the smoothed inverse document frequency, precomputed by
	// the builder from the document frequency and the corpus size:
	//
	//	idf = ln((N - df + 0.5) / (df + 0.5) + 1)
	//
	// The +1 smoothing keeps it non-negative even for terms that
	// appear in every document.
	IDF float64
}

func newTermPosting() *TermPosting {
	return &TermPosting{
		Counts: make(map[DocumentID]uint64),
		Docs:   roaring64.New(),
	}
}

// Index is the complete in-memory search index over one corpus.
//
// It is built once (by BuildIndex or DecodeSnapshot) and never mutated
// afterwards; all read operations are safe to call concurrently on an
// installed Index.
type Index struct {
	// Postings maps term → posting. A term that appears in no
	// document has no entry.
	Postings map[Term]*TermPosting

	// DocSizes maps document id → number of DISTINCT path components
	// observed in that document. This is the BM25 document length.
	DocSizes map[DocumentID]uint64

	// Display-name bijection. Names are unique within one build, so
	// both directions are total over the ingested documents.
	nameToID map[string]DocumentID
	idToName map[DocumentID]string

	nextID DocumentID
}

// NewIndex returns an empty index. Every query against it yields zero
// results.
func NewIndex() *Index {
	return &Index{
		Postings: make(map[Term]*TermPosting),
		DocSizes: make(map[DocumentID]uint64),
		nameToID: make(map[string]DocumentID),
		idToName: make(map[DocumentID]string),
	}
}

// DocCount returns N, the number of documents in the index.
func (idx *Index) DocCount() int {
	return len(idx.idToName)
}

// DocName resolves a document id to its display name.
func (idx *Index) DocName(id DocumentID) (string, bool) {
	name, ok := idx.idToName[id]
	return name, ok
}

// DocID resolves a display name to its document id.
func (idx *Index) DocID(name string) (DocumentID, bool) {
	id, ok := idx.nameToID[name]
	return id, ok
}

// DocNames returns every display name keyed by id.
//
// The returned map is a copy; callers may not reach into the bijection.
func (idx *Index) DocNames() map[DocumentID]string {
	out := make(map[DocumentID]string, len(idx.idToName))
	for id, name := range idx.idToName {
		out[id] = name
	}
	return out
}

// insertDocument registers a display name and returns its fresh id.
// Display names must be unique within one build: a repeat would leave
// the previously recorded document size dangling, so it is rejected.
func (idx *Index) insertDocument(name string) (DocumentID, error) {
	if _, exists := idx.nameToID[name]; exists {
		return 0, ErrDuplicateDocument
	}
	id := idx.nextID
	idx.nextID++
	idx.nameToID[name] = id
	idx.idToName[id] = name
	return id, nil
}

// addOccurrence records one occurrence of term in doc.
func (idx *Index) addOccurrence(term Term, doc DocumentID) {
	posting, ok := idx.Postings[term]
	if !ok {
		posting = newTermPosting()
		idx.Postings[term] = posting
	}
	posting.Counts[doc]++
	posting.Docs.Add(doc)
}

// finalizeIDF computes the smoothed IDF of every posting from the final
// corpus size. Must run exactly once, after the last document.
func (idx *Index) finalizeIDF() {
	n := float64(idx.DocCount())
	for _, posting := range idx.Postings {
		df := float64(posting.Docs.GetCardinality())
		posting.IDF = smoothedIDF(n, df)
	}
}

// MeanDocSize returns the average document size, the L̄ of the BM25
// length normalization. Zero for an empty index.
func (idx *Index) MeanDocSize() float64 {
	if len(idx.DocSizes) == 0 {
		return 0
	}
	var total uint64
	for _, size := range idx.DocSizes {
		total += size
	}
	return float64(total) / float64(len(idx.DocSizes))
}

// IndexStats summarizes an index for the /stats endpoint.
type IndexStats struct {
	Documents    int    `json:"documents"`
	Terms        int    `json:"terms"`
	TermDocPairs uint64 `json:"term_doc_pairs"`
}

// Stats counts documents, distinct terms, and term-document pairs.
func (idx *Index) Stats() IndexStats {
	stats := IndexStats{
		Documents: idx.DocCount(),
		Terms:     len(idx.Postings),
	}
	for _, posting := range idx.Postings {
		stats.TermDocPairs += posting.Docs.GetCardinality()
	}
	return stats
}
