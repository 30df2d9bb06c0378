package zipline

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INDEX CONSTRUCTION
// ═══════════════════════════════════════════════════════════════════════════════
// Building is a single streaming pass over the intermediate file followed
// by an IDF pass over the vocabulary:
//
//	for each record, in file order:
//	    assign the next dense document id to record.name
//	    for each entry name, for each path component:
//	        bump postings[component].counts[id]
//	        remember the component in this document's unique set
//	    doc_sizes[id] = |unique set|
//	for each term:
//	    idf = ln((N - df + 0.5) / (df + 0.5) + 1)
//
// The pass streams line by line, so peak memory is bounded by the index
// itself, not by the intermediate file.
//
// FAILURE MODEL:
// Any malformed line, I/O error, or duplicate display name aborts the
// build; the partially built index is discarded and the caller keeps
// whatever index was installed before. Nothing is ever patched in place.
// ═══════════════════════════════════════════════════════════════════════════════

// BuildIndex consumes the intermediate file at path and constructs a
// complete index over it.
func BuildIndex(path string) (*Index, error) {
	idx := NewIndex()

	// Record count is unknown up front, so the bar is a spinner.
	bar := progressbar.Default(-1, "indexing")
	defer bar.Finish()

	err := ReadIntermediate(path, func(rec Record) error {
		bar.Add(1)
		return indexRecord(idx, rec)
	})
	if err != nil {
		return nil, err
	}

	idx.finalizeIDF()

	log.Info().
		Int("documents", idx.DocCount()).
		Int("terms", len(idx.Postings)).
		Msg("index built")

	return idx, nil
}

// indexRecord ingests a single archive listing into the index.
func indexRecord(idx *Index, rec Record) error {
	id, err := idx.insertDocument(rec.Name)
	if err != nil {
		return fmt.Errorf("record %q: %w", rec.Name, err)
	}

	unique := make(map[Term]struct{})
	for _, entry := range rec.Files {
		for _, component := range SplitPath(entry) {
			idx.addOccurrence(component, id)
			unique[component] = struct{}{}
		}
	}
	idx.DocSizes[id] = uint64(len(unique))

	return nil
}
