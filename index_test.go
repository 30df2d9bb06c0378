package zipline

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

// buildFrom writes records to a throwaway intermediate file and builds
// an index over them.
func buildFrom(t *testing.T, records []Record) *Index {
	t.Helper()
	idx, err := tryBuildFrom(t, records)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return idx
}

func tryBuildFrom(t *testing.T, records []Record) (*Index, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	if err := WriteIntermediate(path, records); err != nil {
		t.Fatalf("WriteIntermediate: %v", err)
	}
	return BuildIndex(path)
}

// ═══════════════════════════════════════════════════════════════════════════════
// BUILDER TESTS
// ═══════════════════════════════════════════════════════════════════════════════

func TestBuildIndex_Empty(t *testing.T) {
	idx := buildFrom(t, nil)

	if idx.DocCount() != 0 {
		t.Errorf("DocCount() = %d, want 0", idx.DocCount())
	}
	if len(idx.Postings) != 0 {
		t.Errorf("empty corpus produced %d postings", len(idx.Postings))
	}
}

func TestBuildIndex_PathSplitting(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"src/lib/mod"}},
	})

	for _, term := range []string{"src", "lib", "mod"} {
		if _, ok := idx.Postings[term]; !ok {
			t.Errorf("term %q was not indexed", term)
		}
	}
	if len(idx.Postings) != 3 {
		t.Errorf("indexed %d terms, want 3", len(idx.Postings))
	}
	if idx.DocSizes[0] != 3 {
		t.Errorf("DocSizes[0] = %d, want 3", idx.DocSizes[0])
	}
}

func TestBuildIndex_EmptyComponentsPreserved(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"/a//b/"}},
	})

	posting, ok := idx.Postings[""]
	if !ok {
		t.Fatal("empty path component was not indexed")
	}
	// "/a//b/" → ["", "a", "", "b", ""]
	if posting.Counts[0] != 3 {
		t.Errorf(`Counts[""] = %d, want 3`, posting.Counts[0])
	}
	if idx.DocSizes[0] != 3 {
		t.Errorf("DocSizes[0] = %d, want 3 (distinct: \"\", a, b)", idx.DocSizes[0])
	}
}

func TestBuildIndex_CountsOccurrences(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"src/main.go", "src/util.go"}},
		{Name: "b.zip", Files: []string{"src/other.go"}},
	})

	src := idx.Postings["src"]
	if src.Counts[0] != 2 {
		t.Errorf("src count in doc 0 = %d, want 2", src.Counts[0])
	}
	if src.Counts[1] != 1 {
		t.Errorf("src count in doc 1 = %d, want 1", src.Counts[1])
	}
}

func TestBuildIndex_DenseIDs(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"x"}},
		{Name: "b.zip", Files: []string{"y"}},
		{Name: "c.zip", Files: []string{"z"}},
	})

	for id := DocumentID(0); id < 3; id++ {
		name, ok := idx.DocName(id)
		if !ok {
			t.Fatalf("no name for document %d", id)
		}
		back, ok := idx.DocID(name)
		if !ok || back != id {
			t.Errorf("bijection broken for id %d (name %q → %d)", id, name, back)
		}
		if _, ok := idx.DocSizes[id]; !ok {
			t.Errorf("no size for document %d", id)
		}
	}
	if _, ok := idx.DocName(3); ok {
		t.Error("id 3 should not exist in a 3-document index")
	}
}

func TestBuildIndex_DuplicateName(t *testing.T) {
	_, err := tryBuildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"x"}},
		{Name: "a.zip", Files: []string{"y"}},
	})
	if !errors.Is(err, ErrDuplicateDocument) {
		t.Fatalf("duplicate name error = %v, want ErrDuplicateDocument", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// INVARIANT TESTS
// ═══════════════════════════════════════════════════════════════════════════════

func TestBuildIndex_DocSizesMatchPostings(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"src/main.go", "src/util.go", "README"}},
		{Name: "b.zip", Files: []string{"docs/intro.md", "docs/"}},
		{Name: "c.zip", Files: []string{""}},
	})

	// doc_sizes[d] must equal the number of distinct terms posted to d.
	distinct := make(map[DocumentID]uint64)
	for _, posting := range idx.Postings {
		for doc := range posting.Counts {
			distinct[doc]++
		}
	}
	for id := DocumentID(0); id < DocumentID(idx.DocCount()); id++ {
		if idx.DocSizes[id] != distinct[id] {
			t.Errorf("DocSizes[%d] = %d, want %d", id, idx.DocSizes[id], distinct[id])
		}
	}
}

func TestBuildIndex_IDFFormula(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"common/rare"}},
		{Name: "b.zip", Files: []string{"common/other"}},
		{Name: "c.zip", Files: []string{"common"}},
	})

	n := float64(idx.DocCount())
	for term, posting := range idx.Postings {
		df := float64(posting.Docs.GetCardinality())
		want := math.Log((n-df+0.5)/(df+0.5) + 1)
		if posting.IDF != want {
			t.Errorf("IDF(%q) = %v, want %v", term, posting.IDF, want)
		}
		if posting.IDF < 0 {
			t.Errorf("IDF(%q) = %v, must be non-negative", term, posting.IDF)
		}
	}
}

func TestBuildIndex_BitmapMirrorsCounts(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"x/y", "x/z"}},
		{Name: "b.zip", Files: []string{"y/z"}},
	})

	for term, posting := range idx.Postings {
		if posting.Docs.GetCardinality() != uint64(len(posting.Counts)) {
			t.Errorf("term %q: bitmap cardinality %d != count entries %d",
				term, posting.Docs.GetCardinality(), len(posting.Counts))
		}
		for doc := range posting.Counts {
			if !posting.Docs.Contains(doc) {
				t.Errorf("term %q: document %d counted but missing from bitmap", term, doc)
			}
		}
	}
}

func TestIndexStats(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"x/y"}},
		{Name: "b.zip", Files: []string{"y/z"}},
	})

	stats := idx.Stats()
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	if stats.Terms != 3 {
		t.Errorf("Terms = %d, want 3", stats.Terms)
	}
	// x→{0}, y→{0,1}, z→{1}
	if stats.TermDocPairs != 4 {
		t.Errorf("TermDocPairs = %d, want 4", stats.TermDocPairs)
	}
}

func TestMeanDocSize(t *testing.T) {
	idx := buildFrom(t, []Record{
		{Name: "a.zip", Files: []string{"a/b/c"}}, // 3 distinct
		{Name: "b.zip", Files: []string{"a"}},     // 1 distinct
	})
	if got := idx.MeanDocSize(); got != 2 {
		t.Errorf("MeanDocSize() = %v, want 2", got)
	}

	if got := NewIndex().MeanDocSize(); got != 0 {
		t.Errorf("empty MeanDocSize() = %v, want 0", got)
	}
}
