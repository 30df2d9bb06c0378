// Package zipline implements a full-text search engine over archive
// listings: every archive is a document, every `/`-separated component
// of its entry names is a term.
//
// ═══════════════════════════════════════════════════════════════════════════════
// TOKENIZATION FOR ARCHIVE LISTINGS
// ═══════════════════════════════════════════════════════════════════════════════
// Unlike prose search, the vocabulary here is path components, and the
// split is LITERAL. Given the entry name "src/lib/mod":
//
//	"src/lib/mod" → ["src", "lib", "mod"]
//
// Leading, trailing, and doubled separators produce EMPTY components and
// those are kept:
//
//	"/src//mod/" → ["", "src", "", "mod", ""]
//
// There is deliberately no lowercasing, no unicode normalization, no
// stop words, and no stemming: terms are compared by raw bytes, so
// "README" and "readme" are different terms. Queries that need to match
// must supply the exact component.
// ═══════════════════════════════════════════════════════════════════════════════

package zipline

import "strings"

// SplitPath splits one archive entry name into its path components.
//
// Empty components are preserved; callers rely on the split being the
// exact inverse of strings.Join(parts, "/").
func SplitPath(entry string) []string {
	return strings.Split(entry, "/")
}

// SplitQuery splits a raw comma-separated query string into terms.
//
// Whitespace around the commas is preserved: "a, b" → ["a", " b"].
// The REPL client feeds user input through this before posting it.
func SplitQuery(raw string) []string {
	return strings.Split(raw, ",")
}
