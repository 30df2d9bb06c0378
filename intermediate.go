package zipline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ═══════════════════════════════════════════════════════════════════════════════
// THE INTERMEDIATE FILE
// ═══════════════════════════════════════════════════════════════════════════════
// Archive scanning and index construction are decoupled by a
// line-delimited JSON file: one record per archive, holding the display
// name and the verbatim entry listing.
//
//	{"name":"a.zip","files":["src/main.go","README"]}
//	{"name":"b.zip","files":["docs/intro.md"]}
//
// Rebuilding the index never re-reads the archives, and the builder
// streams the file line by line, so it never holds the whole corpus
// listing in memory at once. The writing side does: WriteIntermediate
// takes every record as one slice.
// ═══════════════════════════════════════════════════════════════════════════════

// ErrRecordMalformed reports an intermediate line that cannot be decoded.
var ErrRecordMalformed = errors.New("malformed intermediate record")

// Record is one archive's listing: the display name and every entry
// name, verbatim and in archive order.
type Record struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// WriteIntermediate replaces the file at path with one JSON line per
// record.
func WriteIntermediate(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create intermediate: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		// Encode appends the newline delimiter itself.
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write intermediate record %q: %w", rec.Name, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush intermediate: %w", err)
	}
	return f.Close()
}

// intermediateMaxLine bounds a single record line. An archive listing
// tens of thousands of entries easily exceeds bufio's 64K default.
const intermediateMaxLine = 64 << 20

// ReadIntermediate streams the records at path in file order, calling fn
// for each. A line that fails to decode aborts the scan with
// ErrRecordMalformed; an error from fn aborts the scan and is returned
// as-is.
func ReadIntermediate(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open intermediate: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), intermediateMaxLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("line %d: %w: %v", lineNo, ErrRecordMalformed, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan intermediate: %w", err)
	}
	return nil
}
