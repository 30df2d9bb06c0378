package zipline

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ARCHIVE LISTING READER
// ═══════════════════════════════════════════════════════════════════════════════
// The indexer only ever needs ENTRY NAMES. Reading them touches just the
// zip central directory at the end of the file; entry contents are never
// decompressed. Directory entries, odd extensions, and empty names all
// pass through untouched: filtering is the indexer's concern, and the
// indexer chooses not to.
// ═══════════════════════════════════════════════════════════════════════════════

// ErrArchiveMalformed reports an archive whose container structure
// cannot be parsed.
var ErrArchiveMalformed = errors.New("malformed archive")

// ListArchive returns the entry names of one zip archive in central
// directory order.
func ListArchive(r io.ReaderAt, size int64) ([]string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveMalformed, err)
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// ListArchiveFile lists the entries of the zip archive at path.
func ListArchiveFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	names, err := ListArchive(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return names, nil
}

// ScanStagingDir lists every "*.zip" in dir (non-recursive) and returns
// one record per archive, named by its file name. os.ReadDir yields
// entries sorted by name, so the record order, and therefore document
// id assignment, is deterministic.
func ScanStagingDir(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		files, err := ListArchiveFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, Record{Name: entry.Name(), Files: files})
	}
	return records, nil
}
