package zipline

import (
	"errors"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SNAPSHOTS: PERSISTING THE INDEX
// ═══════════════════════════════════════════════════════════════════════════════
// A snapshot is the whole index as one self-describing msgpack blob, so
// the service can dump an index to disk and a later process can restore
// it without rebuilding from the intermediate file.
//
// WHAT GOES IN THE BLOB:
//   - every posting's per-document counts and its IDF
//   - the display-name → id mapping
//   - the per-document sizes
//
// WHAT GETS REBUILT ON LOAD:
//   - the reverse id → name mapping
//   - each posting's roaring docset (from the count keys)
//
// msgpack writes float64 as the raw 8-byte IEEE value, so IDFs round-trip
// bit-exact and load(dump(x)) scores identically to x.
// ═══════════════════════════════════════════════════════════════════════════════

// ErrSnapshotCorrupt reports a snapshot blob that cannot be decoded into
// a consistent index.
var ErrSnapshotCorrupt = errors.New("corrupt snapshot")

type snapshotPosting struct {
	Counts map[uint64]uint64 `msgpack:"counts"`
	IDF    float64           `msgpack:"idf"`
}

type snapshot struct {
	Postings map[string]snapshotPosting `msgpack:"postings"`
	Docs     map[string]uint64          `msgpack:"docs"`
	Sizes    map[uint64]uint64          `msgpack:"sizes"`
}

// EncodeSnapshot serializes the index to a msgpack blob.
func (idx *Index) EncodeSnapshot() ([]byte, error) {
	snap := snapshot{
		Postings: make(map[string]snapshotPosting, len(idx.Postings)),
		Docs:     make(map[string]uint64, len(idx.nameToID)),
		Sizes:    make(map[uint64]uint64, len(idx.DocSizes)),
	}
	for term, posting := range idx.Postings {
		snap.Postings[term] = snapshotPosting{
			Counts: posting.Counts,
			IDF:    posting.IDF,
		}
	}
	for name, id := range idx.nameToID {
		snap.Docs[name] = id
	}
	for id, size := range idx.DocSizes {
		snap.Sizes[id] = size
	}

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot reconstructs an index from a snapshot blob. The blob is
// validated against the index invariants before anything is returned;
// a failure leaves no partial index behind.
func DecodeSnapshot(data []byte) (*Index, error) {
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	idx := NewIndex()

	n := uint64(len(snap.Docs))
	for name, id := range snap.Docs {
		if id >= n {
			return nil, fmt.Errorf("%w: document id %d out of range", ErrSnapshotCorrupt, id)
		}
		if other, dup := idx.idToName[id]; dup {
			return nil, fmt.Errorf("%w: id %d claimed by %q and %q", ErrSnapshotCorrupt, id, other, name)
		}
		idx.nameToID[name] = id
		idx.idToName[id] = name
	}
	idx.nextID = n

	if uint64(len(snap.Sizes)) != n {
		return nil, fmt.Errorf("%w: %d documents but %d sizes", ErrSnapshotCorrupt, n, len(snap.Sizes))
	}
	for id, size := range snap.Sizes {
		if id >= n {
			return nil, fmt.Errorf("%w: size for unknown document %d", ErrSnapshotCorrupt, id)
		}
		idx.DocSizes[id] = size
	}

	for term, sp := range snap.Postings {
		posting := newTermPosting()
		posting.IDF = sp.IDF
		for id, count := range sp.Counts {
			if id >= n {
				return nil, fmt.Errorf("%w: term %q posted to unknown document %d", ErrSnapshotCorrupt, term, id)
			}
			posting.Counts[id] = count
			posting.Docs.Add(id)
		}
		idx.Postings[term] = posting
	}

	return idx, nil
}

// DumpSnapshotFile writes the index snapshot to path.
func DumpSnapshotFile(idx *Index, path string) error {
	data, err := idx.EncodeSnapshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshotFile reads and decodes the snapshot at path.
func LoadSnapshotFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}
