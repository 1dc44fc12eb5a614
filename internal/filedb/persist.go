package filedb

import (
	"bytes"
	"encoding/gob"
	"io"
)

// snapshotTuple is the on-disk shape of one record: exactly the
// (file_key, hash, path) tuple spec.md §6 requires round-trip fidelity
// for, in history order (oldest first). Grounded on backend/hasher/
// kv.go's hashRecord gob-encoding pattern.
type snapshotTuple struct {
	Key      FileKey
	Hash     Hash
	FullPath string
}

// Snapshot serializes the database to w in history order (oldest
// first), the order LoadSnapshot must restore to preserve eviction
// semantics across a restart.
func (d *DB) Snapshot(w io.Writer) error {
	d.mu.Lock()
	tuples := make([]snapshotTuple, 0, d.history.Len())
	for e := d.history.Front(); e != nil; e = e.Next() {
		k := e.Value.(FileKey)
		rec := d.byKey[k]
		tuples = append(tuples, snapshotTuple{Key: k, Hash: rec.Hash, FullPath: rec.FullPath})
	}
	d.mu.Unlock()

	return gob.NewEncoder(w).Encode(tuples)
}

// LoadSnapshot replaces the database's contents with the tuples decoded
// from r, re-inserting them in their stored order so history ordering
// (and therefore future GarbageCollect behavior) round-trips exactly.
func LoadSnapshot(r io.Reader) (*DB, error) {
	var tuples []snapshotTuple
	if err := gob.NewDecoder(r).Decode(&tuples); err != nil {
		return nil, err
	}
	d := New()
	for _, t := range tuples {
		d.Insert(t.Key, t.Hash, t.FullPath)
	}
	return d, nil
}

// EncodeToBytes and DecodeFromBytes are convenience wrappers used by
// callers (e.g. the linkDatabaseFile flag) that hold the whole snapshot
// in memory rather than streaming it.
func (d *DB) EncodeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Snapshot(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeFromBytes(b []byte) (*DB, error) {
	return LoadSnapshot(bytes.NewReader(b))
}
