// Package filedb implements the content-addressed file database: the
// server's (and, when priming link sources, the client's) index of
// previously-seen files, keyed both by approximate identity (FileKey)
// and by exact content (Hash), with history-ordered eviction.
//
// Grounded on backend/hasher/kv.go's gob-encoded record store for the
// persistence shape; the in-memory index itself (by_key/by_hash/history
// triangle) follows spec.md §3 and §9 directly, since no pack repo
// keeps both a keyed index and a content-addressed index over the same
// records with an eviction-ordered history list.
package filedb

import (
	"container/list"
	"sync"
)

// Record is the in-memory entry the database owns. It is never copied
// once inserted: by_key holds it directly, by_hash holds a pointer to
// it, and the history cursor is the *list.Element whose Value is the
// FileKey that looks this record up in by_key.
type Record struct {
	FullPath string
	Info     FileInfo
	Hash     Hash

	cursor *list.Element // points into history; Value is the FileKey
}

// DB is the file database described in spec.md §4.3. Zero value is not
// usable; use New.
type DB struct {
	mu sync.Mutex

	byKey  map[FileKey]*Record
	byHash map[Hash]*Record
	history *list.List // of FileKey, oldest at Front, newest at Back
}

// New returns an empty database.
func New() *DB {
	return &DB{
		byKey:   make(map[FileKey]*Record),
		byHash:  make(map[Hash]*Record),
		history: list.New(),
	}
}

// Len reports the number of records currently indexed.
func (d *DB) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Len()
}

// GetByKey performs an exact-match lookup by FileKey.
func (d *DB) GetByKey(k FileKey) (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.byKey[k]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// GetByHash performs an exact-match lookup on a valid hash. A zero hash
// always misses, even if (pathologically) something tried to insert it.
func (d *DB) GetByHash(h Hash) (Record, bool) {
	if !h.IsValid() {
		return Record{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.byHash[h]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// FindDeltaCandidate returns the newest record whose name equals k.Name,
// regardless of write-time/size, for use as a delta reference. This is
// the lower_bound-by-name scan spec.md §4.3 describes; since Go has no
// built-in ordered map, it is implemented as a linear scan over byKey
// filtered by folded name — acceptable because FileDatabase's own
// history size is the same bound garbage_collect enforces (hundreds of
// thousands of entries at the default, not the tens of millions where a
// linear scan would dominate wall clock next to network I/O).
func (d *DB) FindDeltaCandidate(k FileKey) (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var best *Record
	var bestWrite FileTime
	for key, rec := range d.byKey {
		if key.foldedName() != k.foldedName() {
			continue
		}
		if best == nil || key.LastWriteTime > bestWrite {
			best = rec
			bestWrite = key.LastWriteTime
		}
	}
	if best == nil {
		return Record{}, false
	}
	return *best, true
}

// Insert records that fullPath holds the content identified by k and
// (if valid) h. If k was already present its history entry is moved to
// the tail (most-recently-seen); by_hash is overwritten unconditionally
// when h is valid, per spec.md §4.3 and the Open Question resolution in
// DESIGN.md (a hash match always points at the newest record, even when
// that record arrived via a fallback path like ODX after a failed
// hard-link).
func (d *DB) Insert(k FileKey, h Hash, fullPath string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.byKey[k]; ok {
		d.history.Remove(existing.cursor)
	}

	elem := d.history.PushBack(k)
	rec := &Record{FullPath: fullPath, Info: FileInfo{LastWriteTime: k.LastWriteTime, Size: k.Size}, Hash: h, cursor: elem}
	d.byKey[k] = rec
	if h.IsValid() {
		d.byHash[h] = rec
	}
}

// GarbageCollect evicts the len(history)-max oldest entries. It always
// removes the corresponding by_key row, and removes the by_hash row only
// if that slot still points at the exact record being evicted (identity
// check, not equality — spec.md §9), since a newer record may have since
// claimed the same hash.
func (d *DB) GarbageCollect(max int) (removed int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for d.history.Len() > max {
		front := d.history.Front()
		key := front.Value.(FileKey)
		rec := d.byKey[key]
		d.history.Remove(front)
		delete(d.byKey, key)
		if rec != nil && rec.Hash.IsValid() {
			if cur, ok := d.byHash[rec.Hash]; ok && cur == rec {
				delete(d.byHash, rec.Hash)
			}
		}
		removed++
	}
	return removed
}

// checkInvariants is used only by tests to assert the consistency
// spec.md §4.3 requires after every mutation.
func (d *DB) checkInvariants() (ok bool, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.byKey) != d.history.Len() {
		return false, "len(by_key) != len(history)"
	}
	for h, rec := range d.byHash {
		if got, ok := d.byKey[keyOf(d, rec)]; !ok || got != rec {
			return false, "by_hash entry not reachable from by_key: " + h.String()
		}
	}
	for e := d.history.Front(); e != nil; e = e.Next() {
		k := e.Value.(FileKey)
		rec, ok := d.byKey[k]
		if !ok {
			return false, "history entry missing from by_key"
		}
		if rec.cursor != e {
			return false, "history cursor mismatch"
		}
	}
	return true, ""
}

// keyOf does a reverse lookup of the FileKey for a record via its
// cursor, used only by the invariant checker above.
func keyOf(d *DB, rec *Record) FileKey {
	return rec.cursor.Value.(FileKey)
}
