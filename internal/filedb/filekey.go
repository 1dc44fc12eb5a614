package filedb

import "strings"

// FileTime is a 64-bit monotonic timestamp, compared bitwise exactly as
// the original's FILETIME is — never interpreted as wall-clock time by
// this package. Callers build one from a filesystem.Entry's ModTime
// with UnixNano.
type FileTime int64

// FileInfo is the bitwise-comparable identity snapshot spec.md §3
// defines: two files are "the same" for skip/link purposes iff their
// FileInfo values are equal.
type FileInfo struct {
	CreationTime  FileTime
	LastWriteTime FileTime
	Size          uint64
}

// Equal compares FileInfo bitwise, per spec.md §3 ("Equality follows
// ordering"); no field is treated as optional or approximate.
func (a FileInfo) Equal(b FileInfo) bool {
	return a.CreationTime == b.CreationTime &&
		a.LastWriteTime == b.LastWriteTime &&
		a.Size == b.Size
}

// FileKey approximates "same file identity" for link reuse: a
// case-insensitive name, its last-write time, and its size.
type FileKey struct {
	Name          string
	LastWriteTime FileTime
	Size          uint64
}

// foldedName is cached nowhere deliberately: FileKey is a small value
// type copied freely, and strings.ToLower on short path segments is
// cheap enough that memoizing it would just be another invariant to
// keep in sync.
func (k FileKey) foldedName() string { return strings.ToLower(k.Name) }

// Less orders by name (case-insensitive), then write-time, then size,
// matching spec.md §3's ordering definition exactly (used for the
// delta-candidate lower_bound scan).
func (k FileKey) Less(other FileKey) bool {
	kn, on := k.foldedName(), other.foldedName()
	if kn != on {
		return kn < on
	}
	if k.LastWriteTime != other.LastWriteTime {
		return k.LastWriteTime < other.LastWriteTime
	}
	return k.Size < other.Size
}

// Equal follows ordering (two keys are equal iff neither is Less than
// the other), per spec.md §3.
func (k FileKey) Equal(other FileKey) bool {
	return !k.Less(other) && !other.Less(k)
}
