// Package filesystem defines the FileSystem capability spec.md §1
// treats as an external collaborator: open_read, open_write, write,
// read, set_mtime, seek, close, hardlink, delete, ensure_dir,
// enumerate, stat, move, set_writable. The core (client, server,
// purge, prime) depends only on this interface; Local is the one
// concrete implementation netcopy ships, grounded on
// backend/local/local.go.
package filesystem

import (
	"io"
	"time"
)

// Entry describes one enumerated filesystem entry, the payload behind
// FindFiles responses and local traversal alike.
type Entry struct {
	Name       string
	IsDir      bool
	IsSymlink  bool
	Size       int64
	ModTime    time.Time
	CreateTime time.Time
	Attributes uint32
}

// ReadHandle is an open file ready for streamed reads, with Seek for
// resuming a partially-received delta patch target.
type ReadHandle interface {
	io.ReadSeekCloser
}

// WriteHandle is an open file ready for streamed writes.
type WriteHandle interface {
	io.WriteSeeker
	io.Closer
}

// FileSystem is the capability surface every storage-touching
// component (client work engine, server command loop, purge engine,
// directory priming) is written against. FileSystem implementations
// never need to be safe for concurrent use on the same handle, but
// must be safe for concurrent use across distinct paths/handles (the
// client worker pool and server session threads both call through a
// shared FileSystem value from many goroutines at once).
type FileSystem interface {
	// OpenRead opens path for streamed reading.
	OpenRead(path string) (ReadHandle, error)
	// OpenWrite creates (or truncates, if failIfExists is false and the
	// file exists) path for streamed writing.
	OpenWrite(path string, failIfExists bool) (WriteHandle, error)

	// SetModTime sets path's last-write time, the final step of every
	// write path (§4.2 WriteFile: "sets mtime to the client-sent
	// value").
	SetModTime(path string, modTime time.Time) error

	// Hardlink creates a new directory entry at dst pointing at the
	// same content as src. Implementations must return an *nerrors.IoError
	// (not a bare error) on failure so callers can distinguish
	// "unsupported across volumes" from "permission denied".
	Hardlink(src, dst string) error

	// Delete removes a single file. DeleteAll recursively removes a
	// directory and everything under it (§4.2 DeleteFiles).
	Delete(path string) error
	DeleteAll(path string) error

	// EnsureDir creates path and any missing parent directories,
	// returning the number of directory levels that did not already
	// exist (§4.2 CreateDir's "SuccessExisted + k").
	EnsureDir(path string) (created int, err error)

	// Enumerate lists the immediate children of dir. It never
	// descends into symlinked directories (§4.7).
	Enumerate(dir string) ([]Entry, error)

	// Stat returns the Entry for path, or an *nerrors.IoError with Kind
	// IoNotFound if it does not exist.
	Stat(path string) (Entry, error)

	// Move renames/moves src to dst; used for atomic positioning of a
	// fully-received file at its final destination path (§4.2
	// "atomically positions them at the destination").
	Move(src, dst string) error

	// SetWritable clears (or, if writable is false, sets) the
	// read-only attribute bit on path, the "drop a thread-local
	// try_copy_first flag ... drop the read-only flag if present"
	// step of §4.5.
	SetWritable(path string, writable bool) error
}
