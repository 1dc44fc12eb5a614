package client

import (
	"path"
	"path/filepath"

	"github.com/buildpipe/netcopy/filesystem"
)

// traverse implements §4.5's processDir: walk the source (locally, or
// by FindFiles over the source connection when the source is a
// server), creating destination directories synchronously as traversal
// descends and enqueueing one CopyEntry per file for the worker pool.
// Depth is bounded by CopySubdirDepth (-1 meaning unlimited), and every
// enqueued destination-relative path is recorded so the purge engine
// never needs to re-derive it.
func (e *Engine) traverse() error {
	if err := e.ensureRootDir(); err != nil {
		return err
	}
	return e.processDir(".", 0)
}

func (e *Engine) ensureRootDir() error {
	if e.Dest.isServer() {
		_, err := e.Dest.Peer.CreateDir(".")
		return err
	}
	_, err := e.FS.EnsureDir(e.Dest.Root)
	return err
}

func (e *Engine) processDir(relDir string, depth int) error {
	if e.Settings.CopySubdirDepth >= 0 && depth > e.Settings.CopySubdirDepth {
		return nil
	}

	entries, err := e.list(relDir)
	if err != nil {
		return err
	}

	for _, child := range entries {
		if child.IsSymlink && !e.Settings.ReplaceSymlinks {
			continue
		}
		childRel := joinRel(relDir, child.Name)
		if e.excluded(child.Name, child.IsDir) {
			continue
		}

		if child.IsDir {
			if err := e.ensureChildDir(childRel); err != nil {
				return err
			}
			if err := e.processDir(childRel, depth+1); err != nil {
				return err
			}
			continue
		}

		entry := CopyEntry{
			DstRelative: childRel,
			SrcInfo:     toFileInfo(child),
			Attributes:  child.Attributes,
		}
		if !e.Source.isServer() {
			entry.Src = filepath.Join(e.Source.Root, filepath.FromSlash(childRel))
		}
		if !e.Dest.isServer() {
			if e.Source.isServer() {
				entry.Src = filepath.Join(e.Dest.Root, filepath.FromSlash(childRel))
			} else {
				entry.Dst = filepath.Join(e.Dest.Root, filepath.FromSlash(childRel))
			}
		}
		e.Queue.PushBack(entry)
	}
	return nil
}

func (e *Engine) ensureChildDir(relDir string) error {
	if e.Dest.isServer() {
		_, err := e.Dest.Peer.CreateDir(relDir)
		return err
	}
	_, err := e.FS.EnsureDir(filepath.Join(e.Dest.Root, filepath.FromSlash(relDir)))
	return err
}

func (e *Engine) list(relDir string) ([]filesystem.Entry, error) {
	if e.Source.isServer() {
		return e.Source.Peer.FindFiles(relDir)
	}
	return e.FS.Enumerate(filepath.Join(e.Source.Root, filepath.FromSlash(relDir)))
}

func (e *Engine) excluded(name string, isDir bool) bool {
	excluded := false
	for _, f := range e.Settings.Filters {
		if f.IsDir != isDir {
			continue
		}
		if ok, _ := path.Match(f.Pattern, name); ok {
			excluded = f.Exclude
		}
	}
	return excluded
}

func joinRel(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return path.Join(dir, name)
}
