// Package purge implements the post-copy destination pruning spec.md
// §4.7 describes: after the copy phase, walk the destination tree and
// delete every entry the run never touched. Grounded directly on
// §4.7's wording; the traversal shape mirrors client/traverse.go's
// own depth-bounded walk since both enumerate the same kind of tree.
package purge

import (
	"path"
	"path/filepath"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/nlog"
	"github.com/buildpipe/netcopy/internal/stats"
)

// Peer is the subset of client.PeerConn purge needs: enumerating and
// deleting on a destination server. Declared locally (rather than
// imported from client) so purge has no dependency on the client
// package's worker-pool/traversal machinery — it only needs to talk to
// whichever destination the engine already connected.
type Peer interface {
	FindFiles(relPath string) ([]filesystem.Entry, error)
	DeleteFiles(relPath string) error
}

// Handled reports whether a destination-relative path was touched
// during the copy phase, satisfied by *client.HandledSet.
type Handled interface {
	Contains(relPath string) bool
}

// Destination is the root purge walks: either the local filesystem
// rooted at Root, or a peer connection to a destination server.
type Destination struct {
	FS   filesystem.FileSystem // nil when Peer is set
	Peer Peer
	Root string
}

func (d Destination) isServer() bool { return d.Peer != nil }

// Run walks dest down to maxDepth (negative means unlimited, matching
// ClientSettings.CopySubdirDepth) and deletes every child not recorded
// in handled. Symlinked directories are never entered, and are not
// treated specially at the root either (§4.7): a symlink is just
// another child, deleted if unhandled like any file.
func Run(dest Destination, handled Handled, maxDepth int, log *nlog.Context, counters *stats.Counters) error {
	return purgeDir(dest, handled, ".", 0, maxDepth, log, counters)
}

func purgeDir(dest Destination, handled Handled, relDir string, depth, maxDepth int, log *nlog.Context, counters *stats.Counters) error {
	if maxDepth >= 0 && depth > maxDepth {
		return nil
	}

	entries, err := list(dest, relDir)
	if err != nil {
		return err
	}

	if dest.isServer() && relDir != "." && !anyHandledBelow(dest, handled, relDir, entries) {
		// Nothing under this directory was touched by the copy: skip
		// the per-file walk and let the server recursively delete the
		// whole subtree in one round trip (§4.7).
		if err := dest.Peer.DeleteFiles(relDir); err != nil {
			log.Warnf("purge: failed to delete %q: %v", relDir, err)
			if counters != nil {
				counters.AddFailure()
			}
			return nil
		}
		if counters != nil {
			counters.AddPurge()
		}
		return nil
	}

	for _, child := range entries {
		childRel := joinRel(relDir, child.Name)

		if child.IsDir {
			if child.IsSymlink {
				continue // never entered, per §4.7
			}
			if err := purgeDir(dest, handled, childRel, depth+1, maxDepth, log, counters); err != nil {
				return err
			}
			continue
		}

		if handled.Contains(childRel) {
			continue
		}
		if err := deleteOne(dest, childRel); err != nil {
			log.Warnf("purge: failed to delete %q: %v", childRel, err)
			if counters != nil {
				counters.AddFailure()
			}
			continue
		}
		if counters != nil {
			counters.AddPurge()
		}
	}
	return nil
}

// anyHandledBelow reports whether relDir (whose immediate children are
// entries) contains, anywhere in its subtree, a path the copy touched.
// A false result is the precondition for collapsing the whole subtree
// into one DeleteFiles request (§4.7's "if the directory's files were
// all handled" — read as "all subject to deletion", i.e. none were
// touched by the copy this run; the scenario in spec.md §8 ("purge
// pre-populated SubDir the source never mentions") only makes sense
// under this reading, since the alternative would delete files the
// copy just wrote).
func anyHandledBelow(dest Destination, handled Handled, relDir string, entries []filesystem.Entry) bool {
	for _, e := range entries {
		childRel := joinRel(relDir, e.Name)
		if e.IsDir {
			if e.IsSymlink {
				continue
			}
			children, err := list(dest, childRel)
			if err != nil {
				return true // can't prove it's safe to collapse; walk normally
			}
			if anyHandledBelow(dest, handled, childRel, children) {
				return true
			}
			continue
		}
		if handled.Contains(childRel) {
			return true
		}
	}
	return false
}

func list(dest Destination, relDir string) ([]filesystem.Entry, error) {
	if dest.isServer() {
		return dest.Peer.FindFiles(relDir)
	}
	return dest.FS.Enumerate(filepath.Join(dest.Root, filepath.FromSlash(relDir)))
}

func deleteOne(dest Destination, relPath string) error {
	if dest.isServer() {
		return dest.Peer.DeleteFiles(relPath)
	}
	return dest.FS.Delete(filepath.Join(dest.Root, filepath.FromSlash(relPath)))
}

func joinRel(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return path.Join(dir, name)
}
