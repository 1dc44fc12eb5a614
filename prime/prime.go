// Package prime implements directory priming, spec.md §4.9: populate a
// FileDatabase with the contents of a tree before any client ever asks
// for it, so the very first WriteFile/ReadFile against those paths can
// already attempt a key-match link instead of falling back to a plain
// copy. Grounded on server/connection.go's destPath/fileKey convention
// (paths are netDirectory-relative, matching what the wire protocol
// names) and client/traverse.go's recursive-enumerate shape.
package prime

import (
	"path"
	"path/filepath"
	"sync"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/buildpipe/netcopy/internal/nlog"
)

// Primer owns the work list §4.9 describes: a mutex-guarded queue of
// directories still to enumerate, drained either synchronously by the
// calling goroutine or by a lazily-started background goroutine.
type Primer struct {
	fs   filesystem.FileSystem
	db   *filedb.DB
	root string
	log  *nlog.Context

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []string
	active  int
	started bool
	closed  bool
}

// New returns a Primer that enumerates paths under root (an absolute
// filesystem directory, typically a server's netDirectory) through fs,
// inserting every file it finds into db with a zero hash.
func New(fs filesystem.FileSystem, db *filedb.DB, root string, log *nlog.Context) *Primer {
	p := &Primer{fs: fs, db: db, root: root, log: log}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// PrimeDirectory enqueues relPath (relative to root; "." for the whole
// tree). In background mode it starts the drain worker if one isn't
// already running and returns immediately; otherwise it drains the
// queue synchronously on the calling goroutine, returning the first
// error encountered (§4.9: "either returns (background mode) or drains
// it synchronously").
func (p *Primer) PrimeDirectory(relPath string, background bool) error {
	p.push(relPath)
	if background {
		p.startWorker()
		return nil
	}
	return p.drain()
}

// Wait blocks until the queue is empty and no worker is mid-directory,
// the background-mode counterpart to PrimeDirectory's synchronous
// drain (§4.9 "prime_wait blocks until queue drains and all active
// workers idle").
func (p *Primer) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) > 0 || p.active > 0 {
		p.cond.Wait()
	}
}

// Close stops the background worker once the queue drains. Safe to
// call without a prior background PrimeDirectory call.
func (p *Primer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Primer) push(relPath string) {
	p.mu.Lock()
	p.queue = append(p.queue, relPath)
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Primer) pop() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return "", false
	}
	relPath := p.queue[0]
	p.queue = p.queue[1:]
	p.active++
	return relPath, true
}

func (p *Primer) finish() {
	p.mu.Lock()
	p.active--
	idle := len(p.queue) == 0 && p.active == 0
	p.mu.Unlock()
	if idle {
		p.cond.Broadcast()
	}
}

func (p *Primer) drain() error {
	for {
		relPath, ok := p.pop()
		if !ok {
			return nil
		}
		err := p.processOne(relPath)
		p.finish()
		if err != nil {
			return err
		}
	}
}

func (p *Primer) startWorker() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		for {
			relPath, ok := p.pop()
			if !ok {
				p.mu.Lock()
				for len(p.queue) == 0 && !p.closed {
					p.cond.Wait()
				}
				stop := p.closed && len(p.queue) == 0
				p.mu.Unlock()
				if stop {
					return
				}
				continue
			}
			if err := p.processOne(relPath); err != nil && p.log != nil {
				p.log.Warnf("prime: failed to enumerate %q: %v", relPath, err)
			}
			p.finish()
		}
	}()
}

// processOne enumerates one directory: symlinks are skipped (neither
// entered nor inserted), subdirectories are re-enqueued, files are
// inserted into the database with a zero hash so the hash-match path
// can never select them but key-match (size+write-time+name) still
// can (§4.9).
func (p *Primer) processOne(relPath string) error {
	entries, err := p.fs.Enumerate(filepath.Join(p.root, filepath.FromSlash(relPath)))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childRel := joinRel(relPath, entry.Name)
		if entry.IsSymlink {
			continue
		}
		if entry.IsDir {
			p.push(childRel)
			continue
		}
		key := filedb.FileKey{
			Name:          childRel,
			LastWriteTime: filedb.FileTime(entry.ModTime.UnixNano()),
			Size:          uint64(entry.Size),
		}
		p.db.Insert(key, filedb.Hash{}, filepath.Join(p.root, filepath.FromSlash(childRel)))
	}
	return nil
}

func joinRel(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return path.Join(dir, name)
}
