package client

import (
	"sync"

	"github.com/buildpipe/netcopy/internal/filedb"
)

// CopyEntry is one unit of work produced by traversal and consumed by a
// worker, spec.md §3: a single-ownership transfer from the traversal
// goroutine to whichever worker pops it.
//
// Src is this entry's local touch point: the source file to read when
// pushing to a peer or copying locally, or the destination file to
// write when pulling from a peer. Dst is only set in the local-to-local
// case, where both a local source and a distinct local destination
// exist at once. DstRelative is the path relative to the copy root,
// the only form a peer connection ever sees on the wire (§4.2
// WriteFile/ReadFile Path, §4.7 purge's handled-files key).
type CopyEntry struct {
	Src         string
	Dst         string
	DstRelative string
	SrcInfo     filedb.FileInfo
	Attributes  uint32
	IsDir       bool
}

// Queue is the work engine's thread-safe deque. PushFront is used only
// for the front-of-queue requeue on ServerBusy (§4.5), once for each
// ServerBusy answer an entry gets; everything else goes through PushBack.
type Queue struct {
	mu    sync.Mutex
	items []CopyEntry
}

// NewQueue returns an empty queue.
func NewQueue() *Queue { return &Queue{} }

func (q *Queue) PushBack(e CopyEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, e)
}

// PushFront requeues e ahead of everything currently waiting, per
// §4.5's "push the entry to the front of the queue" ServerBusy retry.
func (q *Queue) PushFront(e CopyEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]CopyEntry{e}, q.items...)
}

// PopFront removes and returns the oldest entry, or ok=false if empty.
func (q *Queue) PopFront() (CopyEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return CopyEntry{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
