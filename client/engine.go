package client

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/config"
	"github.com/buildpipe/netcopy/internal/nerrors"
	"github.com/buildpipe/netcopy/internal/nlog"
	"github.com/buildpipe/netcopy/internal/stats"
	"github.com/buildpipe/netcopy/purge"
)

// Endpoint abstracts one side of a copy (source or destination): either
// the local filesystem, or a connection to a peer netcopy server.
// Peer is set when this side is a server; a local side has Peer nil and
// is reached through Engine.FS (§4.5: "Neither
// side is a server" / "Destination is a server" / "Source is a server"
// are mutually exclusive per run).
type Endpoint struct {
	Peer *PeerConn // nil when this side is local
	Root string    // local root, or the net directory sent to Peer
}

func (e Endpoint) isServer() bool { return e.Peer != nil }

// Engine ties together the settings, filesystem/peer endpoints, queue,
// handled-files set, and stats counters that make up one process() run
// (spec.md §3 "Ownership", §4.5 Client Work Engine).
type Engine struct {
	Settings config.ClientSettings
	FS       filesystem.FileSystem
	Log      *nlog.Context

	Source Endpoint
	Dest   Endpoint

	Stats   *stats.Counters
	Handled *HandledSet
	Queue   *Queue

	traversalDone int32 // atomic bool
	workDone      chan struct{}
	workDoneOnce  sync.Once
}

// NewEngine returns an Engine ready to run once Source/Dest are set.
func NewEngine(settings config.ClientSettings, fs filesystem.FileSystem, log *nlog.Context) *Engine {
	return &Engine{
		Settings: settings,
		FS:       fs,
		Log:      log,
		Stats:    stats.New(),
		Handled:  NewHandledSet(),
		Queue:    NewQueue(),
		workDone: make(chan struct{}),
	}
}

// Run drains the traversal and worker pool to completion, the
// top-level entry point of §4.5. With ThreadCount > 0, traversal runs
// concurrently with the worker pool, so the first workers can start as
// soon as the first entries land, and the calling goroutine only waits
// for both. With ThreadCount <= 0 the calling goroutine waits for
// traversal to finish and then drains the queue itself.
func (e *Engine) Run() error {
	var traverseErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer atomic.StoreInt32(&e.traversalDone, 1)
		traverseErr = e.traverse()
	}()

	workerCount := e.Settings.ThreadCount
	if workerCount <= 0 {
		// Single-threaded: the caller itself drains the queue once
		// traversal has finished (§4.5 "0 ⇒ single-threaded on the caller").
		wg.Wait()
		e.drainQueue()
		e.signalWorkDone()
	} else {
		var workers sync.WaitGroup
		workers.Add(workerCount)
		for i := 0; i < workerCount; i++ {
			go func(workerIndex int) {
				defer workers.Done()
				e.workerLoop(workerIndex)
			}(i)
		}
		wg.Wait()
		workers.Wait()
		e.signalWorkDone()
	}

	if traverseErr != nil {
		return traverseErr
	}
	return e.purgeIfConfigured()
}

// purgeIfConfigured runs the purge engine (§4.7) once the copy phase
// has fully drained, deleting every destination entry this run never
// touched. A no-op unless PurgeDestination is set.
func (e *Engine) purgeIfConfigured() error {
	if !e.Settings.PurgeDestination {
		return nil
	}
	dest := purge.Destination{Root: e.Dest.Root}
	if e.Dest.isServer() {
		dest.Peer = e.Dest.Peer
	} else {
		dest.FS = e.FS
	}
	return purge.Run(dest, e.Handled, e.Settings.CopySubdirDepth, e.Log, e.Stats)
}

func (e *Engine) signalWorkDone() {
	e.workDoneOnce.Do(func() { close(e.workDone) })
}

// drainQueue runs the worker body inline, used for the single-threaded
// (ThreadCount == 0) path.
func (e *Engine) drainQueue() {
	for {
		entry, ok := e.Queue.PopFront()
		if !ok {
			return
		}
		e.processEntry(entry)
	}
}

// workerLoop is one pool worker: pop, process, or sleep 1ms and
// recheck when the queue is momentarily empty but traversal hasn't
// finished yet (§4.5 "workers poll the queue; when empty they sleep
// 1 ms and re-check").
func (e *Engine) workerLoop(workerIndex int) {
	for {
		entry, ok := e.Queue.PopFront()
		if !ok {
			if atomic.LoadInt32(&e.traversalDone) == 1 {
				return
			}
			time.Sleep(time.Millisecond)
			continue
		}
		e.processEntry(entry)
	}
}

// processEntry runs the retry loop around one CopyEntry's decision and
// transfer: an error that nerrors.IsRetriable accepts is retried up to
// RetryCount times with RetryWaitMs backoff; any other error fails the
// entry on its first occurrence.
func (e *Engine) processEntry(entry CopyEntry) {
	attempts := 0
	for {
		busy, err := e.attempt(entry)
		if busy {
			// ServerBusy: requeue at the front and back off, capped at 5s,
			// per §4.5's "sleep up to 5 seconds on the work_done signal".
			e.Queue.PushFront(entry)
			e.sleepOnWorkDone(5 * time.Second)
			return
		}
		if err == nil {
			return
		}
		if !nerrors.IsRetriable(err) || attempts >= e.Settings.RetryCount {
			e.Log.Warnf("giving up on %q after %d attempts: %v", entry.DstRelative, attempts+1, err)
			e.Stats.AddFailure()
			return
		}
		attempts++
		e.Stats.AddRetry()
		e.Log.ResetLastError()
		time.Sleep(e.Settings.RetryWait())
	}
}

func (e *Engine) sleepOnWorkDone(cap time.Duration) {
	select {
	case <-e.workDone:
	case <-time.After(cap):
	}
}

// attempt dispatches one CopyEntry to the right decision path based on
// which side (if either) is a server, per §4.5.
func (e *Engine) attempt(entry CopyEntry) (serverBusy bool, err error) {
	e.Handled.Add(entry.DstRelative)

	if entry.IsDir {
		return false, e.ensureDir(entry)
	}

	switch {
	case e.Dest.isServer():
		_, err := e.Dest.Peer.WriteFile(entry, e.Settings.CompressionLevel)
		return false, err
	case e.Source.isServer():
		return e.Source.Peer.ReadFile(entry, e.Settings.CompressionLevel)
	default:
		_, err := localCopy(e.FS, entry, e.Settings.ForceCopy)
		return false, err
	}
}

func (e *Engine) ensureDir(entry CopyEntry) error {
	if e.Dest.isServer() {
		_, err := e.Dest.Peer.CreateDir(entry.DstRelative)
		return err
	}
	_, err := e.FS.EnsureDir(entry.Dst)
	return err
}
