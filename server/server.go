// Package server implements the peer server process of spec.md §4.2
// (server side) and §4.4 (session manager and admission): a listener
// that accepts connections, and one command-loop goroutine per
// connection driving the WriteFile/ReadFile/CreateDir/DeleteFiles/
// FindFiles/GetFileInfo/RequestReport/Done state machine against a
// shared FileDatabase and FileSystem.
//
// Grounded on the teacher's connection-handling shape (backend/local's
// single-purpose, lock-disciplined methods) generalized to own a
// socket loop instead of a request/response RPC method set, since no
// pack repo implements a from-scratch TCP protocol server of its own —
// the session/admission bookkeeping follows spec.md §3/§4.4 directly.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/config"
	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/buildpipe/netcopy/internal/nlog"
	"github.com/buildpipe/netcopy/internal/stats"
	"github.com/buildpipe/netcopy/prime"
	"github.com/buildpipe/netcopy/session"
	"github.com/sirupsen/logrus"
)

// acceptPollInterval is how often the listener wakes to check for
// shutdown even while Accept has nothing pending, the Go analogue of
// spec.md §4.4/§5 "reads on the listening socket use a short timeout
// to allow cooperative shutdown" (net.Listener has no read-timeout
// knob of its own, so SetDeadline on the underlying TCPListener
// stands in for it).
const acceptPollInterval = 500 * time.Millisecond

// Server owns every piece of shared state a session thread touches:
// the file database, the active-session registry, the ReadFile
// admission queues, and the filesystem it serves.
type Server struct {
	Settings config.ServerSettings
	FS       filesystem.FileSystem
	DB       *filedb.DB
	Sessions *session.Registry
	Admit    *session.Admission
	Stats    *stats.Counters
	Log      *nlog.Context

	primeMu sync.Mutex
	primers map[string]*prime.Primer
}

// New constructs a Server ready to Serve.
func New(settings config.ServerSettings, fs filesystem.FileSystem) *Server {
	return &Server{
		Settings: settings,
		FS:       fs,
		DB:       filedb.New(),
		Sessions: session.NewRegistry(),
		Admit:    session.NewAdmission(settings.MaxPriorityQueueCount, settings.MaxConcurrentDownloads),
		Stats:    stats.New(),
		Log:      nlog.New(logrus.Fields{"component": "server"}),
		primers:  make(map[string]*prime.Primer),
	}
}

// Serve accepts connections on ln until ctx is cancelled, spawning one
// goroutine per connection. It returns once the listener is closed and
// all in-flight connections have been handed off (it does not wait for
// them to finish; spec.md §4.4 "the listener tolerates individual
// session failures" and lets them drain independently).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	connIndex := 0
	for {
		if tcpLn, ok := ln.(*net.TCPListener); ok {
			_ = tcpLn.SetDeadline(time.Now().Add(acceptPollInterval))
		}
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					continue
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return err
		}
		connIndex++
		go s.handleConn(conn, connIndex)
	}
}

// handleConn drives one accepted connection's command loop end to end,
// logging and swallowing any error: an individual session failure must
// never take the listener down (§4.4).
func (s *Server) handleConn(conn net.Conn, defaultConnIndex int) {
	defer conn.Close()
	c := &connState{
		server:    s,
		conn:      conn,
		connIndex: defaultConnIndex,
		log:       s.Log.Child(logrus.Fields{"conn": defaultConnIndex}),
	}
	if err := c.run(); err != nil {
		c.log.Errorf("session terminated: %v", err)
	}
	c.teardown()
}

func (s *Server) reportString() string {
	return s.Stats.String()
}
