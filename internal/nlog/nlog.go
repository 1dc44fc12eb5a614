// Package nlog provides the logging context threaded through the work
// engine and session manager. The original source keeps a thread-local
// LogContext pointer bound for the lifetime of a logical operation
// (copy run on the client, connection on the server); netcopy makes
// that binding explicit instead of relying on goroutine-local state,
// per spec.md §9 "Global mutable state".
package nlog

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Context is a log scope bound for the lifetime of one client process()
// call or one server connection. It also remembers the last error seen
// so retry loops can clear it between attempts, mirroring the original's
// LogContext.resetLastError.
type Context struct {
	entry *logrus.Entry

	mu        sync.Mutex
	lastError error
}

// New creates a Context rooted at the package logger, tagged with the
// given structured fields (e.g. {"session": guid} or {"conn": idx}).
func New(fields logrus.Fields) *Context {
	return &Context{entry: std.WithFields(fields)}
}

// Child returns a new Context that adds fields to the parent's, the way
// a worker connection's context narrows a client run's context.
func (c *Context) Child(fields logrus.Fields) *Context {
	return &Context{entry: c.entry.WithFields(fields)}
}

func (c *Context) Debugf(format string, args ...interface{}) { c.entry.Debugf(format, args...) }
func (c *Context) Infof(format string, args ...interface{})  { c.entry.Infof(format, args...) }
func (c *Context) Warnf(format string, args ...interface{})  { c.entry.Warnf(format, args...) }

func (c *Context) Errorf(format string, args ...interface{}) {
	c.entry.Errorf(format, args...)
	c.mu.Lock()
	c.lastError = &formattedError{format, args}
	c.mu.Unlock()
}

// LastError returns the most recent error logged through this context,
// or nil once ResetLastError has been called since.
func (c *Context) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// ResetLastError clears the last-error slot, called between retry
// attempts so a stale error doesn't look like the current one.
func (c *Context) ResetLastError() {
	c.mu.Lock()
	c.lastError = nil
	c.mu.Unlock()
}

type formattedError struct {
	format string
	args   []interface{}
}

func (e *formattedError) Error() string {
	return fmt.Sprintf(e.format, e.args...)
}

// std is the package-level default entry backing call sites (mostly CLI
// wiring in cmd/) that run before any Context has been constructed.
var std = logrus.StandardLogger().WithField("component", "netcopy")

// SetLevel adjusts the package-wide log level, used by cmd/ flag
// parsing (-v).
func SetLevel(level logrus.Level) {
	logrus.SetLevel(level)
}

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
