// Package config holds the flag-populated settings structs the client
// and server engines read, matching the way rclone wires fs.Config
// through cmd.Root with github.com/spf13/pflag flags composed into
// github.com/spf13/cobra commands. CLI parsing itself is out of scope
// (spec.md §1), but the flag surface §6 names is fully enumerated here
// so the engine has a concrete struct to read instead of reaching into
// a flag package directly.
package config

import (
	"time"

	"github.com/spf13/pflag"
)

// UseServerMode is the client's three-way policy for whether a side of
// the copy talks to a peer server process (spec.md §6).
type UseServerMode int

const (
	UseServerAutomatic UseServerMode = iota
	UseServerRequired
	UseServerDisabled
)

func (m UseServerMode) String() string {
	switch m {
	case UseServerRequired:
		return "required"
	case UseServerDisabled:
		return "disabled"
	default:
		return "automatic"
	}
}

// Set implements pflag.Value so UseServerMode can be bound directly to
// a flag.
func (m *UseServerMode) Set(s string) error {
	switch s {
	case "automatic", "":
		*m = UseServerAutomatic
	case "required":
		*m = UseServerRequired
	case "disabled":
		*m = UseServerDisabled
	default:
		return errUnknownUseServerMode(s)
	}
	return nil
}

func (m UseServerMode) Type() string { return "useServerMode" }

type errUnknownUseServerMode string

func (e errUnknownUseServerMode) Error() string {
	return "unknown use-server mode: " + string(e)
}

// FileListEntry is one line of a per-line file-list input (§6): a
// destination path and whether the "/PURGE" suffix was present on that
// line. The client engine does not read ClientSettings.FileList, so
// Purge has no effect on a run; purging follows PurgeDestination only.
type FileListEntry struct {
	Destination string
	Purge       bool
}

// Filter is one include/exclude wildcard pattern applied during
// traversal (§6 "wildcard filters (include/exclude for files and
// directories)").
type Filter struct {
	Pattern string
	Exclude bool
	IsDir   bool
}

// ClientSettings is the full flag surface the client work engine reads
// (§6 External Interfaces, CLI surface paragraph). It is immutable for
// the duration of one process() call and shared read-only by every
// worker (spec.md §3 "Ownership").
type ClientSettings struct {
	SourceDirectory      string
	DestDirectory        string
	FileList             []FileListEntry
	Filters              []Filter

	ThreadCount    int
	RetryCount     int
	RetryWaitMs    int
	CopySubdirDepth int

	PurgeDestination bool
	Flatten          bool
	ForceCopy        bool
	ReplaceSymlinks  bool
	HashMode         bool

	UseServer                 UseServerMode
	ServerAddr                string
	ServerPort                int
	CompressionLevel          uint8
	DeltaCompressionThreshold uint64
	UseLinksThreshold         uint64

	LinkDatabaseFile string
	HistorySize      int

	UseSecurityFile bool
}

// Default mirrors the original's built-in defaults (§6 "Default port:
// 18099 ... Default history size: 500,000 ... Default buffer size").
func Default() ClientSettings {
	return ClientSettings{
		ThreadCount:               0,
		RetryCount:                3,
		RetryWaitMs:               500,
		CopySubdirDepth:           -1,
		UseServer:                 UseServerAutomatic,
		ServerPort:                18099,
		CompressionLevel:          0,
		DeltaCompressionThreshold: 1024 * 1024,
		UseLinksThreshold:         0,
		HistorySize:               500000,
	}
}

// RetryWait returns RetryWaitMs as a time.Duration for callers that
// want to time.Sleep it directly.
func (s ClientSettings) RetryWait() time.Duration {
	return time.Duration(s.RetryWaitMs) * time.Millisecond
}

// BindFlags registers every ClientSettings field onto fs, the same
// pflag.FlagSet -> struct-field wiring rclone's configflags.go uses
// for fs.Config.
func (s *ClientSettings) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&s.ThreadCount, "threads", "j", s.ThreadCount, "number of worker threads (0 = single-threaded)")
	fs.IntVar(&s.RetryCount, "retry-count", s.RetryCount, "retry attempts per operation")
	fs.IntVar(&s.RetryWaitMs, "retry-wait-ms", s.RetryWaitMs, "wait between retries, in milliseconds")
	fs.IntVar(&s.CopySubdirDepth, "depth", s.CopySubdirDepth, "recursion depth limit (-1 = unlimited)")
	fs.BoolVar(&s.PurgeDestination, "purge", s.PurgeDestination, "delete destination entries absent from the source")
	fs.BoolVar(&s.Flatten, "flatten", s.Flatten, "copy files without source subdirectory structure")
	fs.BoolVar(&s.ForceCopy, "force", s.ForceCopy, "skip the size/time equality check")
	fs.BoolVar(&s.ReplaceSymlinks, "replace-symlinks", s.ReplaceSymlinks, "replace symlinks at the destination instead of skipping them")
	fs.BoolVar(&s.HashMode, "hash", s.HashMode, "enable content-hash equality checks")
	fs.VarP(&s.UseServer, "use-server", "s", "server usage policy: automatic, required, disabled")
	fs.StringVar(&s.ServerAddr, "server", s.ServerAddr, "peer server address")
	fs.IntVar(&s.ServerPort, "port", s.ServerPort, "peer server TCP port")
	fs.Uint64Var(&s.DeltaCompressionThreshold, "delta-threshold", s.DeltaCompressionThreshold, "minimum file size, in bytes, considered for delta compression")
	fs.Uint64Var(&s.UseLinksThreshold, "link-threshold", s.UseLinksThreshold, "minimum file size, in bytes, considered for hard-link reuse")
	fs.StringVar(&s.LinkDatabaseFile, "link-db", s.LinkDatabaseFile, "path to a persisted FileDatabase snapshot")
	fs.IntVar(&s.HistorySize, "history-size", s.HistorySize, "maximum FileDatabase history entries")
	fs.BoolVar(&s.UseSecurityFile, "security-file", s.UseSecurityFile, "require the security-file handshake proof")
}

// ServerSettings is the flag surface the server session manager and
// listener read (§4.4).
type ServerSettings struct {
	ListenAddr            string
	Port                  int
	MaxConcurrentDownloads int
	MaxPriorityQueueCount int
	UseSecurityFile       bool
	LinkDatabaseFile      string
	HistorySize           int

	UseLinksThreshold uint64
	HashMode          bool
	OdxEnabled        bool
	DeltaEnabled      bool
}

// DefaultServer mirrors the original server defaults.
func DefaultServer() ServerSettings {
	return ServerSettings{
		Port:                   18099,
		MaxConcurrentDownloads: 4,
		MaxPriorityQueueCount:  32,
		HistorySize:            500000,
		DeltaEnabled:           true,
	}
}

func (s *ServerSettings) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.ListenAddr, "listen", s.ListenAddr, "address to listen on")
	fs.IntVar(&s.Port, "port", s.Port, "TCP port to listen on")
	fs.IntVar(&s.MaxConcurrentDownloads, "max-downloads", s.MaxConcurrentDownloads, "maximum concurrent admitted ReadFile downloads")
	fs.IntVar(&s.MaxPriorityQueueCount, "max-queues", s.MaxPriorityQueueCount, "number of priority queues (one per client connection index)")
	fs.BoolVar(&s.UseSecurityFile, "security-file", s.UseSecurityFile, "require the security-file handshake proof")
	fs.StringVar(&s.LinkDatabaseFile, "link-db", s.LinkDatabaseFile, "path to a persisted FileDatabase snapshot")
	fs.IntVar(&s.HistorySize, "history-size", s.HistorySize, "maximum FileDatabase history entries")
	fs.Uint64Var(&s.UseLinksThreshold, "link-threshold", s.UseLinksThreshold, "minimum file size, in bytes, considered for hard-link reuse")
	fs.BoolVar(&s.HashMode, "hash", s.HashMode, "enable content-hash equality checks")
	fs.BoolVar(&s.OdxEnabled, "odx", s.OdxEnabled, "enable server-side offloaded-copy fallback")
	fs.BoolVar(&s.DeltaEnabled, "delta", s.DeltaEnabled, "enable delta-compressed transfers")
}
