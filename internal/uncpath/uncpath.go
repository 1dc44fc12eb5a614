// Package uncpath implements the original's optimizeUncPath
// short-circuit (SPEC_FULL.md "Supplemented features" #2): a UNC path
// that names this machine as its host is rewritten to the plain local
// path it denotes, so the Environment handshake never opens a loopback
// network share when a local path would do.
package uncpath

import (
	"net"
	"os"
	"strings"
)

// Optimize rewrites path if it is a UNC path (\\host\share\...) whose
// host component names the local machine, returning what follows the
// share name with its leading separator (\\localhost\share\a\b becomes
// \a\b). The share name is dropped, not mapped to a drive or mount
// point. Non-UNC paths, UNC paths naming a different host, and local
// UNC paths with nothing below the share are returned unchanged.
func Optimize(path string) string {
	host, rest, ok := splitUNCHost(path)
	if !ok {
		return path
	}
	if !isLocalHost(host) {
		return path
	}
	idx := strings.IndexAny(rest[1:], `\/`)
	if idx < 0 {
		return path
	}
	return rest[1+idx:]
}

// splitUNCHost recognizes \\host\rest or //host/rest and returns the
// host component and the remaining rest (with its own leading
// separator preserved so callers can re-root it).
func splitUNCHost(path string) (host, rest string, ok bool) {
	if len(path) < 3 {
		return "", "", false
	}
	sep := path[0]
	if (sep != '\\' && sep != '/') || path[1] != sep {
		return "", "", false
	}
	body := path[2:]
	idx := strings.IndexAny(body, `\/`)
	if idx <= 0 {
		return "", "", false
	}
	return body[:idx], body[idx:], true
}

// isLocalHost reports whether host names this machine: "localhost",
// "127.0.0.1", "::1", or this host's own hostname (case-insensitive,
// matching Windows machine-name comparison semantics).
func isLocalHost(host string) bool {
	h := strings.ToLower(host)
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return true
	}
	hostname, err := os.Hostname()
	if err == nil && strings.EqualFold(hostname, host) {
		return true
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return false
	}
	for _, a := range addrs {
		if a == "127.0.0.1" || a == "::1" {
			return true
		}
	}
	return false
}
