//go:build !windows

package filesystem

import (
	"errors"
	"os"
	"syscall"

	"github.com/pkg/xattr"
)

const xattrReadOnlyKey = "user.netcopy.readonly"

// xattrSupported tracks whether xattr calls are still worth making on
// this filesystem, per backend/local/xattr.go's
// probe-once-then-disable pattern: the first ENOTSUP/EINVAL flips it
// permanently rather than re-probing every call.
var xattrSupported = true

func xattrIsUnsupported(err error) bool {
	var xerr *xattr.Error
	if !errors.As(err, &xerr) {
		return false
	}
	return errors.Is(xerr.Err, syscall.ENOTSUP) || errors.Is(xerr.Err, syscall.EINVAL) || errors.Is(xerr.Err, xattr.ENOATTR)
}

// attributesOf extracts the attribute bits netcopy cares about. Unix
// has no native read-only file attribute distinct from the permission
// bits; attrReadOnly is set when the owner-write permission bit is
// clear. The extended attribute setWritablePlatform writes is not read
// here.
func attributesOf(info os.FileInfo) uint32 {
	var attrs uint32
	if info.Mode().Perm()&0o200 == 0 {
		attrs |= attrReadOnly
	}
	return attrs
}

// setWritablePlatform clears or sets the owner-write permission bit
// and also records the read-only state in an xattr (when supported).
// Nothing in this package reads that xattr back; attributesOf looks
// only at the permission bit.
func setWritablePlatform(path string, writable bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return classifyOpenErr(path, err)
	}
	mode := info.Mode().Perm()
	if writable {
		mode |= 0o200
	} else {
		mode &^= 0o200
	}
	if err := os.Chmod(path, mode); err != nil {
		return classifyOpenErr(path, err)
	}

	if xattrSupported {
		val := []byte{0}
		if !writable {
			val[0] = 1
		}
		if err := xattr.Set(path, xattrReadOnlyKey, val); err != nil && xattrIsUnsupported(err) {
			xattrSupported = false
		}
	}
	return nil
}

// linkIdentity returns the (device, inode) pair identifying path's
// content on disk. Hardlink calls it after os.Link to check that the
// new destination entry shares the source's identity. Grounded on
// backend/local/linkinfo_unix.go's syscall.Stat_t read.
func linkIdentity(path string) (dev, ino uint64, err error) {
	fi, statErr := os.Stat(path)
	if statErr != nil {
		return 0, 0, classifyOpenErr(path, statErr)
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, errors.New("stat_t not available on this platform")
	}
	return uint64(st.Dev), uint64(st.Ino), nil
}

// isSharingViolation maps the unix errno that most resembles Windows'
// ERROR_SHARING_VIOLATION: another process holding an exclusive lock
// or a text-busy executable.
func isSharingViolation(err error) bool {
	return errors.Is(err, syscall.ETXTBSY) || errors.Is(err, syscall.EBUSY)
}
