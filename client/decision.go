package client

import (
	"errors"
	"io"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/buildpipe/netcopy/internal/nerrors"
)

// localCopy implements §4.5's "Neither side is a server" branch: an
// optimistic copy_file(src, dst, fail_if_exists), falling back to a
// stat-and-compare when the destination already exists. Grounded on
// backend/local/local.go's Update-over-existing-Object pattern,
// generalized to the fail_if_exists/restat dance this spec names
// explicitly rather than rclone's check-then-write order.
func localCopy(fs filesystem.FileSystem, entry CopyEntry, forceCopy bool) (skipped bool, err error) {
	wh, err := fs.OpenWrite(entry.Dst, true)
	if err == nil {
		return false, copyInto(fs, wh, entry)
	}

	if !isAlreadyExists(err) {
		return false, nerrors.Retry(err)
	}

	if !forceCopy {
		destEntry, statErr := fs.Stat(entry.Dst)
		if statErr == nil && toFileInfo(destEntry).Equal(entry.SrcInfo) {
			return true, nil
		}
	}

	if err := fs.SetWritable(entry.Dst, true); err != nil {
		return false, nerrors.Retry(err)
	}
	wh, err = fs.OpenWrite(entry.Dst, false)
	if err != nil {
		return false, nerrors.Retry(err)
	}
	return false, copyInto(fs, wh, entry)
}

func copyInto(fs filesystem.FileSystem, wh filesystem.WriteHandle, entry CopyEntry) error {
	rh, err := fs.OpenRead(entry.Src)
	if err != nil {
		_ = wh.Close()
		return nerrors.Retry(err)
	}
	defer rh.Close()
	if _, err := io.Copy(wh, rh); err != nil {
		_ = wh.Close()
		return nerrors.Retry(err)
	}
	if err := wh.Close(); err != nil {
		return nerrors.Retry(err)
	}
	return fs.SetModTime(entry.Dst, fileTimeToTime(entry.SrcInfo.LastWriteTime))
}

func isAlreadyExists(err error) bool {
	var ioe *nerrors.IoError
	if errors.As(err, &ioe) {
		return ioe.Kind == nerrors.IoAlreadyExists
	}
	return false
}

// toFileInfo mirrors server/connection.go's toFileInfo: CreateTime is
// left at the zero FileTime when the filesystem implementation never
// populated it, matching what gets recorded elsewhere for the same
// path so restat comparisons agree.
func toFileInfo(e filesystem.Entry) filedb.FileInfo {
	var ct filedb.FileTime
	if !e.CreateTime.IsZero() {
		ct = filedb.FileTime(e.CreateTime.UnixNano())
	}
	return filedb.FileInfo{
		CreationTime:  ct,
		LastWriteTime: filedb.FileTime(e.ModTime.UnixNano()),
		Size:          uint64(e.Size),
	}
}
