package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/stretchr/testify/require"
)

func localEntry(t *testing.T, srcPath, dstPath string) CopyEntry {
	t.Helper()
	info, err := os.Stat(srcPath)
	require.NoError(t, err)
	return CopyEntry{
		Src: srcPath,
		Dst: dstPath,
		SrcInfo: toFileInfo(filesystem.Entry{
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}),
	}
}

func TestLocalCopyWritesNewFile(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("content"), 0o644))

	fs := filesystem.NewLocal()
	entry := localEntry(t, srcPath, filepath.Join(dstDir, "a.txt"))

	skipped, err := localCopy(fs, entry, false)
	require.NoError(t, err)
	require.False(t, skipped)

	got, err := os.ReadFile(entry.Dst)
	require.NoError(t, err)
	require.Equal(t, []byte("content"), got)
}

func TestLocalCopySkipsWhenInfoMatches(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "a.txt")
	dstPath := filepath.Join(dstDir, "a.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("content"), 0o644))

	mtime := time.Now().Truncate(time.Second)
	require.NoError(t, os.Chtimes(srcPath, mtime, mtime))

	fs := filesystem.NewLocal()
	entry := localEntry(t, srcPath, dstPath)

	_, err := localCopy(fs, entry, false)
	require.NoError(t, err)

	// Stamp the same mtime (fs.SetModTime already did this) and re-run:
	// the destination now matches SrcInfo exactly, so the second call
	// must skip without touching content.
	skipped, err := localCopy(fs, entry, false)
	require.NoError(t, err)
	require.True(t, skipped)
}

func TestLocalCopyForceCopyOverwritesEvenWhenInfoMatches(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "a.txt")
	dstPath := filepath.Join(dstDir, "a.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("v1"), 0o644))
	mtime := time.Now().Truncate(time.Second)
	require.NoError(t, os.Chtimes(srcPath, mtime, mtime))

	fs := filesystem.NewLocal()
	entry := localEntry(t, srcPath, dstPath)
	_, err := localCopy(fs, entry, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(srcPath, []byte("v2"), 0o644))
	require.NoError(t, os.Chtimes(srcPath, mtime, mtime))
	entry2 := localEntry(t, srcPath, dstPath)
	// Same size and mtime as the first copy, so SrcInfo still matches
	// the destination: only ForceCopy makes this overwrite rather than
	// skip.
	skipped, err := localCopy(fs, entry2, true)
	require.NoError(t, err)
	require.False(t, skipped)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}
