package filesystem

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalOpenWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.txt")
	l := NewLocal()

	w, err := l.OpenWrite(path, false)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := l.OpenRead(path)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestLocalOpenWriteFailIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.txt")
	l := NewLocal()

	w, err := l.OpenWrite(path, true)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = l.OpenWrite(path, true)
	require.Error(t, err)
}

func TestLocalSetModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.txt")
	l := NewLocal()
	w, err := l.OpenWrite(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, l.SetModTime(path, want))

	entry, err := l.Stat(path)
	require.NoError(t, err)
	require.WithinDuration(t, want, entry.ModTime, time.Second)
}

func TestLocalHardlinkSharesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	l := NewLocal()

	w, err := l.OpenWrite(src, false)
	require.NoError(t, err)
	_, _ = w.Write([]byte("shared content"))
	require.NoError(t, w.Close())

	require.NoError(t, l.Hardlink(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "shared content", string(data))

	// Writing through one name must be visible through the other.
	require.NoError(t, os.WriteFile(src, []byte("changed"), 0o644))
	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "changed", string(data))
}

func TestLocalEnsureDirCountsCreatedLevels(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal()

	created, err := l.EnsureDir(filepath.Join(dir, "a", "b", "c"))
	require.NoError(t, err)
	require.Equal(t, 3, created)

	created, err = l.EnsureDir(filepath.Join(dir, "a", "b", "c"))
	require.NoError(t, err)
	require.Equal(t, 0, created)
}

func TestLocalEnumerateSkipsNothingButMarksSymlinks(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "link.txt")))

	entries, err := l.Enumerate(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var sawLink bool
	for _, e := range entries {
		if e.Name == "link.txt" {
			sawLink = true
			require.True(t, e.IsSymlink)
		}
	}
	require.True(t, sawLink)
}

func TestLocalMove(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	require.NoError(t, l.Move(src, dst))
	_, err := os.Stat(src)
	require.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestLocalSetWritableClearsReadOnlyBit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ro.txt")
	l := NewLocal()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, l.SetWritable(path, false))
	entry, err := l.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, entry.Attributes&attrReadOnly)

	require.NoError(t, l.SetWritable(path, true))
	entry, err = l.Stat(path)
	require.NoError(t, err)
	require.Zero(t, entry.Attributes&attrReadOnly)
}
