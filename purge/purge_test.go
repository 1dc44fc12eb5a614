package purge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/nlog"
	"github.com/buildpipe/netcopy/internal/stats"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type stringSet map[string]bool

func (s stringSet) Contains(relPath string) bool { return s[relPath] }

func newLog() *nlog.Context { return nlog.New(logrus.Fields{"test": true}) }

func TestRunDeletesUnhandledFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("b"), 0o644))

	fs := filesystem.NewLocal()
	handled := stringSet{"keep.txt": true}
	counters := stats.New()

	err := Run(Destination{FS: fs, Root: root}, handled, -1, newLog(), counters)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "keep.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "stray.txt"))
	require.True(t, os.IsNotExist(err))
	require.EqualValues(t, 1, counters.PurgeCount)
}

func TestRunNeverEntersSymlinkedDir(t *testing.T) {
	root := t.TempDir()
	realDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "inside.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(realDir, filepath.Join(root, "link")))

	fs := filesystem.NewLocal()
	handled := stringSet{}
	counters := stats.New()

	err := Run(Destination{FS: fs, Root: root}, handled, -1, newLog(), counters)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(realDir, "inside.txt"))
	require.NoError(t, err)
}

func TestRunRespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("z"), 0o644))

	fs := filesystem.NewLocal()
	handled := stringSet{}
	counters := stats.New()

	err := Run(Destination{FS: fs, Root: root}, handled, 0, newLog(), counters)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(nested, "deep.txt"))
	require.NoError(t, err)
}

type fakePeer struct {
	files   map[string][]filesystem.Entry
	deleted []string
}

func (f *fakePeer) FindFiles(relPath string) ([]filesystem.Entry, error) {
	return f.files[relPath], nil
}

func (f *fakePeer) DeleteFiles(relPath string) error {
	f.deleted = append(f.deleted, relPath)
	return nil
}

func TestRunCollapsesUntouchedServerSubtree(t *testing.T) {
	peer := &fakePeer{files: map[string][]filesystem.Entry{
		".":      {{Name: "keep.txt"}, {Name: "stray", IsDir: true}},
		"stray":  {{Name: "boo.txt"}},
	}}
	handled := stringSet{"keep.txt": true}
	counters := stats.New()

	err := Run(Destination{Peer: peer}, handled, -1, newLog(), counters)
	require.NoError(t, err)
	require.Equal(t, []string{"stray"}, peer.deleted)
	require.EqualValues(t, 1, counters.PurgeCount)
}

func TestRunDoesNotCollapseTouchedServerSubtree(t *testing.T) {
	peer := &fakePeer{files: map[string][]filesystem.Entry{
		".":      {{Name: "sub", IsDir: true}},
		"sub":    {{Name: "kept.txt"}, {Name: "stray.txt"}},
	}}
	handled := stringSet{"sub/kept.txt": true}
	counters := stats.New()

	err := Run(Destination{Peer: peer}, handled, -1, newLog(), counters)
	require.NoError(t, err)
	require.Equal(t, []string{"sub/stray.txt"}, peer.deleted)
}
