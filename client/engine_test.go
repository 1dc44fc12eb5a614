package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/config"
	"github.com/buildpipe/netcopy/internal/nlog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, srcRoot, dstRoot string) *Engine {
	t.Helper()
	settings := config.Default()
	settings.SourceDirectory = srcRoot
	settings.DestDirectory = dstRoot
	settings.CopySubdirDepth = -1

	e := NewEngine(settings, filesystem.NewLocal(), nlog.New(logrus.Fields{"test": true}))
	e.Source = Endpoint{Root: srcRoot}
	e.Dest = Endpoint{Root: dstRoot}
	return e
}

func TestEngineRunCopiesTreeLocally(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "sub", "nested.txt"), []byte("nested"), 0o644))

	e := newTestEngine(t, srcRoot, dstRoot)
	require.NoError(t, e.Run())

	got, err := os.ReadFile(filepath.Join(dstRoot, "top.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("top"), got)

	got2, err := os.ReadFile(filepath.Join(dstRoot, "sub", "nested.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("nested"), got2)

	require.True(t, e.Handled.Contains("top.txt"))
	require.True(t, e.Handled.Contains(filepath.Join("sub", "nested.txt")))
}

func TestEngineRunRespectsExcludeFilter(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "keep.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "skip.tmp"), []byte("skip"), 0o644))

	e := newTestEngine(t, srcRoot, dstRoot)
	e.Settings.Filters = []config.Filter{{Pattern: "*.tmp", Exclude: true}}
	require.NoError(t, e.Run())

	_, err := os.Stat(filepath.Join(dstRoot, "keep.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dstRoot, "skip.tmp"))
	require.True(t, os.IsNotExist(err))
}

func TestEngineRunWithWorkerPool(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()
	for i := 0; i < 10; i++ {
		name := filepath.Join(srcRoot, "f"+string(rune('0'+i))+".txt")
		require.NoError(t, os.WriteFile(name, []byte("data"), 0o644))
	}

	e := newTestEngine(t, srcRoot, dstRoot)
	e.Settings.ThreadCount = 4
	require.NoError(t, e.Run())

	for i := 0; i < 10; i++ {
		name := filepath.Join(dstRoot, "f"+string(rune('0'+i))+".txt")
		got, err := os.ReadFile(name)
		require.NoError(t, err)
		require.Equal(t, []byte("data"), got)
	}
}
