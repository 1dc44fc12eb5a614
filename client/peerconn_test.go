package client

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/config"
	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/buildpipe/netcopy/server"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// startTestServer boots a real *server.Server on an ephemeral TCP port
// rooted at dir, the only way to drive DialPeer (which always dials a
// real address) against the server package from outside it.
func startTestServer(t *testing.T, dir string) string {
	t.Helper()
	settings := config.DefaultServer()
	settings.DeltaEnabled = true
	settings.OdxEnabled = true
	s := server.New(settings, filesystem.NewLocal())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		_ = ln.Close()
		<-done
	})

	_ = dir // netDirectory is sent by the client on connect, not set server-side
	return ln.Addr().String()
}

func dialTestPeer(t *testing.T, addr, netDir string) *PeerConn {
	t.Helper()
	pc, err := DialPeer(addr, filesystem.NewLocal(), netDir, 1, uuid.New(), 1024*1024, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func entryFor(t *testing.T, srcPath, dstRelative string) CopyEntry {
	t.Helper()
	info, err := os.Stat(srcPath)
	require.NoError(t, err)
	return CopyEntry{
		Src:         srcPath,
		DstRelative: dstRelative,
		SrcInfo: filedb.FileInfo{
			LastWriteTime: filedb.FileTime(info.ModTime().UnixNano()),
			Size:          uint64(info.Size()),
		},
	}
}

func TestPeerConnWriteFileCopiesThenSkips(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	addr := startTestServer(t, dstDir)
	peer := dialTestPeer(t, addr, dstDir)

	srcPath := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("hello"), 0o644))
	mtime := time.Now().Truncate(time.Second)
	require.NoError(t, os.Chtimes(srcPath, mtime, mtime))

	entry := entryFor(t, srcPath, "a.txt")

	linked, err := peer.WriteFile(entry, 0)
	require.NoError(t, err)
	require.False(t, linked)

	got, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	// Re-sending the identical entry must Skip without erroring.
	linked2, err := peer.WriteFile(entry, 0)
	require.NoError(t, err)
	require.False(t, linked2)
}

func TestPeerConnReadFileDownloadsMissingFile(t *testing.T) {
	srcDir := t.TempDir() // server-side source
	dstDir := t.TempDir() // client-side destination
	addr := startTestServer(t, srcDir)
	peer := dialTestPeer(t, addr, srcDir)

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "r.txt"), []byte("pull me"), 0o644))

	localPath := filepath.Join(dstDir, "r.txt")
	entry := CopyEntry{
		Src:         localPath,
		DstRelative: "r.txt",
		SrcInfo:     filedb.FileInfo{LastWriteTime: filedb.FileTime(time.Unix(0, 0).UnixNano())},
	}

	busy, err := peer.ReadFile(entry, 0)
	require.NoError(t, err)
	require.False(t, busy)

	got, err := os.ReadFile(localPath)
	require.NoError(t, err)
	require.Equal(t, []byte("pull me"), got)
}

func TestPeerConnCreateDirAndFindFiles(t *testing.T) {
	netDir := t.TempDir()
	addr := startTestServer(t, netDir)
	peer := dialTestPeer(t, addr, netDir)

	created, err := peer.CreateDir(filepath.Join("a", "b"))
	require.NoError(t, err)
	require.Equal(t, 2, created)

	require.NoError(t, os.WriteFile(filepath.Join(netDir, "a", "b", "f.txt"), []byte("x"), 0o644))

	entries, err := peer.FindFiles(filepath.Join("a", "b"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "f.txt", entries[0].Name)
}

func TestPeerConnDeleteFilesAndGetFileInfo(t *testing.T) {
	netDir := t.TempDir()
	addr := startTestServer(t, netDir)
	peer := dialTestPeer(t, addr, netDir)

	require.NoError(t, os.MkdirAll(filepath.Join(netDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(netDir, "sub", "f.txt"), []byte("xy"), 0o644))

	info, err := peer.GetFileInfo(filepath.Join("sub", "f.txt"))
	require.NoError(t, err)
	require.True(t, info.Exists)
	require.Equal(t, uint64(2), info.Info.Size)

	require.NoError(t, peer.DeleteFiles("sub"))

	info2, err := peer.GetFileInfo(filepath.Join("sub", "f.txt"))
	require.NoError(t, err)
	require.False(t, info2.Exists)
}

func TestPeerConnRequestReport(t *testing.T) {
	netDir := t.TempDir()
	addr := startTestServer(t, netDir)
	peer := dialTestPeer(t, addr, netDir)

	text, err := peer.RequestReport()
	require.NoError(t, err)
	require.NotEmpty(t, text)
}
