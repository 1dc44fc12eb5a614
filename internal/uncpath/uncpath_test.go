package uncpath

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptimizeLocalhostUNC(t *testing.T) {
	got := Optimize(`\\localhost\share\builds\out`)
	require.Equal(t, `\builds\out`, got)
}

func TestOptimizeLoopbackIP(t *testing.T) {
	got := Optimize(`\\127.0.0.1\share\a`)
	require.Equal(t, `\a`, got)
}

func TestOptimizeOwnHostname(t *testing.T) {
	hostname, err := os.Hostname()
	require.NoError(t, err)

	got := Optimize(`\\` + hostname + `\share\a\b`)
	require.Equal(t, `\a\b`, got)
}

func TestOptimizeLeavesRemoteHostUnchanged(t *testing.T) {
	path := `\\buildfarm-17\share\artifacts`
	require.Equal(t, path, Optimize(path))
}

func TestOptimizeLeavesPlainPathUnchanged(t *testing.T) {
	require.Equal(t, `C:\builds\out`, Optimize(`C:\builds\out`))
	require.Equal(t, `/mnt/builds/out`, Optimize(`/mnt/builds/out`))
}

func TestOptimizeForwardSlashUNC(t *testing.T) {
	got := Optimize(`//localhost/share/x`)
	require.Equal(t, `/x`, got)
}
