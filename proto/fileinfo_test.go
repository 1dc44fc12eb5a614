package proto

import (
	"bytes"
	"testing"

	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/stretchr/testify/require"
)

func TestFileInfoRoundTrip(t *testing.T) {
	info := filedb.FileInfo{
		CreationTime:  filedb.FileTime(123456789),
		LastWriteTime: filedb.FileTime(987654321),
		Size:          42 << 20,
	}
	var buf bytes.Buffer
	require.NoError(t, encodeFileInfo(&buf, info))

	got, err := decodeFileInfo(&buf)
	require.NoError(t, err)
	require.Equal(t, info, got)
}

func TestHashRoundTrip(t *testing.T) {
	var h filedb.Hash
	for i := range h {
		h[i] = byte(i * 7)
	}
	var buf bytes.Buffer
	require.NoError(t, encodeHash(&buf, h))

	got, err := decodeHash(&buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}
