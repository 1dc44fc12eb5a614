package hashsum

import (
	"bytes"
	"crypto/md5"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashReaderMatchesMD5(t *testing.T) {
	content := strings.Repeat("the quick brown fox ", 1000)
	h, stats, err := HashReader(strings.NewReader(content))
	require.NoError(t, err)
	require.True(t, h.IsValid())
	require.Equal(t, md5.Sum([]byte(content)), [16]byte(h))
	require.Equal(t, int64(len(content)), stats.BytesHashed)
}

func TestHashReaderEmptyIsValidDigest(t *testing.T) {
	h, _, err := HashReader(bytes.NewReader(nil))
	require.NoError(t, err)
	// MD5 of empty input is a well-known non-zero constant, so it
	// remains a "valid" hash under filedb's all-zero-is-invalid rule.
	require.True(t, h.IsValid())
}

func TestHashReaderChunksLargerThanBufferSize(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB}, ChunkSize*2+17)
	h, _, err := HashReader(bytes.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, md5.Sum(content), [16]byte(h))
}
