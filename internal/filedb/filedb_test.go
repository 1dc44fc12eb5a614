package filedb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func key(name string, wt int64, size uint64) FileKey {
	return FileKey{Name: name, LastWriteTime: FileTime(wt), Size: size}
}

func hashOf(b byte) Hash {
	var h Hash
	h[0] = b
	return h
}

func TestInsertThenGetByKey(t *testing.T) {
	d := New()
	k := key("Foo.txt", 100, 10)
	d.Insert(k, hashOf(1), `\\server\share\Foo.txt`)

	rec, ok := d.GetByKey(k)
	require.True(t, ok)
	require.Equal(t, `\\server\share\Foo.txt`, rec.FullPath)

	ok2, reason := d.checkInvariants()
	require.True(t, ok2, reason)
}

func TestGetByHashRequiresValidHash(t *testing.T) {
	d := New()
	k := key("Foo.txt", 100, 10)
	d.Insert(k, Hash{}, `path`)

	_, ok := d.GetByHash(Hash{})
	require.False(t, ok, "zero hash must never be matched")

	_, ok = d.byKeyLookupHash(k)
	require.False(t, ok, "zero hash must never be inserted into by_hash")
}

// byKeyLookupHash is a tiny test helper exercising internal state; kept
// in the test file rather than the package so production code never
// needs a public accessor solely for this assertion.
func (d *DB) byKeyLookupHash(k FileKey) (Hash, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byKey[k]
	if !ok {
		return Hash{}, false
	}
	return rec.Hash, rec.Hash.IsValid()
}

func TestGarbageCollectReducesToExactlyMax(t *testing.T) {
	d := New()
	const total = 10
	const keep = 4
	for i := 0; i < total; i++ {
		d.Insert(key("file", int64(i), 1), hashOf(byte(i+1)), "path")
	}
	require.Equal(t, total, d.Len())

	removed := d.GarbageCollect(keep)
	require.Equal(t, total-keep, removed)
	require.Equal(t, keep, d.Len())

	ok, reason := d.checkInvariants()
	require.True(t, ok, reason)
}

func TestGarbageCollectEvictsOldestFirst(t *testing.T) {
	d := New()
	k0 := key("a", 0, 1)
	k1 := key("b", 1, 1)
	k2 := key("c", 2, 1)
	d.Insert(k0, hashOf(1), "a")
	d.Insert(k1, hashOf(2), "b")
	d.Insert(k2, hashOf(3), "c")

	d.GarbageCollect(2)

	_, ok := d.GetByKey(k0)
	require.False(t, ok, "oldest entry should have been evicted")
	_, ok = d.GetByKey(k1)
	require.True(t, ok)
	_, ok = d.GetByKey(k2)
	require.True(t, ok)
}

func TestInsertMovesExistingKeyToHistoryTail(t *testing.T) {
	d := New()
	k0 := key("a", 0, 1)
	k1 := key("b", 1, 1)
	d.Insert(k0, hashOf(1), "a-v1")
	d.Insert(k1, hashOf(2), "b")
	// Re-insert k0: it should now be the newest, so GC(1) keeps it.
	d.Insert(k0, hashOf(3), "a-v2")

	removed := d.GarbageCollect(1)
	require.Equal(t, 1, removed)

	rec, ok := d.GetByKey(k0)
	require.True(t, ok, "re-inserted key should survive as the newest entry")
	require.Equal(t, "a-v2", rec.FullPath)

	_, ok = d.GetByKey(k1)
	require.False(t, ok)
}

func TestGarbageCollectOnlyRemovesByHashIfStillSameRecord(t *testing.T) {
	d := New()
	k0 := key("a", 0, 1)
	k1 := key("b", 1, 1)
	h := hashOf(9)
	d.Insert(k0, h, "a")
	// k1 steals the same hash; by_hash[h] now points at k1's record.
	d.Insert(k1, h, "b")

	removed := d.GarbageCollect(1)
	require.Equal(t, 1, removed)

	// k0 was evicted, but by_hash[h] must still resolve to k1's record,
	// not be deleted, since the slot no longer points at k0's record.
	rec, ok := d.GetByHash(h)
	require.True(t, ok)
	require.Equal(t, "b", rec.FullPath)
}

func TestFindDeltaCandidateReturnsNewestByName(t *testing.T) {
	d := New()
	d.Insert(key("build.bin", 1, 100), hashOf(1), "v1")
	d.Insert(key("build.bin", 5, 200), hashOf(2), "v2")
	d.Insert(key("other.bin", 9, 300), hashOf(3), "other")

	rec, ok := d.FindDeltaCandidate(FileKey{Name: "BUILD.BIN", LastWriteTime: 999, Size: 999})
	require.True(t, ok)
	require.Equal(t, "v2", rec.FullPath)
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := New()
	d.Insert(key("a", 1, 10), hashOf(1), "path-a")
	d.Insert(key("b", 2, 20), Hash{}, "path-b")
	d.Insert(key("c", 3, 30), hashOf(3), "path-c")

	var buf bytes.Buffer
	require.NoError(t, d.Snapshot(&buf))

	restored, err := LoadSnapshot(&buf)
	require.NoError(t, err)
	require.Equal(t, d.Len(), restored.Len())

	for _, name := range []string{"a", "b", "c"} {
		orig, ok := d.GetByKey(key(name, int64(name[0]-'a'+1), uint64((name[0]-'a'+1))*10))
		require.True(t, ok)
		got, ok := restored.GetByKey(key(name, int64(name[0]-'a'+1), uint64((name[0]-'a'+1))*10))
		require.True(t, ok)
		require.Equal(t, orig.FullPath, got.FullPath)
		require.Equal(t, orig.Hash, got.Hash)
	}

	ok, reason := restored.checkInvariants()
	require.True(t, ok, reason)
}
