package content

import (
	"bytes"
	"crypto/md5"
	"hash/crc32"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer_InMemory(t *testing.T) {
	b := NewBuffer(t.TempDir(), 0)
	defer b.Close()

	payload := []byte("twelve bytes")
	n, err := b.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, int64(len(payload)), b.Len())
	require.False(t, b.OnDisk(), "small buffer should stay in memory")

	got, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, got)

	slice, err := b.ReadRange(7, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("bytes"), slice)

	_, err = b.ReadRange(7, 100)
	require.Error(t, err, "range past the end must fail")
}

func TestBuffer_SpillsToDisk(t *testing.T) {
	dir := t.TempDir()
	b := NewBuffer(dir, 16)

	first := bytes.Repeat([]byte{0xAB}, 10)
	_, err := b.Write(first)
	require.NoError(t, err)
	require.False(t, b.OnDisk())

	second := bytes.Repeat([]byte{0xCD}, 10)
	_, err = b.Write(second)
	require.NoError(t, err)
	require.True(t, b.OnDisk(), "crossing the limit must spill to disk")
	require.Equal(t, int64(20), b.Len())

	// The backing file lives in the work dir and holds everything
	// appended so far.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, first...), second...), got)

	slice, err := b.ReadRange(8, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xAB, 0xCD, 0xCD}, slice)

	path := b.path
	require.FileExists(t, path)
	require.NoError(t, b.Close())
	require.NoFileExists(t, path, "close must remove the backing file")
}

func TestBuffer_UniqueBackings(t *testing.T) {
	dir := t.TempDir()

	a := NewBuffer(dir, 1)
	b := NewBuffer(dir, 1)
	defer a.Close()
	defer b.Close()

	_, err := a.Write([]byte("aa"))
	require.NoError(t, err)
	_, err = b.Write([]byte("bb"))
	require.NoError(t, err)

	require.True(t, a.OnDisk())
	require.True(t, b.OnDisk())
	require.NotEqual(t, a.path, b.path, "two buffers must never share a backing file")
}

func TestBuffer_Digests(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")

	for _, spill := range []bool{false, true} {
		limit := int64(0)
		if spill {
			limit = 8
		}
		b := NewBuffer(t.TempDir(), limit)
		_, err := b.Write(payload)
		require.NoError(t, err)

		crc, err := b.CRC32()
		require.NoError(t, err)
		require.Equal(t, crc32.ChecksumIEEE(payload), crc)

		sum, err := b.MD5()
		require.NoError(t, err)
		require.Equal(t, md5.Sum(payload), sum)

		require.NoError(t, b.Close())
	}
}

func TestBuffer_FinalizeStopsWrites(t *testing.T) {
	b := NewBuffer(t.TempDir(), 0)
	defer b.Close()

	_, err := b.Write([]byte("data"))
	require.NoError(t, err)

	b.Finalize()
	_, err = b.Write([]byte("more"))
	require.ErrorIs(t, err, ErrFinalized)

	// Reads still work after finalize.
	got, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte("data"), got)
}

func TestBuffer_ClosedRejectsAccess(t *testing.T) {
	b := NewBuffer(t.TempDir(), 0)
	_, err := b.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.Write([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
	_, err = b.Bytes()
	require.ErrorIs(t, err, ErrClosed)

	require.NoError(t, b.Close(), "double close is a no-op")
}
