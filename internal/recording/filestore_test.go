package recording

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtensions() Extensions {
	return NewExtensions([]string{"webm", "wav", "mp3", "ogg", "m4a", "aac", "flac", "opus"})
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), testExtensions())
	require.NoError(t, err)
	return store
}

func TestFileStorePutAndOpen(t *testing.T) {
	store := newTestFileStore(t)
	store.nowFunc = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

	entry, err := store.Put(context.Background(), "u1", strings.NewReader("RIFF-data"), 9, "wav")
	require.NoError(t, err)
	assert.Regexp(t, storagePattern, entry.Filename)
	assert.Equal(t, int64(9), entry.Size)

	rc, opened, err := store.Open(context.Background(), entry.Filename)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "RIFF-data", string(data))
	assert.Equal(t, entry.Filename, opened.Filename)

	leftovers, err := filepath.Glob(filepath.Join(store.Dir(), ".upload-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStorePutRejectsUnknownExtension(t *testing.T) {
	store := newTestFileStore(t)

	_, err := store.Put(context.Background(), "u1", strings.NewReader("x"), 1, "exe")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFileStorePutRejectsUnsafeOwner(t *testing.T) {
	store := newTestFileStore(t)

	_, err := store.Put(context.Background(), "../evil", strings.NewReader("x"), 1, "wav")
	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestFileStorePutNeverOverwrites(t *testing.T) {
	store := newTestFileStore(t)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return fixed }

	names := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		entry, err := store.Put(context.Background(), "u1", bytes.NewReader([]byte{byte(i)}), 1, "wav")
		require.NoError(t, err)
		names[entry.Filename] = struct{}{}
	}
	assert.Len(t, names, 20)
}

func TestFileStoreListFiltersByPrefixAndExtension(t *testing.T) {
	store := newTestFileStore(t)
	for _, name := range []string{
		"u1_20240101_120000_aaaaaaaa.wav",
		"u1_20240101_120001_bbbbbbbb.webm",
		"u1_notes.txt",
		"u2_20240101_120000_cccccccc.wav",
		".u1_hidden.wav",
		"metadata.json",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "u1_dir.wav"), 0o750))

	entries, err := store.List(context.Background(), "u1_")
	require.NoError(t, err)

	var got []string
	for _, e := range entries {
		got = append(got, e.Filename)
	}
	sort.Strings(got)
	assert.Equal(t, []string{"u1_20240101_120000_aaaaaaaa.wav", "u1_20240101_120001_bbbbbbbb.webm"}, got)
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestFileStore(t)
	entry, err := store.Put(context.Background(), "u1", strings.NewReader("x"), 1, "ogg")
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), entry.Filename))
	assert.ErrorIs(t, store.Delete(context.Background(), entry.Filename), ErrNotFound)
	assert.ErrorIs(t, store.Delete(context.Background(), "../"+entry.Filename), ErrInvalidFilename)
	assert.ErrorIs(t, store.Delete(context.Background(), "u1_../../x.wav"), ErrInvalidArgument)
}

func TestFileStorePutHonoursCancellation(t *testing.T) {
	store := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "u1", strings.NewReader("x"), 1, "wav")
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := store.List(context.Background(), "u1_")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
