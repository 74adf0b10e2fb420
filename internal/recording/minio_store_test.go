package recording

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	stamp   time.Time
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte), stamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *memoryObjects) PutObject(_ context.Context, _, objectName string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return minio.UploadInfo{Key: objectName, Size: int64(len(data))}, nil
}

func (m *memoryObjects) GetObject(_ context.Context, _, objectName string, _ minio.GetObjectOptions) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.objects[objectName])), nil
}

func (m *memoryObjects) StatObject(_ context.Context, _, objectName string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Key: objectName}
	}
	return minio.ObjectInfo{Key: objectName, Size: int64(len(data)), LastModified: m.stamp}, nil
}

func (m *memoryObjects) RemoveObject(_ context.Context, _, objectName string, _ minio.RemoveObjectOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

func (m *memoryObjects) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(chan minio.ObjectInfo, len(m.objects))
	for key, data := range m.objects {
		if strings.HasPrefix(key, opts.Prefix) {
			out <- minio.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: m.stamp}
		}
	}
	close(out)
	return out
}

func TestMinIOStoreRoundTrip(t *testing.T) {
	objects := newMemoryObjects()
	store := newMinIOStore(objects, "recordings", testExtensions(), 0)
	ctx := context.Background()

	entry, err := store.Put(ctx, "u1", strings.NewReader("opus-bytes"), 10, "opus")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(entry.Filename, "u1_"))
	assert.Equal(t, int64(10), entry.Size)

	objects.objects["u1_notes.txt"] = []byte("x")
	objects.objects["u2_20240101_120000_aaaaaaaa.wav"] = []byte("x")

	entries, err := store.List(ctx, "u1_")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.Filename, entries[0].Filename)
	assert.Equal(t, objects.stamp, entries[0].CreatedAt)

	rc, opened, err := store.Open(ctx, entry.Filename)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "opus-bytes", string(data))
	assert.Equal(t, int64(10), opened.Size)

	require.NoError(t, store.Delete(ctx, entry.Filename))
	assert.ErrorIs(t, store.Delete(ctx, entry.Filename), ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "u1_../x.wav"), ErrInvalidFilename)
}

func TestMinIOStoreWithService(t *testing.T) {
	store := newMinIOStore(newMemoryObjects(), "recordings", testExtensions(), 0)
	svc := NewService(store, NewJSONOverlay(t.TempDir(), nil), testExtensions(), 0, nil)
	ctx := context.Background()

	first := upload(t, svc, userOne, "a.flac")
	second := upload(t, svc, userOne, "b.flac")

	views, err := svc.List(ctx, userOne)
	require.NoError(t, err)
	got := filenames(views)
	want := []string{first.Filename, second.Filename}
	sort.Sort(sort.Reverse(sort.StringSlice(want)))
	assert.Equal(t, want, got)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "audio/webm", ContentTypeFor("u1_a.webm"))
	assert.Equal(t, "audio/mpeg", ContentTypeFor("u1_a.MP3"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("u1_a"))
}

func (m *memoryObjects) PresignedGetObject(_ context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	q := make(url.Values)
	for k, v := range reqParams {
		q[k] = v
	}
	q.Set("X-Amz-Expires", strconv.Itoa(int(expires.Seconds())))
	return &url.URL{Scheme: "http", Host: "minio.local", Path: "/" + bucketName + "/" + objectName, RawQuery: q.Encode()}, nil
}

func TestMinIOStoreSignedURL(t *testing.T) {
	objects := newMemoryObjects()
	ctx := context.Background()

	disabled := newMinIOStore(objects, "recordings", testExtensions(), 0)
	link, err := disabled.SignedURL(ctx, "u1_20240101_120000_ab12cd34.wav")
	require.NoError(t, err)
	assert.Empty(t, link)

	store := newMinIOStore(objects, "recordings", testExtensions(), 15*time.Minute)
	entry, err := store.Put(ctx, "u1", strings.NewReader("wav"), 3, "wav")
	require.NoError(t, err)

	link, err = store.SignedURL(ctx, entry.Filename)
	require.NoError(t, err)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/recordings/"+entry.Filename, parsed.Path)
	assert.Equal(t, "900", parsed.Query().Get("X-Amz-Expires"))
	assert.Equal(t, "audio/wav", parsed.Query().Get("response-content-type"))

	_, err = store.SignedURL(ctx, "u1_20240101_120000_ffffffff.wav")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDownloadURLChecksOwnership(t *testing.T) {
	store := newMinIOStore(newMemoryObjects(), "recordings", testExtensions(), time.Minute)
	svc := NewService(store, &fakeOverlay{}, testExtensions(), 0, nil)
	ref := upload(t, svc, userOne, "a.wav")
	ctx := context.Background()

	link, err := svc.DownloadURL(ctx, userOne, ref.Filename)
	require.NoError(t, err)
	assert.Contains(t, link, ref.Filename)

	_, err = svc.DownloadURL(ctx, userTwo, ref.Filename)
	assert.ErrorIs(t, err, ErrForbidden)

	local := newTestEnv(t)
	link, err = local.service.DownloadURL(ctx, userOne, ref.Filename)
	require.NoError(t, err)
	assert.Empty(t, link)
}
