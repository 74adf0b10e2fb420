package recording

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// objectAPI is the slice of the MinIO client the store relies on.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// minioAPI adapts *minio.Client to objectAPI.
type minioAPI struct {
	client *minio.Client
}

func (a minioAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (a minioAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.client.GetObject(ctx, bucketName, objectName, opts)
}

func (a minioAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return a.client.StatObject(ctx, bucketName, objectName, opts)
}

func (a minioAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return a.client.RemoveObject(ctx, bucketName, objectName, opts)
}

func (a minioAPI) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	return a.client.ListObjects(ctx, bucketName, opts)
}

func (a minioAPI) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	return a.client.PresignedGetObject(ctx, bucketName, objectName, expires, reqParams)
}

// MinIOStore keeps recordings as objects in one bucket, using the same
// naming scheme as FileStore.
type MinIOStore struct {
	api        objectAPI
	bucket     string
	exts       Extensions
	presignTTL time.Duration
	nowFunc    func() time.Time
}

// NewMinIOStore constructs a store over an existing bucket. A positive
// presignTTL enables direct download links.
func NewMinIOStore(client *minio.Client, bucket string, exts Extensions, presignTTL time.Duration) *MinIOStore {
	return newMinIOStore(minioAPI{client: client}, bucket, exts, presignTTL)
}

func newMinIOStore(api objectAPI, bucket string, exts Extensions, presignTTL time.Duration) *MinIOStore {
	return &MinIOStore{api: api, bucket: bucket, exts: exts, presignTTL: presignTTL, nowFunc: time.Now}
}

// Put uploads r under a freshly generated name. size may be -1 when unknown.
func (s *MinIOStore) Put(ctx context.Context, ownerUID string, r io.Reader, size int64, ext string) (Entry, error) {
	if !s.exts.Allowed(ext) {
		return Entry{}, ErrUnsupportedFormat
	}
	now := s.nowFunc()
	name := storageName(ownerUID, now, ext)
	if !safeName(name) {
		return Entry{}, ErrInvalidFilename
	}

	info, err := s.api.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: ContentTypeFor(name),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("store object: %w", err)
	}

	stored := info.Size
	if stored <= 0 {
		stored = size
	}
	return Entry{Filename: name, CreatedAt: now, Size: stored}, nil
}

// List enumerates objects under prefix with an allowed extension.
func (s *MinIOStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		if strings.Contains(obj.Key, "/") || !s.exts.Allowed(extensionOf(obj.Key)) {
			continue
		}
		entries = append(entries, Entry{Filename: obj.Key, CreatedAt: obj.LastModified, Size: obj.Size})
	}
	return entries, nil
}

// Delete removes the object, reporting ErrNotFound when it is absent.
func (s *MinIOStore) Delete(ctx context.Context, filename string) error {
	if !safeName(filename) {
		return ErrInvalidFilename
	}
	if _, err := s.api.StatObject(ctx, s.bucket, filename, minio.StatObjectOptions{}); err != nil {
		return translateObjectError(err)
	}
	if err := s.api.RemoveObject(ctx, s.bucket, filename, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// Open streams the object. The caller must close the reader.
func (s *MinIOStore) Open(ctx context.Context, filename string) (io.ReadCloser, Entry, error) {
	if !safeName(filename) {
		return nil, Entry{}, ErrInvalidFilename
	}
	info, err := s.api.StatObject(ctx, s.bucket, filename, minio.StatObjectOptions{})
	if err != nil {
		return nil, Entry{}, translateObjectError(err)
	}
	reader, err := s.api.GetObject(ctx, s.bucket, filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, Entry{}, fmt.Errorf("fetch object: %w", err)
	}
	return reader, Entry{Filename: filename, CreatedAt: info.LastModified, Size: info.Size}, nil
}

// SignedURL returns a time-limited GET link for filename, or "" when
// presigning is disabled. The caller is responsible for the ownership check.
func (s *MinIOStore) SignedURL(ctx context.Context, filename string) (string, error) {
	if s.presignTTL <= 0 {
		return "", nil
	}
	if !safeName(filename) {
		return "", ErrInvalidFilename
	}
	if _, err := s.api.StatObject(ctx, s.bucket, filename, minio.StatObjectOptions{}); err != nil {
		return "", translateObjectError(err)
	}

	params := make(url.Values)
	params.Set("response-content-type", ContentTypeFor(filename))
	params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", filename))
	u, err := s.api.PresignedGetObject(ctx, s.bucket, filename, s.presignTTL, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", filename, err)
	}
	return u.String(), nil
}

func translateObjectError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return fmt.Errorf("stat object: %w", err)
}

var audioContentTypes = map[string]string{
	"webm": "audio/webm",
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"opus": "audio/opus",
}

// ContentTypeFor picks the MIME type served for a recording.
func ContentTypeFor(name string) string {
	ext := extensionOf(name)
	if ct, ok := audioContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
