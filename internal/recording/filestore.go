package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// putAttempts bounds retries when a generated name is already taken.
const putAttempts = 3

// BlobStore persists and enumerates recordings.
type BlobStore interface {
	Put(ctx context.Context, ownerUID string, r io.Reader, size int64, ext string) (Entry, error)
	List(ctx context.Context, prefix string) ([]Entry, error)
	Delete(ctx context.Context, filename string) error
	Open(ctx context.Context, filename string) (io.ReadCloser, Entry, error)
}

// URLSigner is implemented by stores that can hand out direct, time-limited
// download links. An empty URL means the store declined.
type URLSigner interface {
	SignedURL(ctx context.Context, filename string) (string, error)
}

// FileStore keeps every recording in one shared directory.
type FileStore struct {
	dir     string
	exts    Extensions
	nowFunc func() time.Time
}

// NewFileStore prepares dir and returns a store rooted at it.
func NewFileStore(dir string, exts Extensions) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, exts: exts, nowFunc: time.Now}, nil
}

// Dir returns the directory recordings are stored in.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put streams r into a new uniquely named file. An existing file is never
// overwritten: the data is staged in a temp file and hard-linked into place.
func (s *FileStore) Put(ctx context.Context, ownerUID string, r io.Reader, _ int64, ext string) (Entry, error) {
	if !s.exts.Allowed(ext) {
		return Entry{}, ErrUnsupportedFormat
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*.tmp")
	if err != nil {
		return Entry{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, readerWithContext(ctx, r))
	if err != nil {
		tmp.Close()
		return Entry{}, fmt.Errorf("write recording: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Entry{}, fmt.Errorf("fsync recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Entry{}, fmt.Errorf("close recording: %w", err)
	}

	for attempt := 0; attempt < putAttempts; attempt++ {
		now := s.nowFunc()
		name := storageName(ownerUID, now, ext)
		if !safeName(name) {
			return Entry{}, ErrInvalidFilename
		}
		err := os.Link(tmpPath, filepath.Join(s.dir, name))
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return Entry{}, fmt.Errorf("publish recording: %w", err)
		}
		return Entry{Filename: name, CreatedAt: now, Size: size}, nil
	}
	return Entry{}, fmt.Errorf("publish recording: no free name after %d attempts", putAttempts)
}

// List returns every allowed-extension file whose name starts with prefix.
func (s *FileStore) List(_ context.Context, prefix string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
			continue
		}
		if !s.exts.Allowed(extensionOf(name)) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		entries = append(entries, Entry{Filename: name, CreatedAt: info.ModTime(), Size: info.Size()})
	}
	return entries, nil
}

// Delete removes filename from the directory.
func (s *FileStore) Delete(_ context.Context, filename string) error {
	if !safeName(filename) {
		return ErrInvalidFilename
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove recording: %w", err)
	}
	return nil
}

// Open returns a reader for filename. The caller must close it.
func (s *FileStore) Open(_ context.Context, filename string) (io.ReadCloser, Entry, error) {
	if !safeName(filename) {
		return nil, Entry{}, ErrInvalidFilename
	}
	f, err := os.Open(filepath.Join(s.dir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Entry{}, ErrNotFound
		}
		return nil, Entry{}, fmt.Errorf("open recording: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Entry{}, fmt.Errorf("stat recording: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, Entry{}, ErrNotFound
	}
	return f, Entry{Filename: filename, CreatedAt: info.ModTime(), Size: info.Size()}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
