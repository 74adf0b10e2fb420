package recording

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const (
	overlayFile     = "metadata.json"
	lockRetryDelay  = 20 * time.Millisecond
	overlayFileMode = 0o640
)

// Overlay stores user-chosen display names keyed by storage filename.
type Overlay interface {
	Load(ctx context.Context) (map[string]Meta, error)
	Set(ctx context.Context, filename, customName string) error
	Remove(ctx context.Context, filename string) error
}

// JSONOverlay keeps the mapping in a single metadata.json document.
// Read-modify-write cycles hold an in-process mutex and an advisory file
// lock, so processes sharing the directory do not lose each other's updates.
type JSONOverlay struct {
	path    string
	mu      sync.Mutex
	lock    *flock.Flock
	log     *zap.Logger
	nowFunc func() time.Time
}

// NewJSONOverlay returns an overlay stored as dir/metadata.json.
func NewJSONOverlay(dir string, log *zap.Logger) *JSONOverlay {
	if log == nil {
		log = zap.NewNop()
	}
	path := filepath.Join(dir, overlayFile)
	return &JSONOverlay{
		path:    path,
		lock:    flock.New(path + ".lock"),
		log:     log,
		nowFunc: time.Now,
	}
}

// Path returns the location of the metadata document.
func (o *JSONOverlay) Path() string {
	return o.path
}

// Load reads the whole mapping. A missing or unreadable document is an
// empty mapping.
func (o *JSONOverlay) Load(ctx context.Context) (map[string]Meta, error) {
	var out map[string]Meta
	err := o.withLock(ctx, func() error {
		out = o.read()
		return nil
	})
	return out, err
}

// Set records customName for filename, stamping updatedAt.
func (o *JSONOverlay) Set(ctx context.Context, filename, customName string) error {
	return o.withLock(ctx, func() error {
		doc := o.read()
		doc[filename] = Meta{CustomName: customName, UpdatedAt: o.nowFunc().UTC()}
		return o.write(doc)
	})
}

// Remove drops filename from the mapping. Absent keys are ignored.
func (o *JSONOverlay) Remove(ctx context.Context, filename string) error {
	return o.withLock(ctx, func() error {
		doc := o.read()
		if _, ok := doc[filename]; !ok {
			return nil
		}
		delete(doc, filename)
		return o.write(doc)
	})
}

func (o *JSONOverlay) withLock(ctx context.Context, fn func() error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ok, err := o.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock metadata: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock metadata: %s busy", o.lock.Path())
	}
	defer func() {
		if err := o.lock.Unlock(); err != nil {
			o.log.Warn("failed to release metadata lock", zap.Error(err))
		}
	}()
	return fn()
}

func (o *JSONOverlay) read() map[string]Meta {
	doc := make(map[string]Meta)
	data, err := os.ReadFile(o.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			o.log.Warn("metadata unreadable, treating as empty", zap.String("path", o.path), zap.Error(err))
		}
		return doc
	}
	if len(data) == 0 {
		return doc
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		o.log.Warn("metadata corrupt, treating as empty", zap.String("path", o.path), zap.Error(err))
		return make(map[string]Meta)
	}
	return doc
}

func (o *JSONOverlay) write(doc map[string]Meta) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(o.path), ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("create metadata temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Chmod(overlayFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmpPath, o.path); err != nil {
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}
