package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/abduss/practiceroom/internal/auth"
	"github.com/abduss/practiceroom/internal/metrics"
	"go.uber.org/zap"
)

const (
	// MaxNameLength bounds a custom display name, counted in runes after trimming.
	MaxNameLength = 100
	// URLPrefix is where recordings are served from.
	URLPrefix = "/recordings/"
)

// Service implements the per-user recording locker on top of a BlobStore and
// an Overlay.
type Service struct {
	store    BlobStore
	overlay  Overlay
	exts     Extensions
	maxBytes int64
	log      *zap.Logger
}

// NewService constructs a recording service. maxBytes <= 0 disables the size check.
func NewService(store BlobStore, overlay Overlay, exts Extensions, maxBytes int64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		overlay:  overlay,
		exts:     exts,
		maxBytes: maxBytes,
		log:      log,
	}
}

// MaxBytes returns the upload limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores r as a new recording for identity. size is the payload length
// as declared by the transport, or -1 when unknown.
func (s *Service) Upload(ctx context.Context, identity auth.Identity, r io.Reader, size int64, declaredFilename string) (ref Ref, err error) {
	defer func() { metrics.ObserveRecordingOp("upload", err) }()

	if identity.UID == "" {
		return Ref{}, ErrUnauthorized
	}
	if r == nil || size == 0 {
		return Ref{}, ErrEmptyPayload
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return Ref{}, ErrTooLarge
	}
	ext := extensionOf(declaredFilename)
	if !s.exts.Allowed(ext) {
		return Ref{}, ErrUnsupportedFormat
	}
	if !safeName(ownerPrefix(identity.UID)) {
		return Ref{}, ErrInvalidFilename
	}

	entry, err := s.store.Put(ctx, identity.UID, r, size, ext)
	if err != nil {
		return Ref{}, err
	}
	if entry.Size == 0 {
		// the transport under-reported an empty body
		if derr := s.store.Delete(ctx, entry.Filename); derr != nil {
			s.log.Warn("failed to discard empty recording", zap.String("filename", entry.Filename), zap.Error(derr))
		}
		return Ref{}, ErrEmptyPayload
	}

	metrics.ObserveUploadBytes(entry.Size)
	s.log.Info("recording stored",
		zap.String("uid", identity.UID),
		zap.String("filename", entry.Filename),
		zap.Int64("bytes", entry.Size),
	)
	return Ref{Filename: entry.Filename, URL: URLPrefix + entry.Filename}, nil
}

// List returns the caller's recordings, newest first.
func (s *Service) List(ctx context.Context, identity auth.Identity) (views []View, err error) {
	defer func() { metrics.ObserveRecordingOp("list", err) }()

	if identity.UID == "" {
		return nil, ErrUnauthorized
	}

	entries, err := s.store.List(ctx, ownerPrefix(identity.UID))
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	meta, lerr := s.overlay.Load(ctx)
	if lerr != nil {
		// names are advisory; list the blobs without them
		s.log.Warn("failed to load recording metadata", zap.Error(lerr))
		meta = nil
	}

	owned := entries[:0]
	for _, e := range entries {
		if ownedBy(e.Filename, identity.UID) {
			owned = append(owned, e)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].Filename > owned[j].Filename
	})

	views = make([]View, 0, len(owned))
	for _, e := range owned {
		view := View{
			Filename:  e.Filename,
			URL:       URLPrefix + e.Filename,
			Timestamp: float64(e.CreatedAt.UnixNano()) / 1e9,
		}
		if m, ok := meta[e.Filename]; ok {
			name := m.CustomName
			view.CustomName = &name
		}
		views = append(views, view)
	}
	return views, nil
}

// Rename sets the display name of filename and returns the stored name.
// The blob itself is not consulted.
func (s *Service) Rename(ctx context.Context, identity auth.Identity, filename, newName string) (stored string, err error) {
	defer func() { metrics.ObserveRecordingOp("rename", err) }()

	if err := s.checkOwnership(identity, filename); err != nil {
		return "", err
	}
	name := strings.TrimSpace(newName)
	if name == "" {
		return "", &ArgumentError{Msg: "Name cannot be empty"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", &ArgumentError{Msg: fmt.Sprintf("Name must be at most %d characters", MaxNameLength)}
	}

	if err := s.overlay.Set(ctx, filename, name); err != nil {
		return "", fmt.Errorf("save name: %w", err)
	}
	return name, nil
}

// Delete removes filename. Once the blob is gone the call succeeds even if
// the overlay entry cannot be cleared.
func (s *Service) Delete(ctx context.Context, identity auth.Identity, filename string) (err error) {
	defer func() { metrics.ObserveRecordingOp("delete", err) }()

	if err := s.checkOwnership(identity, filename); err != nil {
		return err
	}
	if !safeName(filename) {
		return ErrInvalidFilename
	}
	if err := s.store.Delete(ctx, filename); err != nil {
		return err
	}

	if err := s.overlay.Remove(ctx, filename); err != nil {
		s.log.Warn("failed to clear recording metadata", zap.String("filename", filename), zap.Error(err))
	}
	s.log.Info("recording deleted", zap.String("uid", identity.UID), zap.String("filename", filename))
	return nil
}

// Open streams one of the caller's recordings.
func (s *Service) Open(ctx context.Context, identity auth.Identity, filename string) (rc io.ReadCloser, entry Entry, err error) {
	defer func() { metrics.ObserveRecordingOp("download", err) }()

	if err := s.checkOwnership(identity, filename); err != nil {
		return nil, Entry{}, err
	}
	if !safeName(filename) {
		return nil, Entry{}, ErrInvalidFilename
	}
	return s.store.Open(ctx, filename)
}

// DownloadURL returns a direct link to one of the caller's recordings when
// the store supports it, or "" when the bytes must be streamed via Open.
func (s *Service) DownloadURL(ctx context.Context, identity auth.Identity, filename string) (link string, err error) {
	signer, ok := s.store.(URLSigner)
	if !ok {
		return "", nil
	}
	defer func() { metrics.ObserveRecordingOp("presign", err) }()

	if err := s.checkOwnership(identity, filename); err != nil {
		return "", err
	}
	if !safeName(filename) {
		return "", ErrInvalidFilename
	}
	return signer.SignedURL(ctx, filename)
}

// checkOwnership is the one ownership rule used by rename, delete and download.
func (s *Service) checkOwnership(identity auth.Identity, filename string) error {
	if identity.UID == "" {
		return ErrUnauthorized
	}
	if strings.TrimSpace(filename) == "" {
		return &ArgumentError{Msg: "Missing filename"}
	}
	if !ownedBy(filename, identity.UID) {
		return ErrForbidden
	}
	return nil
}

// IsArgumentError returns the user-facing argument error wrapped in err.
func IsArgumentError(err error) (*ArgumentError, bool) {
	var ae *ArgumentError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
