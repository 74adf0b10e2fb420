package recording

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ownerSeparator = "_"
	stampLayout    = "20060102_150405"
)

// Extensions is the set of accepted audio extensions, lower-case without dot.
type Extensions map[string]struct{}

// NewExtensions builds an Extensions set from a list such as "wav" or ".WAV".
func NewExtensions(list []string) Extensions {
	set := make(Extensions, len(list))
	for _, ext := range list {
		ext = normalizeExt(ext)
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// Allowed reports whether ext (any case, with or without dot) is accepted.
func (e Extensions) Allowed(ext string) bool {
	_, ok := e[normalizeExt(ext)]
	return ok
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// extensionOf returns the normalized extension of name, or "".
func extensionOf(name string) string {
	return normalizeExt(filepath.Ext(name))
}

// storageName builds {uid}_{yyyyMMdd_HHmmss}_{8hex}.{ext}.
func storageName(ownerUID string, now time.Time, ext string) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s%s%s_%s.%s", ownerUID, ownerSeparator, now.UTC().Format(stampLayout), suffix, normalizeExt(ext))
}

// ownerPrefix is the namespace every filename of uid starts with.
func ownerPrefix(uid string) string {
	return uid + ownerSeparator
}

// ownerOf extracts the owning uid from a name produced by storageName.
// ok is false when name does not follow that template.
func ownerOf(name string) (string, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(base, ownerSeparator)
	if len(parts) < 4 {
		return "", false
	}
	n := len(parts)
	date, clock, suffix := parts[n-3], parts[n-2], parts[n-1]
	if _, err := time.Parse(stampLayout, date+"_"+clock); err != nil {
		return "", false
	}
	if len(suffix) != 8 || !isHex(suffix) {
		return "", false
	}
	owner := strings.Join(parts[:n-3], ownerSeparator)
	if owner == "" {
		return "", false
	}
	return owner, true
}

// ownedBy is the single ownership rule shared by every operation. Names that
// follow the storage template must name uid exactly; anything else falls back
// to the plain prefix check.
func ownedBy(name, uid string) bool {
	if uid == "" || !strings.HasPrefix(name, ownerPrefix(uid)) {
		return false
	}
	if owner, ok := ownerOf(name); ok {
		return owner == uid
	}
	return true
}

// safeName rejects anything that could escape the recordings directory.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return filepath.Base(name) == name
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
