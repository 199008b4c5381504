package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Separator is the single canonical path separator.
const Separator = "/"

// MaxNameLength is the longest node name accepted, in bytes.
const MaxNameLength = 255

// JoinPath derives a child path from its parent's path and its own name.
// An empty parentPath denotes the repository root level.
func JoinPath(parentPath, name string) string {
	if parentPath == "" || parentPath == Separator {
		return Separator + name
	}
	return parentPath + Separator + name
}

// CleanPath normalizes a caller-supplied path: it forces a leading separator,
// drops a trailing one and collapses repeated separators. "." and ".."
// segments are not interpreted; ValidatePath rejects them.
func CleanPath(p string) string {
	parts := SplitPath(p)
	if len(parts) == 0 {
		return Separator
	}
	return Separator + strings.Join(parts, Separator)
}

// SplitPath returns the non-empty segments of p.
func SplitPath(p string) []string {
	raw := strings.Split(p, Separator)
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Depth returns the number of segments in a canonical path.
func Depth(p string) int {
	return len(SplitPath(p))
}

// IsDescendantPath reports whether p lies strictly below ancestor.
func IsDescendantPath(p, ancestor string) bool {
	return strings.HasPrefix(p, ancestor+Separator)
}

// RewritePrefix replaces the oldPrefix of p with newPrefix. p must be
// oldPrefix itself or one of its descendants.
func RewritePrefix(p, oldPrefix, newPrefix string) string {
	return newPrefix + strings.TrimPrefix(p, oldPrefix)
}

// ValidateName checks a single node name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return NewValidationError(name, "name must not be empty")
	case name == "." || name == "..":
		return NewValidationError(name, "reserved name")
	case strings.Contains(name, Separator):
		return NewValidationError(name, "name must not contain %q", Separator)
	case len(name) > MaxNameLength:
		return NewValidationError(name, "name longer than %d bytes", MaxNameLength)
	}
	return nil
}

// MaxRepositoryIDLength is the longest repository id accepted, in bytes.
const MaxRepositoryIDLength = 128

// ValidateRepositoryID checks a repository id. Ids are opaque to the vault
// but must be printable and free of ':' and '/', which the stores use as
// key separators.
func ValidateRepositoryID(id string) error {
	switch {
	case id == "":
		return NewValidationError(id, "repository id is required")
	case len(id) > MaxRepositoryIDLength:
		return NewValidationError(id, "repository id longer than %d bytes", MaxRepositoryIDLength)
	case strings.ContainsAny(id, ":"+Separator):
		return NewValidationError(id, "repository id must not contain ':' or %q", Separator)
	}
	for _, r := range id {
		if r <= ' ' || r == 0x7f {
			return NewValidationError(id, "repository id must not contain spaces or control characters")
		}
	}
	return nil
}

// ValidatePath checks that p has at least one segment and every segment is a
// valid name.
func ValidatePath(p string) error {
	parts := SplitPath(p)
	if len(parts) == 0 {
		return NewValidationError(p, "path must not be empty")
	}
	for _, part := range parts {
		if err := ValidateName(part); err != nil {
			return NewValidationError(p, "invalid path segment %q", part)
		}
	}
	return nil
}

// ============================================================================
// Chunk hashes
// ============================================================================

// HashLength is the hex length of a SHA-256 digest.
const HashLength = sha256.Size * 2

// HashBytes returns the canonical chunk hash of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateHash checks that hash is a lowercase hex SHA-256 digest.
func ValidateHash(hash string) error {
	if len(hash) != HashLength {
		return NewValidationError(hash, "chunk hash must be %d hex characters", HashLength)
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return NewValidationError(hash, "chunk hash must be lowercase hex")
		}
	}
	return nil
}

// ObjectKey derives the backend storage key of a chunk:
// objects/<h[0:2]>/<h[2:4]>/<h>.
func ObjectKey(hash string) string {
	return "objects/" + hash[0:2] + "/" + hash[2:4] + "/" + hash
}
