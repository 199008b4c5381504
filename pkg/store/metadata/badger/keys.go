package badger

import (
	"encoding/binary"
	"strconv"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the vault
// tables into logical namespaces. Point lookups are O(1) and every listing is
// a prefix range scan.
//
// Data Type            Prefix   Key Format                         Value Type
// =============================================================================
// Node                 "n:"     n:<nodeID>                         Node (CBOR)
// Sibling index        "c:"     c:<repo>:<parentID|->:<name>       nodeID
// Path index           "x:"     x:<repo>:<path>                    nodeID
// Chunk                "k:"     k:<hash>                           Chunk (CBOR)
// Unreferenced chunk   "z:"     z:<hash>                           (empty)
// Version              "v:"     v:<versionID>                      Version (CBOR)
// File sequence index  "vs:"    vs:<fileID>:<uint64 BE>            versionID
// Fingerprint index    "fp:"    fp:<fingerprint>                   versionID
// Upload session       "s:"     s:<sessionID>                      Session (CBOR)
// Confirmation         "sc:"    sc:<sessionID>:<hash>              Confirmation (CBOR)
//
// <repo> is "<len>:<repositoryID>" with the byte length in decimal.
//
// Notes:
//
//  0. The length prefix keeps repository scans exact: "x:4:acme:" can only
//     match repository "acme", never "acme:secret" or "acme:-".
//  1. The sibling index puts the name last so names may contain ':'.
//     Repository roots use "-" as parent, which is never a valid UUID.
//  2. The path index is what makes move a prefix rewrite: all descendants of
//     /a/b are exactly the keys with prefix "x:<repo>:/a/b/".
//  3. The file sequence index stores the sequence big-endian, so lexical
//     order is numeric order and the latest version is the last key.
//  4. "z:" mirrors RefCount == 0, letting the reclaimer scan only the
//     unreferenced set.
//  5. Confirmations live outside the session row so parallel chunk uploads
//     into one session never write the same key.

const (
	prefixNode         = "n:"
	prefixChild        = "c:"
	prefixPath         = "x:"
	prefixChunk        = "k:"
	prefixUnreferenced = "z:"
	prefixVersion      = "v:"
	prefixFileSeq      = "vs:"
	prefixFingerprint  = "fp:"
	prefixSession      = "s:"
	prefixConfirmation = "sc:"

	rootParent = "-"
)

func keyNode(id string) []byte {
	return []byte(prefixNode + id)
}

// repoSegment returns "<len>:<repositoryID>:".
func repoSegment(repositoryID string) string {
	return strconv.Itoa(len(repositoryID)) + ":" + repositoryID + ":"
}

func keyChildPrefix(repositoryID, parentID string) []byte {
	if parentID == "" {
		parentID = rootParent
	}
	return []byte(prefixChild + repoSegment(repositoryID) + parentID + ":")
}

func keyChild(repositoryID, parentID, name string) []byte {
	return append(keyChildPrefix(repositoryID, parentID), name...)
}

func keyPathPrefix(repositoryID string) []byte {
	return []byte(prefixPath + repoSegment(repositoryID))
}

func keyPath(repositoryID, path string) []byte {
	return append(keyPathPrefix(repositoryID), path...)
}

func keyChunk(hash string) []byte {
	return []byte(prefixChunk + hash)
}

func keyUnreferenced(hash string) []byte {
	return []byte(prefixUnreferenced + hash)
}

func keyVersion(id string) []byte {
	return []byte(prefixVersion + id)
}

func keyFileSeqPrefix(fileID string) []byte {
	return []byte(prefixFileSeq + fileID + ":")
}

func keyFileSeq(fileID string, sequence uint64) []byte {
	return binary.BigEndian.AppendUint64(keyFileSeqPrefix(fileID), sequence)
}

func keyFingerprint(fingerprint string) []byte {
	return []byte(prefixFingerprint + fingerprint)
}

func keySession(id string) []byte {
	return []byte(prefixSession + id)
}

func keyConfirmationPrefix(sessionID string) []byte {
	return []byte(prefixConfirmation + sessionID + ":")
}

func keyConfirmation(sessionID, hash string) []byte {
	return append(keyConfirmationPrefix(sessionID), hash...)
}
