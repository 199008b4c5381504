package namespace

import (
	"time"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Transaction-scoped helpers used by the version graph and the upload
// finalizer, which need to touch file nodes inside their own transaction.

// LoadFile returns the file node fileID. Directories are rejected.
func LoadFile(tx metadata.Tx, fileID string) (*metadata.Node, error) {
	node, err := tx.GetNode(fileID)
	if err != nil {
		return nil, err
	}
	if node.IsDir() {
		return nil, metadata.NewValidationError(node.Path, "not a file")
	}
	return node, nil
}

// SetCurrentVersion advances node's current-version pointer.
func SetCurrentVersion(tx metadata.Tx, node *metadata.Node, versionID string) error {
	node.CurrentVersionID = versionID
	node.UpdatedAt = time.Now().UTC()
	return tx.PutNode(node)
}

// EnsureFile returns the file node at path, creating it and any missing
// intermediate directories. created reports whether the file node is new.
// An existing directory at path, or an existing file where a directory is
// needed, is a validation error.
func EnsureFile(tx metadata.Tx, repositoryID, path string) (node *metadata.Node, created bool, err error) {
	if err := metadata.ValidatePath(path); err != nil {
		return nil, false, err
	}
	segments := metadata.SplitPath(path)

	parentID, parentPath := "", ""
	for i, name := range segments {
		last := i == len(segments)-1

		id, err := tx.LookupChild(repositoryID, parentID, name)
		switch {
		case err == nil:
			existing, err := tx.GetNode(id)
			if err != nil {
				return nil, false, err
			}
			if last {
				if existing.IsDir() {
					return nil, false, metadata.NewValidationError(existing.Path, "path is a directory")
				}
				return existing, false, nil
			}
			if !existing.IsDir() {
				return nil, false, metadata.NewValidationError(existing.Path, "path component is a file")
			}
			parentID, parentPath = existing.ID, existing.Path

		case metadata.IsNotFound(err):
			kind := metadata.KindDirectory
			if last {
				kind = metadata.KindFile
			}
			child, err := createChild(tx, repositoryID, parentID, parentPath, name, kind)
			if err != nil {
				return nil, false, err
			}
			if last {
				return child, true, nil
			}
			parentID, parentPath = child.ID, child.Path

		default:
			return nil, false, err
		}
	}
	// unreachable: ValidatePath guarantees at least one segment
	return nil, false, metadata.NewValidationError(path, "empty path")
}
