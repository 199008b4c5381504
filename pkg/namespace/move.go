package namespace

import (
	"context"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Move reparents and/or renames a node.
//
// An empty newParentID moves the node to the repository root level; an
// empty newName keeps the current name. The paths of every descendant are
// rewritten by prefix replacement in the same transaction, so readers never
// observe a half-moved subtree.
//
// Errors:
//   - ErrNotFound: node or new parent missing
//   - ErrValidation: invalid name, cycle, non-directory target, or a target
//     in another repository
//   - ErrConflict: a sibling with the target name exists
//   - ErrForbidden: node, or any file below it, has a locked current
//     version. A locked file keeps its path until unlocked.
func (m *Manager) Move(ctx context.Context, nodeID, newParentID, newName string) (*metadata.Node, error) {
	if newName != "" {
		if err := metadata.ValidateName(newName); err != nil {
			return nil, err
		}
	}

	var (
		moved    *metadata.Node
		oldPath  string
		rewrites int
	)
	err := m.meta.Update(ctx, func(tx metadata.Tx) error {
		node, err := tx.GetNode(nodeID)
		if err != nil {
			return err
		}
		oldPath = node.Path

		name := newName
		if name == "" {
			name = node.Name
		}

		parentPath := ""
		if newParentID != "" {
			parent, err := tx.GetNode(newParentID)
			if err != nil {
				return err
			}
			if parent.RepositoryID != node.RepositoryID {
				return metadata.NewValidationError(parent.Path, "cannot move across repositories")
			}
			if !parent.IsDir() {
				return metadata.NewValidationError(parent.Path, "target parent is not a directory")
			}
			if parent.ID == node.ID || metadata.IsDescendantPath(parent.Path, node.Path) {
				return metadata.NewValidationError(parent.Path, "cannot move %s into itself", node.Path)
			}
			parentPath = parent.Path
		}

		if newParentID == node.ParentID && name == node.Name {
			moved = node
			return nil
		}

		newPath := metadata.JoinPath(parentPath, name)
		if existing, err := tx.LookupChild(node.RepositoryID, newParentID, name); err == nil {
			if existing != node.ID {
				return metadata.NewConflictError(newPath, "a node with this name already exists")
			}
		} else if !metadata.IsNotFound(err) {
			return err
		}

		if !node.IsDir() {
			if err := m.content.EnsureMutable(tx, node); err != nil {
				return err
			}
		}

		ids, err := tx.ListDescendantIDs(node.RepositoryID, node.Path)
		if err != nil {
			return err
		}
		descendants := make([]*metadata.Node, 0, len(ids))
		for _, id := range ids {
			d, err := tx.GetNode(id)
			if err != nil {
				return err
			}
			if !d.IsDir() {
				if err := m.content.EnsureMutable(tx, d); err != nil {
					return err
				}
			}
			descendants = append(descendants, d)
		}

		now := time.Now().UTC()
		if node.ParentID != newParentID {
			node.AttachedAt = now
		}
		node.ParentID = newParentID
		node.Name = name
		node.Path = newPath
		node.UpdatedAt = now
		if err := tx.PutNode(node); err != nil {
			return err
		}

		for _, d := range descendants {
			d.Path = metadata.RewritePrefix(d.Path, oldPath, newPath)
			if err := tx.PutNode(d); err != nil {
				return err
			}
		}
		rewrites = len(descendants)
		moved = node
		return nil
	})
	if err != nil {
		return nil, err
	}

	if moved.Path != oldPath {
		logger.Debug("Moved %s -> %s (%d descendants rewritten)", oldPath, moved.Path, rewrites)
	}
	return moved, nil
}
