package namespace

import (
	"context"
	"sort"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Delete removes a node and its whole subtree.
//
// Nodes are removed children first. Every version of every file in the
// subtree is released, dropping one reference per distinct chunk of each
// manifest. If any of those versions is locked the delete fails with
// ErrForbidden and nothing changes.
func (m *Manager) Delete(ctx context.Context, nodeID string) error {
	var (
		path    string
		removed int
	)
	err := m.meta.Update(ctx, func(tx metadata.Tx) error {
		root, err := tx.GetNode(nodeID)
		if err != nil {
			return err
		}
		path = root.Path

		ids, err := tx.ListDescendantIDs(root.RepositoryID, root.Path)
		if err != nil {
			return err
		}

		nodes := make([]*metadata.Node, 0, len(ids)+1)
		nodes = append(nodes, root)
		for _, id := range ids {
			n, err := tx.GetNode(id)
			if err != nil {
				return err
			}
			nodes = append(nodes, n)
		}

		// Post-order: deeper paths first
		sort.SliceStable(nodes, func(i, j int) bool {
			return metadata.Depth(nodes[i].Path) > metadata.Depth(nodes[j].Path)
		})

		for _, n := range nodes {
			if !n.IsDir() {
				if err := m.content.Release(tx, n); err != nil {
					return err
				}
			}
			if err := tx.DeleteNode(n.ID); err != nil {
				return err
			}
		}
		removed = len(nodes)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("Deleted %s (%d nodes)", path, removed)
	return nil
}
