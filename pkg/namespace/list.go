package namespace

import (
	"context"
	"iter"
	"sort"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Order selects the ordering of ListChildren.
type Order string

const (
	// OrderInsertion lists children in the order they were attached to the
	// parent, ties broken by name. This is the default.
	OrderInsertion Order = "insertion"

	// OrderByName lists children by name.
	OrderByName Order = "name"
)

// ParseOrder parses an order name. The empty string means OrderInsertion.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderInsertion:
		return OrderInsertion, nil
	case OrderByName:
		return OrderByName, nil
	}
	return "", metadata.NewValidationError(s, "unknown order")
}

// ListOptions controls ListChildren.
type ListOptions struct {
	Order Order

	// RepositoryID is required when listing the root level (empty parent).
	RepositoryID string
}

// ListChildren lists the immediate children of a directory.
//
// The sequence is lazy: nothing is read until it is ranged over, and every
// range takes a fresh snapshot, so the same sequence can be iterated again
// to observe later changes. Errors are yielded as the second value with a
// nil node, after which iteration stops.
func (m *Manager) ListChildren(ctx context.Context, parentID string, opts ListOptions) iter.Seq2[*metadata.Node, error] {
	return func(yield func(*metadata.Node, error) bool) {
		children, err := m.loadChildren(ctx, parentID, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, child := range children {
			if !yield(child, nil) {
				return
			}
		}
	}
}

func (m *Manager) loadChildren(ctx context.Context, parentID string, opts ListOptions) ([]*metadata.Node, error) {
	var children []*metadata.Node
	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		repositoryID := opts.RepositoryID
		if parentID != "" {
			parent, err := tx.GetNode(parentID)
			if err != nil {
				return err
			}
			repositoryID = parent.RepositoryID
		} else if err := metadata.ValidateRepositoryID(repositoryID); err != nil {
			return err
		}

		ids, err := tx.ListChildIDs(repositoryID, parentID)
		if err != nil {
			return err
		}
		children, err = loadNodes(tx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	if opts.Order == OrderByName {
		sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	} else {
		sort.Slice(children, func(i, j int) bool {
			a, b := children[i], children[j]
			if !a.AttachedAt.Equal(b.AttachedAt) {
				return a.AttachedAt.Before(b.AttachedAt)
			}
			return a.Name < b.Name
		})
	}
	return children, nil
}

// ListRepository returns every node of a repository ordered by path.
func (m *Manager) ListRepository(ctx context.Context, repositoryID string) ([]*metadata.Node, error) {
	if err := metadata.ValidateRepositoryID(repositoryID); err != nil {
		return nil, err
	}

	var nodes []*metadata.Node
	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		ids, err := tx.ListRepositoryNodeIDs(repositoryID)
		if err != nil {
			return err
		}
		nodes, err = loadNodes(tx, ids)
		return err
	})
	return nodes, err
}

func loadNodes(tx metadata.Tx, ids []string) ([]*metadata.Node, error) {
	nodes := make([]*metadata.Node, 0, len(ids))
	for _, id := range ids {
		n, err := tx.GetNode(id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
