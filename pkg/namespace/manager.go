// Package namespace manages the hierarchical tree of files and directories
// inside each repository.
//
// Nodes reference their parent and their current version by identifier only;
// every link is resolved through the metadata store. A node's Path is
// materialized and kept equal to its parent's path joined with its name, so
// moves rewrite the paths of the whole subtree in the same transaction.
package namespace

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// FileContent guards and releases the version history of file nodes.
//
// It is implemented by the version graph. Keeping it an interface lets the
// namespace enforce lock rules without importing the version package.
type FileContent interface {
	// EnsureMutable fails with ErrForbidden if node's current version is
	// locked.
	EnsureMutable(tx metadata.Tx, node *metadata.Node) error

	// Release deletes every version of node and drops their chunk
	// references. It fails with ErrForbidden if any version is locked.
	Release(tx metadata.Tx, node *metadata.Node) error
}

// Manager implements the namespace operations.
//
// Thread Safety:
// Safe for concurrent use. Every mutation is a single metadata transaction;
// concurrent structural changes to overlapping subtrees surface as
// ErrConflict from stores with optimistic concurrency.
type Manager struct {
	meta    metadata.Store
	content FileContent
}

// New creates a namespace manager. content may be nil when no version
// history exists (tests, tooling); files are then always mutable.
func New(meta metadata.Store, content FileContent) *Manager {
	if content == nil {
		content = noContent{}
	}
	return &Manager{meta: meta, content: content}
}

type noContent struct{}

func (noContent) EnsureMutable(metadata.Tx, *metadata.Node) error { return nil }
func (noContent) Release(metadata.Tx, *metadata.Node) error       { return nil }

// CreateNodeRequest describes a node to create.
type CreateNodeRequest struct {
	RepositoryID string `json:"repositoryId"`

	// ParentID is the containing directory. Empty places the node at the
	// repository root level.
	ParentID string `json:"parentId,omitempty"`

	Name string            `json:"name"`
	Kind metadata.NodeKind `json:"kind"`
}

// CreateNode creates a file or directory under a parent directory.
func (m *Manager) CreateNode(ctx context.Context, req CreateNodeRequest) (*metadata.Node, error) {
	if err := metadata.ValidateRepositoryID(req.RepositoryID); err != nil {
		return nil, err
	}
	if !req.Kind.Valid() {
		return nil, metadata.NewValidationError(req.Name, "unknown node kind %q", req.Kind)
	}
	if err := metadata.ValidateName(req.Name); err != nil {
		return nil, err
	}

	var node *metadata.Node
	err := m.meta.Update(ctx, func(tx metadata.Tx) error {
		parentPath := ""
		if req.ParentID != "" {
			parent, err := loadParent(tx, req.RepositoryID, req.ParentID)
			if err != nil {
				return err
			}
			parentPath = parent.Path
		}

		var err error
		node, err = createChild(tx, req.RepositoryID, req.ParentID, parentPath, req.Name, req.Kind)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Created %s %s (id=%s, repository=%s)", node.Kind, node.Path, node.ID, node.RepositoryID)
	return node, nil
}

// GetNode returns the node with the given id.
func (m *Manager) GetNode(ctx context.Context, nodeID string) (*metadata.Node, error) {
	var node *metadata.Node
	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		var err error
		node, err = tx.GetNode(nodeID)
		return err
	})
	return node, err
}

// ResolvePath returns the node at path within a repository. The path is
// normalized first, so "proj/a.txt" and "/proj/a.txt/" both resolve.
func (m *Manager) ResolvePath(ctx context.Context, repositoryID, path string) (*metadata.Node, error) {
	if err := metadata.ValidateRepositoryID(repositoryID); err != nil {
		return nil, err
	}
	if err := metadata.ValidatePath(path); err != nil {
		return nil, err
	}
	clean := metadata.CleanPath(path)

	var node *metadata.Node
	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		id, err := tx.LookupPath(repositoryID, clean)
		if err != nil {
			return err
		}
		node, err = tx.GetNode(id)
		return err
	})
	return node, err
}

// loadParent fetches a prospective parent for a new child. Missing parents,
// parents in another repository and non-directories are all NotFound: there
// is no directory with that id to create into.
func loadParent(tx metadata.Tx, repositoryID, parentID string) (*metadata.Node, error) {
	parent, err := tx.GetNode(parentID)
	if err != nil {
		return nil, err
	}
	if parent.RepositoryID != repositoryID {
		return nil, metadata.NewNotFoundError(parentID, "parent not found in repository %s", repositoryID)
	}
	if !parent.IsDir() {
		return nil, metadata.NewNotFoundError(parent.Path, "parent is not a directory")
	}
	return parent, nil
}

// createChild inserts a new node after checking for a sibling collision.
func createChild(tx metadata.Tx, repositoryID, parentID, parentPath, name string, kind metadata.NodeKind) (*metadata.Node, error) {
	path := metadata.JoinPath(parentPath, name)

	_, err := tx.LookupChild(repositoryID, parentID, name)
	if err == nil {
		return nil, metadata.NewConflictError(path, "a node with this name already exists")
	}
	if !metadata.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	node := &metadata.Node{
		ID:           uuid.New().String(),
		RepositoryID: repositoryID,
		ParentID:     parentID,
		Name:         name,
		Path:         path,
		Kind:         kind,
		CreatedAt:    now,
		UpdatedAt:    now,
		AttachedAt:   now,
	}
	if err := tx.PutNode(node); err != nil {
		return nil, err
	}
	return node, nil
}
