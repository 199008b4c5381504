package badger

import (
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func (tx *badgerTx) GetNode(id string) (*metadata.Node, error) {
	var node metadata.Node
	if err := tx.getRow(keyNode(id), &node, metadata.NewNotFoundError(id, "node not found")); err != nil {
		return nil, err
	}
	return &node, nil
}

func (tx *badgerTx) PutNode(node *metadata.Node) error {
	old, err := tx.GetNode(node.ID)
	switch {
	case err == nil:
		if err := tx.unindexNode(old); err != nil {
			return err
		}
	case !metadata.IsNotFound(err):
		return err
	}

	if err := tx.putRow(keyNode(node.ID), node); err != nil {
		return err
	}
	if err := tx.txn.Set(keyChild(node.RepositoryID, node.ParentID, node.Name), []byte(node.ID)); err != nil {
		return err
	}
	return tx.txn.Set(keyPath(node.RepositoryID, node.Path), []byte(node.ID))
}

func (tx *badgerTx) DeleteNode(id string) error {
	node, err := tx.GetNode(id)
	if err != nil {
		return err
	}
	if err := tx.unindexNode(node); err != nil {
		return err
	}
	return tx.txn.Delete(keyNode(id))
}

// unindexNode removes the index entries of node that still point at it. A
// sibling or path key may already have been reassigned to another node
// earlier in the same transaction, so ownership is checked first.
func (tx *badgerTx) unindexNode(node *metadata.Node) error {
	for _, key := range [][]byte{
		keyChild(node.RepositoryID, node.ParentID, node.Name),
		keyPath(node.RepositoryID, node.Path),
	} {
		owner, err := tx.getString(key, nil)
		if err != nil {
			return err
		}
		if owner != node.ID {
			continue
		}
		if err := tx.txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (tx *badgerTx) LookupChild(repositoryID, parentID, name string) (string, error) {
	return tx.getString(keyChild(repositoryID, parentID, name), metadata.NewNotFoundError(name, "no such child"))
}

func (tx *badgerTx) LookupPath(repositoryID, path string) (string, error) {
	return tx.getString(keyPath(repositoryID, path), metadata.NewNotFoundError(path, "path not found"))
}

func (tx *badgerTx) ListChildIDs(repositoryID, parentID string) ([]string, error) {
	return tx.scanStrings(keyChildPrefix(repositoryID, parentID))
}

func (tx *badgerTx) ListDescendantIDs(repositoryID, path string) ([]string, error) {
	return tx.scanStrings(keyPath(repositoryID, path+metadata.Separator))
}

func (tx *badgerTx) ListRepositoryNodeIDs(repositoryID string) ([]string, error) {
	return tx.scanStrings(keyPathPrefix(repositoryID))
}
