package memory

import (
	"sort"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func (tx *memoryTx) GetNode(id string) (*metadata.Node, error) {
	node, ok := tx.store.nodes[id]
	if !ok {
		return nil, metadata.NewNotFoundError(id, "node not found")
	}
	return node.Clone(), nil
}

func (tx *memoryTx) PutNode(node *metadata.Node) error {
	if err := tx.writable(); err != nil {
		return err
	}

	s := tx.store
	if old, ok := s.nodes[node.ID]; ok {
		tx.unindexNode(old)
	}

	setKey(tx, s.nodes, node.ID, node.Clone())

	ck := childKey{repositoryID: node.RepositoryID, parentID: node.ParentID}
	siblings, ok := s.children[ck]
	if !ok {
		siblings = make(map[string]string)
		setKey(tx, s.children, ck, siblings)
	}
	setKey(tx, siblings, node.Name, node.ID)

	repoPaths, ok := s.paths[node.RepositoryID]
	if !ok {
		repoPaths = make(map[string]string)
		setKey(tx, s.paths, node.RepositoryID, repoPaths)
	}
	setKey(tx, repoPaths, node.Path, node.ID)

	return nil
}

func (tx *memoryTx) DeleteNode(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}

	node, ok := tx.store.nodes[id]
	if !ok {
		return metadata.NewNotFoundError(id, "node not found")
	}
	tx.unindexNode(node)
	deleteKey(tx, tx.store.nodes, id)
	return nil
}

// unindexNode drops the sibling and path index entries that still point at
// node.
func (tx *memoryTx) unindexNode(node *metadata.Node) {
	s := tx.store
	ck := childKey{repositoryID: node.RepositoryID, parentID: node.ParentID}
	if siblings, ok := s.children[ck]; ok && siblings[node.Name] == node.ID {
		deleteKey(tx, siblings, node.Name)
	}
	if repoPaths, ok := s.paths[node.RepositoryID]; ok && repoPaths[node.Path] == node.ID {
		deleteKey(tx, repoPaths, node.Path)
	}
}

func (tx *memoryTx) LookupChild(repositoryID, parentID, name string) (string, error) {
	id, ok := tx.store.children[childKey{repositoryID: repositoryID, parentID: parentID}][name]
	if !ok {
		return "", metadata.NewNotFoundError(name, "no such child")
	}
	return id, nil
}

func (tx *memoryTx) LookupPath(repositoryID, path string) (string, error) {
	id, ok := tx.store.paths[repositoryID][path]
	if !ok {
		return "", metadata.NewNotFoundError(path, "path not found")
	}
	return id, nil
}

func (tx *memoryTx) ListChildIDs(repositoryID, parentID string) ([]string, error) {
	siblings := tx.store.children[childKey{repositoryID: repositoryID, parentID: parentID}]
	ids := make([]string, 0, len(siblings))
	for _, id := range siblings {
		ids = append(ids, id)
	}
	return ids, nil
}

func (tx *memoryTx) ListDescendantIDs(repositoryID, path string) ([]string, error) {
	var ids []string
	for p, id := range tx.store.paths[repositoryID] {
		if metadata.IsDescendantPath(p, path) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (tx *memoryTx) ListRepositoryNodeIDs(repositoryID string) ([]string, error) {
	repoPaths := tx.store.paths[repositoryID]
	paths := make([]string, 0, len(repoPaths))
	for p := range repoPaths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	ids := make([]string, len(paths))
	for i, p := range paths {
		ids[i] = repoPaths[p]
	}
	return ids, nil
}
