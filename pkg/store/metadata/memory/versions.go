package memory

import (
	"slices"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func (tx *memoryTx) GetVersion(id string) (*metadata.Version, error) {
	version, ok := tx.store.versions[id]
	if !ok {
		return nil, metadata.NewNotFoundError(id, "version not found")
	}
	return version.Clone(), nil
}

func (tx *memoryTx) PutVersion(version *metadata.Version) error {
	if err := tx.writable(); err != nil {
		return err
	}

	s := tx.store
	if old, ok := s.versions[version.ID]; ok && old.Fingerprint != version.Fingerprint {
		deleteKey(tx, s.fingerprints, old.Fingerprint)
	}

	setKey(tx, s.versions, version.ID, version.Clone())

	bySeq, ok := s.fileVersions[version.FileID]
	if !ok {
		bySeq = make(map[uint64]string)
		setKey(tx, s.fileVersions, version.FileID, bySeq)
	}
	setKey(tx, bySeq, version.Sequence, version.ID)
	setKey(tx, s.fingerprints, version.Fingerprint, version.ID)
	return nil
}

func (tx *memoryTx) DeleteVersion(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}

	s := tx.store
	version, ok := s.versions[id]
	if !ok {
		return metadata.NewNotFoundError(id, "version not found")
	}
	if bySeq, ok := s.fileVersions[version.FileID]; ok {
		deleteKey(tx, bySeq, version.Sequence)
	}
	if s.fingerprints[version.Fingerprint] == id {
		deleteKey(tx, s.fingerprints, version.Fingerprint)
	}
	deleteKey(tx, s.versions, id)
	return nil
}

func (tx *memoryTx) LookupFingerprint(fingerprint string) (string, error) {
	id, ok := tx.store.fingerprints[fingerprint]
	if !ok {
		return "", metadata.NewNotFoundError(fingerprint, "fingerprint not found")
	}
	return id, nil
}

func (tx *memoryTx) ListVersionIDs(fileID string) ([]string, error) {
	bySeq := tx.store.fileVersions[fileID]
	seqs := make([]uint64, 0, len(bySeq))
	for seq := range bySeq {
		seqs = append(seqs, seq)
	}
	slices.Sort(seqs)

	ids := make([]string, len(seqs))
	for i, seq := range seqs {
		ids[i] = bySeq[seq]
	}
	return ids, nil
}

func (tx *memoryTx) LatestSequence(fileID string) (uint64, error) {
	var latest uint64
	for seq := range tx.store.fileVersions[fileID] {
		latest = max(latest, seq)
	}
	return latest, nil
}
