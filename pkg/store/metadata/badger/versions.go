package badger

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func (tx *badgerTx) GetVersion(id string) (*metadata.Version, error) {
	var version metadata.Version
	if err := tx.getRow(keyVersion(id), &version, metadata.NewNotFoundError(id, "version not found")); err != nil {
		return nil, err
	}
	return &version, nil
}

func (tx *badgerTx) PutVersion(version *metadata.Version) error {
	old, err := tx.GetVersion(version.ID)
	switch {
	case err == nil:
		if old.Fingerprint != version.Fingerprint {
			if err := tx.txn.Delete(keyFingerprint(old.Fingerprint)); err != nil {
				return err
			}
		}
	case !metadata.IsNotFound(err):
		return err
	}

	if err := tx.putRow(keyVersion(version.ID), version); err != nil {
		return err
	}
	if err := tx.txn.Set(keyFileSeq(version.FileID, version.Sequence), []byte(version.ID)); err != nil {
		return err
	}
	return tx.txn.Set(keyFingerprint(version.Fingerprint), []byte(version.ID))
}

func (tx *badgerTx) DeleteVersion(id string) error {
	version, err := tx.GetVersion(id)
	if err != nil {
		return err
	}
	if err := tx.txn.Delete(keyFileSeq(version.FileID, version.Sequence)); err != nil {
		return err
	}

	owner, err := tx.getString(keyFingerprint(version.Fingerprint), nil)
	if err != nil {
		return err
	}
	if owner == id {
		if err := tx.txn.Delete(keyFingerprint(version.Fingerprint)); err != nil {
			return err
		}
	}
	return tx.txn.Delete(keyVersion(id))
}

func (tx *badgerTx) LookupFingerprint(fingerprint string) (string, error) {
	return tx.getString(keyFingerprint(fingerprint), metadata.NewNotFoundError(fingerprint, "fingerprint not found"))
}

func (tx *badgerTx) ListVersionIDs(fileID string) ([]string, error) {
	return tx.scanStrings(keyFileSeqPrefix(fileID))
}

func (tx *badgerTx) LatestSequence(fileID string) (uint64, error) {
	prefix := keyFileSeqPrefix(fileID)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	opts.PrefetchValues = false
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	// In reverse mode Seek lands on the greatest key <= the seek key, so
	// seek past every possible sequence suffix.
	seek := append(append([]byte{}, prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	it.Seek(seek)
	if !it.ValidForPrefix(prefix) {
		return 0, nil
	}

	key := it.Item().Key()
	return binary.BigEndian.Uint64(key[len(prefix):]), nil
}
