package badger

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Serialization Strategy
// ======================
//
// Rows are CBOR encoded with integer struct keys (see the cbor tags in
// pkg/store/metadata/types.go). Compared to JSON this keeps manifests with
// thousands of entries compact, and integer keys let fields be renamed
// without rewriting the database.
//
// Times are encoded as tagged RFC 3339 strings with nanoseconds. The default
// CBOR time encoding is whole Unix seconds, which would lose the ordering of
// nodes attached within the same second.

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("badger: invalid cbor encoding options: %v", err))
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("badger: invalid cbor decoding options: %v", err))
	}
}

func encode(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return data, nil
}

func decode(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}
