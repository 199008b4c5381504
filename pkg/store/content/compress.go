package content

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm used for a stored object. The value
// is written as the first byte of every object, so these constants are part
// of the on-disk format.
type Compression uint8

const (
	// CompressionNone stores bytes as-is. Also used whenever compression
	// would not shrink the object (already-compressed CAD exports, media).
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression: fast, modest ratio.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level: better ratio for text
	// formats (IFC, STEP, DXF).
	CompressionZstd Compression = 2
)

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a configuration name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

var errIncompressible = errors.New("incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("content: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("content: zstd decoder initialization failed: " + err.Error())
	}
}

// CompressedStore frames every object as
//
//	[1 byte Compression][uvarint original length][payload]
//
// and transparently compresses on Put and decompresses on Get. Objects that
// do not shrink are stored with CompressionNone, so reads never depend on
// the store's current setting.
type CompressedStore struct {
	inner     ContentStore
	algorithm Compression
}

// NewCompressedStore wraps inner, compressing new objects with algorithm.
func NewCompressedStore(inner ContentStore, algorithm Compression) *CompressedStore {
	return &CompressedStore{inner: inner, algorithm: algorithm}
}

func (s *CompressedStore) Put(ctx context.Context, key string, data []byte) error {
	return s.inner.Put(ctx, key, encodeFrame(data, s.algorithm))
}

func (s *CompressedStore) Get(ctx context.Context, key string) ([]byte, error) {
	framed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := decodeFrame(framed)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", key, err)
	}
	return data, nil
}

func (s *CompressedStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.inner.Exists(ctx, key)
}

func (s *CompressedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *CompressedStore) Healthcheck(ctx context.Context) error {
	return s.inner.Healthcheck(ctx)
}

func (s *CompressedStore) Close() error {
	return s.inner.Close()
}

func encodeFrame(data []byte, algorithm Compression) []byte {
	payload, err := compress(data, algorithm)
	if err != nil {
		algorithm, payload = CompressionNone, data
	}

	frame := make([]byte, 0, 1+binary.MaxVarintLen64+len(payload))
	frame = append(frame, byte(algorithm))
	frame = binary.AppendUvarint(frame, uint64(len(data)))
	return append(frame, payload...)
}

func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: frame too short", ErrCorrupted)
	}
	algorithm := Compression(frame[0])
	size, n := binary.Uvarint(frame[1:])
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad length header", ErrCorrupted)
	}
	payload := frame[1+n:]

	switch algorithm {
	case CompressionNone:
		if uint64(len(payload)) != size {
			return nil, fmt.Errorf("%w: size %d does not match header %d", ErrCorrupted, len(payload), size)
		}
		return payload, nil

	case CompressionLZ4:
		out := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, out)
		if err != nil || uint64(read) != size {
			return nil, fmt.Errorf("%w: lz4 decompress: %v", ErrCorrupted, err)
		}
		return out, nil

	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil || uint64(len(out)) != size {
			return nil, fmt.Errorf("%w: zstd decompress: %v", ErrCorrupted, err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrCorrupted, algorithm)
	}
}

func compress(data []byte, algorithm Compression) ([]byte, error) {
	switch algorithm {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		// CompressBlock returns 0 for incompressible input
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return dst[:written], nil

	case CompressionZstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, errIncompressible
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported compression %d", algorithm)
	}
}
