package estimator

import (
	"bytes"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var ErrUnknownCodec = errors.New("unknown estimator codec")

// Codec reports how many bytes src occupies after compression. It stands in
// for the filesystem's own algorithm; its output is never written anywhere.
type Codec interface {
	Name() string
	CompressedLen(src []byte) (int, error)
}

const DefaultCodec = "lz4"

// CodecByName returns one of "lz4", "zstd", "snappy" or "brotli".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "lz4":
		return lz4Codec{}, nil
	case "zstd":
		return &zstdCodec{}, nil
	case "snappy":
		return snappyCodec{}, nil
	case "brotli":
		return brotliCodec{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "%q", name)
	}
}

func Codecs() []string {
	return []string{"lz4", "zstd", "snappy", "brotli"}
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) CompressedLen(src []byte) (int, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return 0, errors.Wrap(err, "lz4 block")
	}
	// lz4 reports 0 for incompressible input
	if n == 0 || n > len(src) {
		return len(src), nil
	}
	return n, nil
}

type zstdCodec struct {
	once sync.Once
	enc  *zstd.Encoder
	err  error
}

func (*zstdCodec) Name() string { return "zstd" }

func (c *zstdCodec) CompressedLen(src []byte) (int, error) {
	c.once.Do(func() {
		c.enc, c.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	})
	if c.err != nil {
		return 0, errors.Wrap(c.err, "zstd encoder")
	}
	return len(c.enc.EncodeAll(src, nil)), nil
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) CompressedLen(src []byte) (int, error) {
	return len(snappy.Encode(nil, src)), nil
}

type brotliCodec struct{}

func (brotliCodec) Name() string { return "brotli" }

func (brotliCodec) CompressedLen(src []byte) (int, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.BestSpeed)
	if _, err := w.Write(src); err != nil {
		return 0, errors.Wrap(err, "brotli write")
	}
	if err := w.Close(); err != nil {
		return 0, errors.Wrap(err, "brotli close")
	}
	return buf.Len(), nil
}
