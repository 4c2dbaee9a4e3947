// Package estimator predicts how well a file would compress by running a fast
// general-purpose codec over the whole file or a few sampled blocks.
package estimator

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

const (
	DefaultWholeFileCap = 2 << 20
	DefaultSampleBlocks = 3
	DefaultBlockSize    = 256 << 10

	// NoGain is the ratio reported when nothing could be measured.
	NoGain = 1.0
)

type Config struct {
	// Files at or below this size are compressed in full.
	WholeFileCap int64
	// Number of blocks sampled from larger files: 1 = start, 2 = start+end,
	// 3 = start+middle+end.
	SampleBlocks int
	BlockSize    int
	Codec        string
}

func DefaultConfig() Config {
	return Config{
		WholeFileCap: DefaultWholeFileCap,
		SampleBlocks: DefaultSampleBlocks,
		BlockSize:    DefaultBlockSize,
		Codec:        DefaultCodec,
	}
}

type Estimator struct {
	cfg   Config
	codec Codec
}

func New(cfg Config) (*Estimator, error) {
	def := DefaultConfig()
	if cfg.WholeFileCap <= 0 {
		cfg.WholeFileCap = def.WholeFileCap
	}
	if cfg.SampleBlocks <= 0 {
		cfg.SampleBlocks = def.SampleBlocks
	}
	if cfg.SampleBlocks > 3 {
		cfg.SampleBlocks = 3
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = def.BlockSize
	}
	codec, err := CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, codec: codec}, nil
}

func (e *Estimator) Codec() string { return e.codec.Name() }

// Estimate returns compressed/original in (0, 1]. Zero-length files and read
// failures report NoGain; the error is returned alongside so callers can log it.
func (e *Estimator) Estimate(path string, size int64) (float64, error) {
	if size <= 0 {
		return NoGain, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return NoGain, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	if size <= e.cfg.WholeFileCap {
		data, err := io.ReadAll(io.LimitReader(f, size))
		if err != nil {
			return NoGain, errors.Wrapf(err, "read %s", path)
		}
		n, err := e.codec.CompressedLen(data)
		if err != nil {
			return NoGain, err
		}
		return Ratio(int64(n), int64(len(data))), nil
	}

	var sampled, compressed int64
	buf := make([]byte, e.cfg.BlockSize)
	for _, off := range SampleOffsets(size, int64(e.cfg.BlockSize), e.cfg.SampleBlocks) {
		n, err := f.ReadAt(buf, off)
		if n == 0 {
			if err != nil && err != io.EOF {
				return NoGain, errors.Wrapf(err, "read %s at %d", path, off)
			}
			continue
		}
		c, err := e.codec.CompressedLen(buf[:n])
		if err != nil {
			return NoGain, err
		}
		sampled += int64(n)
		compressed += int64(c)
	}
	return Ratio(compressed, sampled), nil
}

// SampleOffsets spreads up to three blocks over a file: start, middle, end.
func SampleOffsets(size, blockSize int64, blocks int) []int64 {
	if size <= 0 || blockSize <= 0 || blocks <= 0 {
		return nil
	}
	if size <= blockSize {
		return []int64{0}
	}
	last := size - blockSize
	switch {
	case blocks == 1:
		return []int64{0}
	case blocks == 2:
		return []int64{0, last}
	default:
		return []int64{0, last / 2, last}
	}
}

// Ratio clamps compressed/sampled into (0, 1]; nothing sampled means NoGain.
func Ratio(compressed, sampled int64) float64 {
	if sampled <= 0 {
		return NoGain
	}
	r := float64(compressed) / float64(sampled)
	switch {
	case r > 1:
		return 1
	case r <= 0:
		return 1 / float64(sampled)
	}
	return r
}
