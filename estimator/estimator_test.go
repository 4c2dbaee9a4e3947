package estimator

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func repetitive() []byte {
	return bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz"), 20_000)
}

func random(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(42)).Read(b)
	return b
}

func TestRepetitiveDataCompressesWell(t *testing.T) {
	data := repetitive()
	p := writeFile(t, data)
	for _, name := range Codecs() {
		t.Run(name, func(t *testing.T) {
			e, err := New(Config{Codec: name})
			require.NoError(t, err)
			r, err := e.Estimate(p, int64(len(data)))
			require.NoError(t, err)
			assert.Less(t, r, 0.5)
			assert.Positive(t, r)
		})
	}
}

func TestRandomDataDoesNotCompress(t *testing.T) {
	for _, size := range []int{2 << 20, 5 << 20} {
		data := random(size)
		p := writeFile(t, data)
		e, err := New(DefaultConfig())
		require.NoError(t, err)
		r, err := e.Estimate(p, int64(size))
		require.NoError(t, err)
		assert.Greater(t, r, 0.85, "size %d", size)
		assert.LessOrEqual(t, r, 1.0)
	}
}

func TestLargeRepetitiveFileIsSampled(t *testing.T) {
	data := bytes.Repeat(repetitive(), 8) // ~4 MiB, above the whole-file cap
	p := writeFile(t, data)
	e, err := New(Config{BlockSize: 64 << 10})
	require.NoError(t, err)
	r, err := e.Estimate(p, int64(len(data)))
	require.NoError(t, err)
	assert.Less(t, r, 0.5)
}

func TestDegenerateInputs(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	r, err := e.Estimate(writeFile(t, nil), 0)
	assert.NoError(t, err)
	assert.Equal(t, NoGain, r)

	r, err = e.Estimate(filepath.Join(t.TempDir(), "missing"), 100)
	assert.Error(t, err)
	assert.Equal(t, NoGain, r)
}

func TestUnknownCodec(t *testing.T) {
	_, err := New(Config{Codec: "rle"})
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestSampleOffsets(t *testing.T) {
	assert.Nil(t, SampleOffsets(0, 10, 3))
	assert.Equal(t, []int64{0}, SampleOffsets(5, 10, 3))
	assert.Equal(t, []int64{0}, SampleOffsets(100, 10, 1))
	assert.Equal(t, []int64{0, 90}, SampleOffsets(100, 10, 2))
	assert.Equal(t, []int64{0, 45, 90}, SampleOffsets(100, 10, 3))
}

func TestRatioClamp(t *testing.T) {
	assert.Equal(t, NoGain, Ratio(10, 0))
	assert.Equal(t, 1.0, Ratio(120, 100))
	assert.InDelta(t, 0.25, Ratio(25, 100), 1e-9)
	assert.Positive(t, Ratio(0, 100))
}
