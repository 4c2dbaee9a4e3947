package runner

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Mode is what the user asked for: the classic NTFS format or a stronger one.
type Mode int

const (
	ModeSafe Mode = iota
	ModeStrongerAlgorithm
)

func (m Mode) String() string {
	if m == ModeStrongerAlgorithm {
		return "stronger"
	}
	return "safe"
}

// Algorithm selects the on-disk compression format.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota // default NTFS (LZNT1) compression
	AlgorithmXpress4K
	AlgorithmXpress8K
	AlgorithmXpress16K
	AlgorithmLZX
)

var algorithmNames = map[Algorithm]string{
	AlgorithmNone:      "none",
	AlgorithmXpress4K:  "xpress4k",
	AlgorithmXpress8K:  "xpress8k",
	AlgorithmXpress16K: "xpress16k",
	AlgorithmLZX:       "lzx",
}

func (a Algorithm) String() string {
	if n, ok := algorithmNames[a]; ok {
		return n
	}
	return "unknown"
}

// ExeArg is the /EXE: suffix understood by compact.exe, empty for the default format.
func (a Algorithm) ExeArg() string {
	switch a {
	case AlgorithmXpress4K:
		return "XPRESS4K"
	case AlgorithmXpress8K:
		return "XPRESS8K"
	case AlgorithmXpress16K:
		return "XPRESS16K"
	case AlgorithmLZX:
		return "LZX"
	}
	return ""
}

// Mode reports the mode an algorithm belongs to.
func (a Algorithm) Mode() Mode {
	if a == AlgorithmNone {
		return ModeSafe
	}
	return ModeStrongerAlgorithm
}

func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmNone, AlgorithmXpress4K, AlgorithmXpress8K, AlgorithmXpress16K, AlgorithmLZX}
}

func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == "default" || name == "lznt1" {
		return AlgorithmNone, nil
	}
	for a, n := range algorithmNames {
		if n == name {
			return a, nil
		}
	}
	return AlgorithmNone, errors.Newf("unknown algorithm %q", s)
}
