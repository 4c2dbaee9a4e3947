// Package diskusage measures how many bytes files actually occupy on disk and
// what the underlying volume is capable of.
package diskusage

import (
	"io/fs"

	"go.uber.org/zap"
)

// DefaultClusterSize is used when the volume's allocation unit cannot be queried.
const DefaultClusterSize int64 = 4096

// Tier records which measurement produced an on-disk size.
type Tier int

const (
	TierPrecise  Tier = iota // filesystem reported the allocation directly
	TierCoarse               // allocation reported by a secondary, less exact query
	TierComputed             // logical size rounded up to the cluster size
)

func (t Tier) String() string {
	switch t {
	case TierPrecise:
		return "precise"
	case TierCoarse:
		return "coarse"
	default:
		return "computed"
	}
}

type DevIno struct {
	Dev uint64
	Ino uint64
}

type sizeFunc func(path string) (int64, error)

// RoundUpToCluster returns the smallest multiple of clusterSize that is >= n.
// Zero stays zero. A non-positive cluster size falls back to DefaultClusterSize.
func RoundUpToCluster(n, clusterSize int64) int64 {
	if n <= 0 {
		return 0
	}
	if clusterSize <= 0 {
		clusterSize = DefaultClusterSize
	}
	return ((n + clusterSize - 1) / clusterSize) * clusterSize
}

// Measurer computes allocated sizes through a chain of fallbacks:
// precise query, then coarse query, then RoundUpToCluster.
type Measurer struct {
	logger  *zap.Logger
	precise sizeFunc
	coarse  sizeFunc
	cluster func(path string) (int64, error)
}

func NewMeasurer(logger *zap.Logger) *Measurer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Measurer{
		logger:  logger,
		precise: preciseSizeOnDisk,
		coarse:  coarseSizeOnDisk,
		cluster: clusterSize,
	}
}

// SizeOnDisk returns the allocated bytes for path and the tier that produced them.
func (m *Measurer) SizeOnDisk(path string, logical, clusterSize int64) (int64, Tier) {
	if m.precise != nil {
		n, err := m.precise(path)
		if err == nil {
			return n, TierPrecise
		}
		m.logger.Debug("precise size query failed", zap.String("path", path), zap.Error(err))
	}
	if m.coarse != nil {
		n, err := m.coarse(path)
		if err == nil {
			return n, TierCoarse
		}
		m.logger.Debug("coarse size query failed", zap.String("path", path), zap.Error(err))
	}
	return RoundUpToCluster(logical, clusterSize), TierComputed
}

// ClusterSize returns the allocation unit of the volume holding path.
func (m *Measurer) ClusterSize(path string) int64 {
	if m.cluster != nil {
		n, err := m.cluster(path)
		if err == nil && n > 0 {
			return n
		}
		m.logger.Debug("cluster size query failed, using default",
			zap.String("path", path), zap.Int64("default", DefaultClusterSize), zap.Error(err))
	}
	return DefaultClusterSize
}

// IsCompressed reports whether the filesystem flags the file as compressed.
func (m *Measurer) IsCompressed(path string, info fs.FileInfo) bool {
	return hasCompressedAttribute(info)
}
