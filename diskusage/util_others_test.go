//go:build !windows && !linux && !darwin && !freebsd

package diskusage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackPlatformUsesComputedTier(t *testing.T) {
	m := NewMeasurer(nil)
	assert.Equal(t, DefaultClusterSize, m.ClusterSize("."))
	n, tier := m.SizeOnDisk("f", 1, DefaultClusterSize)
	assert.Equal(t, TierComputed, tier)
	assert.Equal(t, DefaultClusterSize, n)
}
